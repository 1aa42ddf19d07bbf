// Command gatedemo drives an approval-gate Controller over a real terminal.
//
// It reads simulated tool calls as JSON lines from stdin, one object per
// line shaped like {"id":"...","name":"shell","arguments":"{\"command\":\"ls\"}"},
// runs each through the gate, and prints the resulting outcome (and error
// body, if any) as a JSON line on stdout.
//
// Usage:
//
//	gatedemo -config gate.json -rules-dir ./rules
//	echo '{"name":"shell","arguments":"{\"command\":\"ls\"}"}' | gatedemo
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/google/uuid"

	"github.com/mfateev/approvalgate/internal/allowlist"
	"github.com/mfateev/approvalgate/internal/gate"
	"github.com/mfateev/approvalgate/internal/gatelog"
	"github.com/mfateev/approvalgate/internal/models"
	"github.com/mfateev/approvalgate/internal/policy"
	"github.com/mfateev/approvalgate/internal/prompt"
)

// allowFlags collects repeated -allow tool:pattern flags.
type allowFlags []string

func (a *allowFlags) String() string     { return fmt.Sprint([]string(*a)) }
func (a *allowFlags) Set(v string) error { *a = append(*a, v); return nil }

func main() {
	configPath := flag.String("config", "", "Path to the host's JSON config file (approval_gates block)")
	rulesDir := flag.String("rules-dir", "", "Path to the execpolicy rules directory")
	debug := flag.Bool("debug", false, "Enable gate debug logging (APPROVAL_GATE_DEBUG)")
	yolo := flag.Bool("yolo", false, "Disable gating entirely; allow every tool call")
	strictNet := flag.Bool("strict-network-fs", false, "Force a prompt for file writes on network filesystems")
	var allows allowFlags
	flag.Var(&allows, "allow", "Add a static allowlist entry (tool:pattern); may repeat")
	flag.Parse()

	gatelog.SetEnabled(*debug)

	pcfg := policy.Config{Enabled: true, Categories: models.DefaultCategoryPolicy(), Static: allowlist.New()}
	if *configPath != "" {
		data, err := os.ReadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gatedemo: read config: %v\n", err)
			os.Exit(1)
		}
		pcfg = policy.LoadConfig(data)
	}

	ctrl := gate.New(gate.Config{
		Policy:                pcfg,
		RulesDir:              *rulesDir,
		StrictNetworkFsWrites: *strictNet,
	})

	for _, spec := range allows {
		if err := ctrl.AddCLIAllow(spec); err != nil {
			fmt.Fprintf(os.Stderr, "gatedemo: %v\n", err)
			os.Exit(1)
		}
	}
	if *yolo {
		ctrl.EnableYolo()
	}

	// Tool calls are read from stdin as JSON lines, so the interactive
	// prompt (which needs to read raw keystrokes) is given its own
	// controlling terminal rather than contending with stdin for input.
	if tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0); err == nil && term.IsTerminal(int(tty.Fd())) {
		defer tty.Close()
		ctrl.Prompt = prompt.New(tty, tty, pcfg.Static)
	}

	ctrl.BeginBatch()

	scanner := bufio.NewScanner(os.Stdin)
	out := json.NewEncoder(os.Stdout)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var call models.ToolCall
		if err := json.Unmarshal(line, &call); err != nil {
			fmt.Fprintf(os.Stderr, "gatedemo: malformed tool call line: %v\n", err)
			continue
		}
		if call.ID == "" {
			call.ID = uuid.NewString()
		}

		result := ctrl.Check(call)
		resp := struct {
			ID      string `json:"id"`
			Outcome string `json:"outcome"`
			Error   string `json:"error,omitempty"`
		}{ID: call.ID, Outcome: string(result.Outcome)}
		if result.Error != nil {
			resp.Error = result.Error.JSON()
		}
		_ = out.Encode(resp)
	}
}
