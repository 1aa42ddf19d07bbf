package execpolicy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
)

// LoadExecPolicy reads every *.rules file under dir/rules (alphabetically,
// so later files can narrow earlier ones, except that appended.rules, the
// file AppendAndReload writes, is always read last) and builds an ExecPolicyManager
// from them. A missing rules directory yields an empty policy, not an
// error — a host with no execpolicy customization is the common case.
func LoadExecPolicy(dir string) (*ExecPolicyManager, error) {
	policy := NewPolicy()
	rulesDir := filepath.Join(dir, "rules")

	entries, err := os.ReadDir(rulesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return NewExecPolicyManager(policy), nil
		}
		return nil, fmt.Errorf("execpolicy: read rules dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".rules") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for i, name := range names {
		if name == "appended.rules" {
			names = append(append(names[:i:i], names[i+1:]...), name)
			break
		}
	}

	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(rulesDir, name))
		if err != nil {
			return nil, fmt.Errorf("execpolicy: read %s: %w", name, err)
		}
		if err := loadSource(policy, string(data)); err != nil {
			return nil, fmt.Errorf("execpolicy: %s: %w", name, err)
		}
	}
	return NewExecPolicyManager(policy), nil
}

// LoadExecPolicyFromSource builds an ExecPolicyManager from a single
// Starlark rules source string, for tests and inline configuration.
func LoadExecPolicyFromSource(source string) (*ExecPolicyManager, error) {
	policy := NewPolicy()
	if strings.TrimSpace(source) != "" {
		if err := loadSource(policy, source); err != nil {
			return nil, err
		}
	}
	return NewExecPolicyManager(policy), nil
}

// AppendAndReload writes a new allow rule for pattern into dir/rules and
// reloads the whole directory, replacing this manager's policy in place.
func (m *ExecPolicyManager) AppendAndReload(dir string, pattern []string) error {
	rulesDir := filepath.Join(dir, "rules")
	if err := os.MkdirAll(rulesDir, 0o755); err != nil {
		return fmt.Errorf("execpolicy: create rules dir: %w", err)
	}

	line := fmt.Sprintf("prefix_rule(pattern=%s, decision=%q)\n", starlarkStringList(pattern), DecisionAllow)
	path := filepath.Join(rulesDir, "appended.rules")
	existing, _ := os.ReadFile(path)
	content := append(existing, []byte(line)...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("execpolicy: write appended rule: %w", err)
	}

	reloaded, err := LoadExecPolicy(dir)
	if err != nil {
		return err
	}
	m.policy = reloaded.policy
	return nil
}

func starlarkStringList(items []string) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = strconv.Quote(it)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// loadSource executes source as a Starlark module whose only side effect
// allowed is calling prefix_rule(...), registering rules onto policy.
func loadSource(policy *Policy, source string) error {
	thread := &starlark.Thread{Name: "execpolicy-rules"}
	predeclared := starlark.StringDict{
		"prefix_rule": starlark.NewBuiltin("prefix_rule", prefixRuleBuiltin(policy)),
	}
	_, err := starlark.ExecFile(thread, "rules.star", source, predeclared)
	return err
}

func prefixRuleBuiltin(policy *Policy) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var patternVal *starlark.List
		var decision string
		var justification string

		if err := starlark.UnpackArgs("prefix_rule", args, kwargs,
			"pattern", &patternVal,
			"decision", &decision,
			"justification?", &justification,
		); err != nil {
			return nil, err
		}

		pattern, err := toPrefixPattern(patternVal)
		if err != nil {
			return nil, err
		}

		policy.AddRule(&PrefixRule{
			Pattern:       pattern,
			Decision:      Decision(decision),
			Justification: justification,
		})
		return starlark.None, nil
	}
}

func toPrefixPattern(list *starlark.List) (PrefixPattern, error) {
	if list == nil {
		return nil, fmt.Errorf("prefix_rule: pattern is required")
	}
	var pattern PrefixPattern
	iter := list.Iterate()
	defer iter.Done()
	var v starlark.Value
	for iter.Next(&v) {
		s, ok := v.(starlark.String)
		if !ok {
			return nil, fmt.Errorf("prefix_rule: pattern elements must be strings")
		}
		pattern = append(pattern, PatternElem{Kind: PatternSingle, Single: string(s)})
	}
	return pattern, nil
}
