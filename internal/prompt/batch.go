package prompt

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mfateev/approvalgate/internal/models"
	"github.com/mfateev/approvalgate/internal/pattern"
)

var (
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	allowedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	deniedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// BatchOutcome is the per-call result plus the aggregate of a batch prompt.
type BatchOutcome struct {
	PerCall   []models.ApprovalOutcome
	Aggregate models.ApprovalOutcome
}

// RunBatch presents N (>=2) pending tool calls as a numbered list and
// dispatches y (allow all pending) / n (deny all pending) / a digit (drill
// into one via the single prompt). Spec §4.8's aggregate rule: Denied iff
// any call is Denied (Aborted, NonInteractiveDenied and RateLimited count
// as Denied), AllowedAlways iff every call is AllowedAlways, otherwise
// Allowed.
func (p *ApprovalPrompt) RunBatch(reqs []Request) BatchOutcome {
	m := batchModel{prompt: p, items: make([]batchItem, len(reqs)), drilling: noDrill}
	for i, r := range reqs {
		m.items[i] = batchItem{req: r}
	}

	program := tea.NewProgram(m, tea.WithOutput(p.Out), tea.WithInput(p.In))
	final, err := program.Run()
	if err != nil {
		return BatchOutcome{PerCall: allOutcome(len(reqs), models.Aborted), Aggregate: models.Aborted}
	}
	fm := final.(batchModel)

	per := make([]models.ApprovalOutcome, len(fm.items))
	for i, it := range fm.items {
		per[i] = it.outcome
	}
	return BatchOutcome{PerCall: per, Aggregate: aggregate(per)}
}

func aggregate(per []models.ApprovalOutcome) models.ApprovalOutcome {
	allAlways := true
	for _, o := range per {
		if o == models.Denied || o == models.Aborted || o == models.NonInteractiveDenied || o == models.RateLimited {
			return models.Denied
		}
		if o != models.AllowedAlways {
			allAlways = false
		}
	}
	if allAlways {
		return models.AllowedAlways
	}
	return models.Allowed
}

func allOutcome(n int, o models.ApprovalOutcome) []models.ApprovalOutcome {
	out := make([]models.ApprovalOutcome, n)
	for i := range out {
		out[i] = o
	}
	return out
}

type batchItem struct {
	req     Request
	outcome models.ApprovalOutcome // "" == still pending
}

type batchModel struct {
	prompt *ApprovalPrompt
	items  []batchItem
	// drilling is set to the item index while the next keypress answers
	// that item individually, instead of the batch-level y/n/digit keys.
	// The drill dialog is handled inline rather than by spawning a second
	// raw-mode reader over the same fd bubbletea already owns.
	drilling int
}

const noDrill = -1

func (m batchModel) Init() tea.Cmd { return nil }

func (m batchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	if m.drilling != noDrill {
		m = m.answerDrill(keyMsg.String())
		if m.allResolved() {
			return m, tea.Quit
		}
		return m, nil
	}

	switch keyMsg.String() {
	case "y":
		return m.resolveAllPending(models.Allowed), tea.Quit
	case "n":
		return m.resolveAllPending(models.Denied), tea.Quit
	case "ctrl+c":
		return m.resolveAllPending(models.Aborted), tea.Quit
	default:
		if idx, ok := digitIndex(keyMsg.String(), len(m.items)); ok && m.items[idx].outcome == "" {
			m.drilling = idx
		}
	}
	return m, nil
}

// answerDrill interprets one keypress as the single-prompt's y/n/a/other
// answer for m.drilling. "allow always" installs an exact-only pattern —
// the edit/narrow sub-dialog of the single prompt requires its own
// line-based read and is only available outside a batch session.
func (m batchModel) answerDrill(key string) batchModel {
	idx := m.drilling
	switch key {
	case "y":
		m.items[idx].outcome = models.Allowed
	case "n":
		m.items[idx].outcome = models.Denied
	case "a":
		gp := m.prompt.generatePattern(m.items[idx].req)
		pattern.Apply(m.prompt.Allowlist, m.items[idx].req.Call.Name, pattern.ForceExactOnly(gp))
		m.items[idx].outcome = models.AllowedAlways
	case "ctrl+c":
		m.items[idx].outcome = models.Aborted
	default:
		return m // invalid key: stay in drill mode, wait for another answer
	}
	m.drilling = noDrill
	return m
}

func (m batchModel) resolveAllPending(o models.ApprovalOutcome) batchModel {
	for i := range m.items {
		if m.items[i].outcome == "" {
			m.items[i].outcome = o
		}
	}
	return m
}

func (m batchModel) allResolved() bool {
	for _, it := range m.items {
		if it.outcome == "" {
			return false
		}
	}
	return true
}

func (m batchModel) View() string {
	var b strings.Builder
	fmt.Fprintln(&b, "Pending approvals:")
	for i, it := range m.items {
		marker := pendingStyle.Render("[ ]")
		switch it.outcome {
		case models.Allowed, models.AllowedAlways:
			marker = allowedStyle.Render("[y]")
		case models.Denied, models.Aborted, models.NonInteractiveDenied, models.RateLimited:
			marker = deniedStyle.Render("[n]")
		}
		fmt.Fprintf(&b, "%s %d. %s\n", marker, i+1, summaryLine(it.req))
	}
	if m.drilling != noDrill {
		fmt.Fprintf(&b, "\n%s\n[y]es / [n]o / [a]lways\n", summaryLine(m.items[m.drilling].req))
	} else {
		fmt.Fprint(&b, "\n[y] allow all pending  [n] deny all pending  [1-9] drill into one\n")
	}
	return b.String()
}

func digitIndex(key string, n int) (int, bool) {
	d, err := strconv.Atoi(key)
	if err != nil || d < 1 || d > n {
		return 0, false
	}
	return d - 1, true
}
