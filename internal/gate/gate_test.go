package gate

import (
	"os"
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfateev/approvalgate/internal/allowlist"
	"github.com/mfateev/approvalgate/internal/models"
	"github.com/mfateev/approvalgate/internal/pathid"
	"github.com/mfateev/approvalgate/internal/policy"
	"github.com/mfateev/approvalgate/internal/prompt"
	"github.com/mfateev/approvalgate/internal/shellparse"
)

func TestMain(m *testing.M) {
	// Force POSIX dialect detection for the whole test binary: DetectDialect
	// memoizes once per process, so this must be set before any test touches
	// it.
	os.Setenv("SHELL", "/bin/bash")
	os.Setenv("PSModulePath", "")
	os.Setenv("COMSPEC", "")
	os.Exit(m.Run())
}

func newConfig() Config {
	return Config{
		Policy: policy.Config{
			Enabled:    true,
			Categories: models.DefaultCategoryPolicy(),
			Static:     allowlist.New(),
		},
	}
}

// --- Scenario 1: protected file write is always denied ---

func TestCheck_ProtectedFileWriteAlwaysDenied(t *testing.T) {
	c := New(newConfig())
	result := c.Check(models.ToolCall{Name: "write_file", Arguments: `{"path":"/work/.env"}`})
	assert.Equal(t, models.Denied, result.Outcome)
	require.NotNil(t, result.Error)
	assert.Equal(t, "protected_file", result.Error.Error)
	assert.Equal(t, "/work/.env", result.Error.Path)
}

// --- Scenario 2: no TTY, no channel -> NonInteractiveDenied ---

func TestCheck_NoTTYNoChannelIsNonInteractiveDenied(t *testing.T) {
	c := New(newConfig())
	result := c.Check(models.ToolCall{Name: "shell", Arguments: `{"command":"ls"}`})
	assert.Equal(t, models.NonInteractiveDenied, result.Outcome)
	require.NotNil(t, result.Error)
	assert.Equal(t, "non_interactive_gate", result.Error.Error)
	assert.Equal(t, "shell", result.Error.Category)
}

// --- Scenario 3: shell prefix allowlist match bypasses the prompt ---

func TestCheck_ShellPrefixAllowlistMatchIsAllowed(t *testing.T) {
	cfg := newConfig()
	cfg.Policy.Static.AddShell([]string{"git", "status"}, shellparse.DialectPOSIX, allowlist.ScopeStatic)
	c := New(cfg)

	result := c.Check(models.ToolCall{Name: "shell", Arguments: `{"command":"git status -s"}`})
	assert.Equal(t, models.Allowed, result.Outcome)
	assert.Nil(t, result.Error)
}

// --- Scenario 4: chain operator defeats an otherwise-matching prefix ---

func TestCheck_ShellChainOperatorDefeatsAllowlistMatch(t *testing.T) {
	cfg := newConfig()
	cfg.Policy.Static.AddShell([]string{"git", "status"}, shellparse.DialectPOSIX, allowlist.ScopeStatic)
	c := New(cfg)

	// No TTY/channel: the match failure routes to PromptRequired, which with
	// no approval surface collapses to NonInteractiveDenied rather than
	// the Allowed a raw prefix-substring check would have produced.
	result := c.Check(models.ToolCall{Name: "shell", Arguments: `{"command":"git status; rm -rf /"}`})
	assert.Equal(t, models.NonInteractiveDenied, result.Outcome)
}

// --- Scenario 5: rate limiting after repeated denials ---

func TestCheck_RateLimitedAfterThreeDenials(t *testing.T) {
	cfg := newConfig()
	cfg.Policy.Categories[models.CategoryShell] = models.ActionDeny
	c := New(cfg)

	for i := 0; i < 3; i++ {
		result := c.Check(models.ToolCall{Name: "shell", Arguments: `{"command":"ls"}`})
		require.Equal(t, models.Denied, result.Outcome)
	}

	result := c.Check(models.ToolCall{Name: "shell", Arguments: `{"command":"ls"}`})
	assert.Equal(t, models.RateLimited, result.Outcome)
	require.NotNil(t, result.Error)
	assert.Equal(t, "rate_limited", result.Error.Error)
	assert.GreaterOrEqual(t, result.Error.RetryAfter, 4.0)
	assert.LessOrEqual(t, result.Error.RetryAfter, 5.0)
}

// --- Scenario 6: allow-always on web_fetch installs a host-anchored
// pattern; a same-host path matches without prompting again, but a
// subdomain-spoof host still prompts ---

func newPromptController(t *testing.T, cfg Config) (*Controller, *os.File) {
	t.Helper()
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ptmx.Close()
		_ = tty.Close()
	})
	c := New(cfg)
	c.Prompt = prompt.New(tty, os.Stderr, c.policy.Allowlist)
	return c, ptmx
}

func sendKeys(t *testing.T, ptmx *os.File, s string) {
	t.Helper()
	time.Sleep(30 * time.Millisecond)
	_, err := ptmx.Write([]byte(s))
	require.NoError(t, err)
}

func TestCheck_WebFetchAllowAlwaysInstallsHostAnchoredPattern(t *testing.T) {
	cfg := newConfig()
	c, ptmx := newPromptController(t, cfg)

	resultCh := make(chan CheckResult, 1)
	go func() {
		resultCh <- c.Check(models.ToolCall{Name: "web_fetch", Arguments: `{"url":"https://api.example.com/v1"}`})
	}()

	sendKeys(t, ptmx, "a")
	sendKeys(t, ptmx, "\n") // default-confirm the synthesized pattern

	var first CheckResult
	select {
	case first = <-resultCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first check")
	}
	require.Equal(t, models.AllowedAlways, first.Outcome)

	// Same host, different path: matches the installed pattern, no prompt.
	second := c.Check(models.ToolCall{Name: "web_fetch", Arguments: `{"url":"https://api.example.com/v2"}`})
	assert.Equal(t, models.Allowed, second.Outcome)

	// Subdomain-spoof host must still prompt: drive it on a goroutine,
	// answer "n" at the prompt, and expect Denied rather than a silent Allow.
	thirdCh := make(chan CheckResult, 1)
	go func() {
		thirdCh <- c.Check(models.ToolCall{Name: "web_fetch", Arguments: `{"url":"https://api.example.com.evil.com/v1"}`})
	}()
	sendKeys(t, ptmx, "n")
	select {
	case third := <-thirdCh:
		assert.Equal(t, models.Denied, third.Outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for third check")
	}
}

// --- Scenario 7: TOCTOU — a captured identity's VerifyAndOpen rejects a
// symlink swapped in after capture ---

func TestCheck_FileReadThenSymlinkSwapIsRejectedOnOpen(t *testing.T) {
	dir := t.TempDir()
	target := dir + "/x"
	require.NoError(t, os.WriteFile(target, []byte("original"), 0o644))

	cfg := newConfig()
	c := New(cfg)

	result := c.Check(models.ToolCall{Name: "read_file", Arguments: `{"path":"` + target + `"}`})
	require.Equal(t, models.Allowed, result.Outcome)
	require.NotNil(t, result.Identity)

	require.NoError(t, os.Remove(target))
	evil := dir + "/evil"
	require.NoError(t, os.WriteFile(evil, []byte("evil"), 0o644))
	require.NoError(t, os.Symlink(evil, target))

	f, err := result.Identity.VerifyAndOpen()
	assert.Nil(t, f)
	require.Error(t, err)
	var pe *pathid.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, pathid.ErrIsSymlink, pe.Kind)
}

// --- Invariant 1: protected-file denial holds regardless of config ---

func TestInvariant_ProtectedFileDeniedRegardlessOfConfig(t *testing.T) {
	cfg := newConfig()
	cfg.Policy.Enabled = false // even with gates fully disabled
	cfg.Policy.Categories[models.CategoryFileWrite] = models.ActionAllow
	c := New(cfg)

	result := c.Check(models.ToolCall{Name: "write_file", Arguments: `{"path":"/anywhere/.env"}`})
	assert.Equal(t, models.Denied, result.Outcome)
}

// --- Invariant 3: outcome is independent of ToolCall.ID ---

func TestInvariant_OutcomeIgnoresCallID(t *testing.T) {
	cfg := newConfig()
	c1 := New(cfg)
	c2 := New(newConfig())

	r1 := c1.Check(models.ToolCall{ID: "a", Name: "memory_read", Arguments: `{}`})
	r2 := c2.Check(models.ToolCall{ID: "b", Name: "memory_read", Arguments: `{}`})
	assert.Equal(t, r1.Outcome, r2.Outcome)
}

// --- Invariant 5: after an approved outcome, the tool is no longer rate limited ---

func TestInvariant_ApprovedOutcomeResetsRateLimit(t *testing.T) {
	cfg := newConfig()
	cfg.Policy.Categories[models.CategoryMemory] = models.ActionAllow
	c := New(cfg)

	c.limiter.TrackDenial("memory_read")
	require.True(t, c.limiter.IsRateLimited("memory_read") == false || c.limiter.Remaining("memory_read") == 0,
		"first denial carries no backoff per spec's schedule")

	result := c.Check(models.ToolCall{Name: "memory_read", Arguments: `{}`})
	require.Equal(t, models.Allowed, result.Outcome)
	assert.False(t, c.limiter.IsRateLimited("memory_read"))
}

// --- EnableYolo / SetCategoryAction / AddCLIAllow (spec §6 CLI surface) ---

func TestEnableYolo_AllowsEverything(t *testing.T) {
	c := New(newConfig())
	c.EnableYolo()
	result := c.Check(models.ToolCall{Name: "shell", Arguments: `{"command":"rm -rf /"}`})
	assert.Equal(t, models.Allowed, result.Outcome)
}

func TestSetCategoryAction_OverridesDefault(t *testing.T) {
	c := New(newConfig())
	c.SetCategoryAction("network", "deny")
	result := c.Check(models.ToolCall{Name: "web_fetch", Arguments: `{"url":"https://example.com"}`})
	assert.Equal(t, models.Denied, result.Outcome)
}

func TestSetCategoryAction_UnknownCategoryIgnored(t *testing.T) {
	c := New(newConfig())
	before := c.policy.Config.Categories[models.CategoryShell]
	c.SetCategoryAction("not_a_category", "deny")
	assert.Equal(t, before, c.policy.Config.Categories[models.CategoryShell])
}

func TestAddCLIAllow_ShellSpecInstallsPrefixEntry(t *testing.T) {
	c := New(newConfig())
	require.NoError(t, c.AddCLIAllow("shell:git,status"))

	result := c.Check(models.ToolCall{Name: "shell", Arguments: `{"command":"git status -s"}`})
	assert.Equal(t, models.Allowed, result.Outcome)
}

func TestAddCLIAllow_RegexSpecInstallsEntry(t *testing.T) {
	c := New(newConfig())
	require.NoError(t, c.AddCLIAllow(`read_file:^/tmp/.*\.log$`))

	result := c.Check(models.ToolCall{Name: "read_file", Arguments: `{"path":"/tmp/app.log"}`})
	assert.Equal(t, models.Allowed, result.Outcome)
}

func TestAddCLIAllow_MalformedSpecErrors(t *testing.T) {
	c := New(newConfig())
	err := c.AddCLIAllow("not-a-valid-spec")
	assert.Error(t, err)
}

// --- BeginBatch forces a protected-files cache refresh ---

func TestBeginBatch_DoesNotPanicWithNoDirectories(t *testing.T) {
	c := New(newConfig())
	assert.NotPanics(t, func() { c.BeginBatch() })
}
