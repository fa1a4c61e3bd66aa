package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "warden", cmd.Use)
	assert.Contains(t, cmd.Long, "ownership")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"enforce", "registry", "audit"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestRegistrySubcommands(t *testing.T) {
	cmd := NewRootCommand()

	showCmd, _, err := cmd.Find([]string{"registry", "show"})
	require.NoError(t, err)
	assert.Equal(t, "show", showCmd.Name())

	verifyCmd, _, err := cmd.Find([]string{"registry", "verify"})
	require.NoError(t, err)
	assert.Equal(t, "verify", verifyCmd.Name())
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestEnforceCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	enforceCmd, _, err := cmd.Find([]string{"enforce"})
	require.NoError(t, err)

	repoFlag := enforceCmd.Flags().Lookup("repo")
	require.NotNil(t, repoFlag)
	assert.Equal(t, ".", repoFlag.DefValue)

	for _, name := range []string{"policy", "actor", "commit", "registry", "audit"} {
		assert.NotNil(t, enforceCmd.Flags().Lookup(name), "flag %s should exist", name)
	}
}

func TestAuditTailFlags(t *testing.T) {
	cmd := NewRootCommand()
	tailCmd, _, err := cmd.Find([]string{"audit", "tail"})
	require.NoError(t, err)

	limitFlag := tailCmd.Flags().Lookup("limit")
	require.NotNil(t, limitFlag)
	assert.Equal(t, "n", limitFlag.Shorthand)
	assert.Equal(t, "20", limitFlag.DefValue)

	runFlag := tailCmd.Flags().Lookup("run")
	require.NotNil(t, runFlag)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "enforce"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad input")))
	assert.Equal(t, ExitFailure, GetExitCode(WrapExitError(ExitFailure, "run failed", assert.AnError)))
}
