package cli_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macropower/rulesync/internal/cli"
)

func TestBindEnvVars(t *testing.T) {
	tcs := map[string]struct {
		envVars       map[string]string
		wantLogLevel  string
		wantLogFormat string
		args          []string
	}{
		"environment variables are bound when no args provided": {
			envVars: map[string]string{
				"RULESYNC_LOG_LEVEL":  "debug",
				"RULESYNC_LOG_FORMAT": "json",
			},
			args:          []string{},
			wantLogLevel:  "debug",
			wantLogFormat: "json",
		},
		"command line args take precedence over environment variables": {
			envVars: map[string]string{
				"RULESYNC_LOG_LEVEL":  "debug",
				"RULESYNC_LOG_FORMAT": "json",
			},
			args:          []string{"--log-level", "error", "--log-format", "text"},
			wantLogLevel:  "error",
			wantLogFormat: "text",
		},
		"partial environment variable override": {
			envVars: map[string]string{
				"RULESYNC_LOG_LEVEL": "warn",
			},
			args:          []string{"--log-format", "json"},
			wantLogLevel:  "warn",
			wantLogFormat: "json",
		},
		"no environment variables uses defaults": {
			envVars:       map[string]string{},
			args:          []string{},
			wantLogLevel:  "info",   // Default value.
			wantLogFormat: "logfmt", // Default when stderr is not a terminal.
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			for key, val := range tc.envVars {
				t.Setenv(key, val)
			}

			cmd := cli.NewRootCmd()
			cmd.SetArgs(tc.args)

			err := cmd.ParseFlags(tc.args)
			require.NoError(t, err)

			logLevel, err := cmd.Flags().GetString("log-level")
			require.NoError(t, err)
			assert.Equal(t, tc.wantLogLevel, logLevel)

			logFormat, err := cmd.Flags().GetString("log-format")
			require.NoError(t, err)
			assert.Equal(t, tc.wantLogFormat, logFormat)
		})
	}
}

// Test that flag usage strings are updated to include environment variable names.
func TestEnvironmentVariableUsageUpdate(t *testing.T) {
	t.Parallel()

	cmd := cli.NewRootCmd()

	logLevelFlag := cmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, logLevelFlag)
	assert.Contains(t, logLevelFlag.Usage, "$RULESYNC_LOG_LEVEL")

	serveCmd, _, err := cmd.Find([]string{"serve"})
	require.NoError(t, err)

	requireWatch := serveCmd.Flags().Lookup("require-watch")
	require.NotNil(t, requireWatch)
	assert.Contains(t, requireWatch.Usage, "$RULESYNC_REQUIRE_WATCH")
}
