package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// bindEnvVars binds environment variables to the flags of cmd and all of its
// subcommands. Names are RULESYNC_<FLAG_NAME>, with the flag name upper-cased
// and dashes replaced with underscores:
//
//   - Flag "log-level" becomes environment variable "RULESYNC_LOG_LEVEL"
//   - Flag "require-watch" becomes environment variable "RULESYNC_REQUIRE_WATCH"
//
// Arguments take precedence over environment variables, which take precedence
// over the configuration file and default values. A flag set from the
// environment counts as changed, so it overrides the configuration file.
//
// Flag usage is updated to include the environment variable name.
func bindEnvVars(cmd *cobra.Command) {
	bindFlagSet(cmd.Flags())
	bindFlagSet(cmd.PersistentFlags())

	for _, sub := range cmd.Commands() {
		bindEnvVars(sub)
	}
}

func bindFlagSet(fs *pflag.FlagSet) {
	fs.VisitAll(func(flag *pflag.Flag) {
		bindFlagToEnv(fs, flag)
	})
}

func bindFlagToEnv(fs *pflag.FlagSet, flag *pflag.Flag) {
	envName := flagToEnvName(flag.Name)

	if !strings.Contains(flag.Usage, envName) {
		flag.Usage = fmt.Sprintf("%s ($%s)", flag.Usage, envName)
	}

	// Skip if flag was already set via command line arguments.
	if flag.Changed {
		return
	}

	envValue, ok := os.LookupEnv(envName)
	if !ok {
		return
	}

	err := fs.Set(flag.Name, envValue)
	if err != nil {
		// Log error but don't fail - use default value instead.
		slog.Error("failed to set flag from environment variable",
			slog.String("flag", flag.Name),
			slog.String("env", envName),
			slog.String("value", envValue),
			slog.Any("error", err),
		)
	}
}

// flagToEnvName converts a flag name to its corresponding environment variable name.
// Example: "log-level" -> "RULESYNC_LOG_LEVEL".
func flagToEnvName(flagName string) string {
	envName := strings.ReplaceAll(flagName, "-", "_")
	return strings.ToUpper(cmdName + "_" + envName)
}
