package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/macropower/rulesync/pkg/config"
	"github.com/macropower/rulesync/pkg/log"
)

const (
	cmdName = "rulesync"
	cmdDesc = `Keep a live, validated catalog of rules in sync with a directory of rule files.`
)

type RootArgs struct {
	LogLevel   string
	LogFormat  string
	ConfigPath string
}

func NewRootArgs() *RootArgs {
	return &RootArgs{}
}

func (ra *RootArgs) AddFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVar(&ra.LogLevel, "log-level", "info", fmt.Sprintf("Log level, one of: %s", log.AllLevels))
	cmd.PersistentFlags().
		StringVar(&ra.LogFormat, "log-format", string(log.DefaultFormat(os.Stderr)),
			fmt.Sprintf("Log format, one of: %s", log.AllFormats))
	cmd.PersistentFlags().
		StringVar(&ra.ConfigPath, "config", "", "Path to the rulesync configuration file")

	var err error

	err = cmd.RegisterFlagCompletionFunc("log-format",
		cobra.FixedCompletions(log.AllFormats, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	err = cmd.RegisterFlagCompletionFunc("log-level",
		cobra.FixedCompletions(log.AllLevels, cobra.ShellCompDirectiveNoFileComp),
	)
	if err != nil {
		panic(err)
	}

	err = cmd.MarkPersistentFlagFilename("config", "yaml", "yml")
	if err != nil {
		panic(fmt.Errorf("mark config flag: %w", err))
	}
}

// LoadConfig reads the configuration file, if one was given. Without one it
// returns the default configuration.
func (ra *RootArgs) LoadConfig() (*config.Config, error) {
	if ra.ConfigPath == "" {
		return config.NewConfig(), nil
	}

	l, err := config.NewLoaderFromFile(ra.ConfigPath)
	if err != nil {
		return nil, err //nolint:wrapcheck // Already wrapped by config.
	}

	cfg, err := l.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", ra.ConfigPath, err)
	}

	return cfg, nil
}

func NewRootCmd() *cobra.Command {
	args := NewRootArgs()

	cmd := &cobra.Command{
		Use:               cmdName,
		Short:             cmdDesc,
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging(args),
	}

	args.AddFlags(cmd)
	cmd.AddCommand(
		NewServeCmd(NewServeArgs(args)),
		NewCheckCmd(NewCheckArgs(args)),
	)

	bindEnvVars(cmd)

	return cmd
}

func setupLogging(rc *RootArgs) func(cmd *cobra.Command, _ []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		logHandler, err := log.CreateHandlerWithStrings(cmd.ErrOrStderr(), rc.LogLevel, rc.LogFormat)
		if err != nil {
			return fmt.Errorf("create log handler: %w", err)
		}

		slog.SetDefault(slog.New(logHandler))

		return nil
	}
}
