package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/dustin/go-humanize/english"
	"github.com/spf13/cobra"

	"github.com/macropower/rulesync/pkg/config"
	"github.com/macropower/rulesync/pkg/engine"
	"github.com/macropower/rulesync/pkg/loader"
)

const checkExamples = `  # Check ./Rules:
  rulesync check

  # Check another directory:
  rulesync check /etc/rules`

// ErrRejected is returned by the check command when any rule file is
// rejected.
var ErrRejected = errors.New("rule files rejected")

type CheckArgs struct {
	*RootArgs

	Dir        string
	Extensions []string
}

func NewCheckArgs(rootArgs *RootArgs) *CheckArgs {
	return &CheckArgs{
		RootArgs: rootArgs,
	}
}

func (ca *CheckArgs) AddFlags(cmd *cobra.Command) {
	addDirFlags(cmd, &ca.Dir, &ca.Extensions)
}

func NewCheckCmd(ca *CheckArgs) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "check [dir]",
		Short:   "Validate every rule file in a directory once and report the results",
		Example: checkExamples,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ca.LoadConfig()
			if err != nil {
				return err
			}

			switch {
			case len(args) == 1:
				cfg.Directory = args[0]
			case cmd.Flags().Changed("dir"):
				cfg.Directory = ca.Dir
			}
			if cmd.Flags().Changed("ext") {
				cfg.Extensions = ca.Extensions
			}

			results, err := Check(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			return Report(cmd.OutOrStdout(), results)
		},
	}
	ca.AddFlags(cmd)

	return cmd
}

// CheckResult is the outcome of loading one rule file.
type CheckResult struct {
	Err  error
	File string
	// Name is the canonical rule name.
	Name string
	// Note describes a non-fatal finding.
	Note string
	Size int64
}

// Check loads every rule file in cfg.Directory. Unlike serve, it does not
// create a missing directory.
func Check(ctx context.Context, cfg *config.Config) ([]CheckResult, error) {
	entries, err := os.ReadDir(cfg.Directory)
	if err != nil {
		return nil, fmt.Errorf("read rule directory: %w", err)
	}

	eng, err := engine.New()
	if err != nil {
		return nil, fmt.Errorf("create rule engine: %w", err)
	}

	l := loader.New(cfg.Directory, eng, loader.WithExtensions(cfg.Extensions...))

	var (
		results []CheckResult
		seen    = map[string]string{}
	)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name, ok := l.CanonicalName(entry.Name())
		if !ok {
			continue
		}

		res := CheckResult{File: entry.Name(), Name: name}

		if info, err := entry.Info(); err == nil {
			res.Size = info.Size()
		}

		def, err := l.Load(ctx, entry.Name())

		switch {
		case err != nil:
			res.Err = err
		case def.NameOverridden():
			res.Note = fmt.Sprintf("declares name %q", def.DeclaredName)
		}

		if other, ok := seen[strings.ToLower(name)]; ok {
			res.Note = joinNotes(res.Note, fmt.Sprintf("same rule name as %s", other))
		}

		seen[strings.ToLower(name)] = entry.Name()

		results = append(results, res)
	}

	return results, nil
}

func joinNotes(a, b string) string {
	if a == "" {
		return b
	}

	return a + "; " + b
}

// Report writes a table of results to w, and returns an error wrapping
// [ErrRejected] if any file was rejected.
func Report(w io.Writer, results []CheckResult) error {
	r := lipgloss.NewRenderer(w)

	var (
		okStyle       = r.NewStyle().Foreground(lipgloss.Color("2"))
		rejectedStyle = r.NewStyle().Foreground(lipgloss.Color("1"))
		cellStyle     = r.NewStyle().Padding(0, 1)
		rows          = make([][]string, 0, len(results))
		rejected      int
	)

	for _, res := range results {
		status, detail := "ok", res.Note
		if res.Err != nil {
			status, detail = "rejected", firstLine(res.Err.Error())
			rejected++
		}

		//nolint:gosec // G115: file sizes are non-negative.
		rows = append(rows, []string{res.File, res.Name, humanize.Bytes(uint64(res.Size)), status, detail})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle()).
		Headers("FILE", "RULE", "SIZE", "STATUS", "DETAIL").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := cellStyle
			if row == table.HeaderRow || col != 3 {
				return style
			}
			if rows[row][3] == "ok" {
				return style.Inherit(okStyle)
			}

			return style.Inherit(rejectedStyle)
		})

	_, err := fmt.Fprintln(w, t.String())
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	_, err = fmt.Fprintf(w, "%s checked, %d rejected\n", english.Plural(len(results), "rule file", ""), rejected)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if rejected > 0 {
		return fmt.Errorf("%w: %d of %d", ErrRejected, rejected, len(results))
	}

	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")

	return strings.TrimSuffix(line, ":")
}
