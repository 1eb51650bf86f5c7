package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/lipgloss"
)

// ErrorHandler writes err to w using the fang styles. Rejected rule files
// have already been reported, so only the summary is repeated.
func ErrorHandler(w io.Writer, styles fang.Styles, err error) {
	mustN(fmt.Fprintln(w, styles.ErrorHeader.String()))
	mustN(fmt.Fprintln(w, lipgloss.NewStyle().MarginLeft(2).Render(err.Error())))
	mustN(fmt.Fprintln(w))

	if errors.Is(err, ErrRejected) || !isUsageError(err) {
		return
	}

	mustN(fmt.Fprintln(w, lipgloss.JoinHorizontal(
		lipgloss.Left,
		styles.ErrorText.UnsetWidth().Render("Try"),
		styles.Program.Flag.Render("--help"),
		styles.ErrorText.UnsetWidth().UnsetMargins().UnsetTransform().PaddingLeft(1).Render("for usage."),
	)))
	mustN(fmt.Fprintln(w))
}

// XXX: Cobra does not type its usage errors.
// See: https://github.com/spf13/cobra/pull/2266
func isUsageError(err error) bool {
	s := err.Error()
	for _, prefix := range []string{
		"accepts at most",
		"flag needs an argument:",
		"invalid argument",
		"unknown command",
		"unknown flag:",
		"unknown shorthand flag:",
	} {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return false
}

func mustN(_ int, err error) {
	if err != nil {
		panic(err)
	}
}
