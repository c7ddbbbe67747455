package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/km-arc/go-builder/framework/app"
)

var (
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
	styleKind   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleCached = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

func newListCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every alias with its instruction kind",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load(cmd.Context(), cmd, f)
			if err != nil {
				return err
			}
			defer a.Close()
			return printAliases(cmd.OutOrStdout(), a)
		},
	}
}

// aliasEntry is one row of the list output.
type aliasEntry struct {
	alias  string
	kind   string // instruction kind, or "value" for Set-only aliases
	cached bool
}

func collectAliases(a *app.Application) []aliasEntry {
	ins := a.Instructions()
	var out []aliasEntry
	for _, alias := range a.Aliases() {
		e := aliasEntry{alias: alias, kind: "value"}
		if in, ok := ins[alias]; ok {
			e.kind = in.Kind().String()
		}
		_, e.cached = a.Resolved(alias)
		out = append(out, e)
	}
	return out
}

func printAliases(w io.Writer, a *app.Application) error {
	entries := collectAliases(a)
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "no aliases found")
		return err
	}

	width := len("ALIAS")
	for _, e := range entries {
		width = max(width, len(e.alias))
	}
	col := lipgloss.NewStyle().Width(width + 2)

	if _, err := fmt.Fprintln(w, styleHeader.Render(col.Render("ALIAS")+"KIND")); err != nil {
		return err
	}
	for _, e := range entries {
		line := col.Render(e.alias) + styleKind.Render(e.kind)
		if e.cached {
			line += " " + styleCached.Render("(cached)")
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
