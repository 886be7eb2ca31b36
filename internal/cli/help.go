package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/chaincache/internal/output"
)

// walkCommands calls fn for cmd and every descendant, parents first.
func walkCommands(cmd *cobra.Command, fn func(*cobra.Command)) {
	fn(cmd)
	for _, sub := range cmd.Commands() {
		walkCommands(sub, fn)
	}
}

// enrichParentLong appends a table of the available subcommands to a parent
// command's Long text. Commands without subcommands are left alone.
func enrichParentLong(cmd *cobra.Command) {
	t := output.NewTable()
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			t.AddRow(sub.Name(), sub.Short)
		}
	}
	if t.Len() == 0 {
		return
	}

	var sb strings.Builder
	sb.WriteString(cmd.Long)
	sb.WriteString("\n\nSubcommands:\n")
	for _, line := range strings.Split(t.String(), "\n") {
		sb.WriteString(" " + strings.TrimRight(line, " ") + "\n")
	}
	cmd.Long = sb.String()
}
