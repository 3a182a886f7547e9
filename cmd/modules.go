package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"modhost/pkg/modules"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List built-in modules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args
		return writeCatalog(cmd.OutOrStdout(), modules.IDs())
	},
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}

func writeCatalog(w io.Writer, ids []string) error {
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("44"))
	if _, err := fmt.Fprintln(w, title.Render("Built-in modules")); err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := fmt.Fprintf(w, "  %s\n", id); err != nil {
			return err
		}
	}
	return nil
}
