package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"modhost/pkg/store"
)

const maxValueWidth = 50

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect persisted setting values",
	Long: `Inspect or reset the setting values modules have persisted.

Examples:
  modhost settings list
  modhost settings list developer.Sample_Module
  modhost settings reset developer.Sample_Module sample_bool`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list [module]",
	Short: "List persisted values",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSettingsList,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset <module> <accessId>",
	Short: "Forget a persisted value so the module default applies on next load",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsReset,
}

func init() {
	rootCmd.AddCommand(settingsCmd)

	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsResetCmd)
}

func openConfiguredStore() (store.Store, error) {
	cfg, _, err := loadConfig(io.Discard)
	if err != nil {
		return nil, err
	}
	return openStore(cfg.Store)
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	st, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	moduleIDs := args
	if len(moduleIDs) == 0 {
		moduleIDs, err = st.Modules(ctx)
		if err != nil {
			return fmt.Errorf("list modules: %w", err)
		}
	}

	var entries []store.Entry
	for _, id := range moduleIDs {
		moduleEntries, err := st.List(ctx, id)
		if err != nil {
			return fmt.Errorf("list settings of %s: %w", id, err)
		}
		entries = append(entries, moduleEntries...)
	}

	return writeEntries(cmd.OutOrStdout(), entries)
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	st, err := openConfiguredStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	key := store.Key{ModuleID: args[0], AccessID: args[1]}
	if err := st.Delete(ctx, key); err != nil {
		return fmt.Errorf("reset %s: %w", key, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s Reset %s\n", checkMark(), key)
	return nil
}

func writeEntries(w io.Writer, entries []store.Entry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No settings persisted.")
		return err
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("44")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("67"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("MODULE", "ACCESS ID", "VALUE", "UPDATED")

	for _, e := range entries {
		value := e.Value
		if len(value) > maxValueWidth {
			value = value[:maxValueWidth-3] + "..."
		}
		updated := ""
		if !e.UpdatedAt.IsZero() {
			updated = e.UpdatedAt.Local().Format("2006-01-02 15:04:05")
		}
		t.Row(e.ModuleID, e.AccessID, value, updated)
	}

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func checkMark() string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Render("✓")
}
