package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"ccload/internal/cli"
	"ccload/internal/storage"
	"ccload/internal/tui/styles"
)

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(v)
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.List(v.GetInt("limit"))
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), styles.Subtle.Render("No runs recorded yet."))
				return nil
			}

			t := table.New().
				Border(lipgloss.NormalBorder()).
				BorderStyle(styles.Subtle).
				StyleFunc(func(row, col int) lipgloss.Style {
					if row == table.HeaderRow {
						return styles.Title.Padding(0, 1)
					}
					return styles.Text.Padding(0, 1)
				}).
				Headers("ID", "TIME", "MODE", "TARGET", "N", "C", "SUCCESS")
			for _, item := range items {
				t.Row(
					item.ID,
					item.Timestamp.Local().Format("2006-01-02 15:04:05"),
					item.Mode,
					item.Spec.Target,
					strconv.Itoa(item.Spec.Requests),
					strconv.Itoa(item.Spec.Concurrency),
					successRate(item),
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.String())
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Number of runs to list (0 lists all)")

	show := &cobra.Command{
		Use:   "show ID",
		Short: "Print the reports of a previous run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory(v)
			if err != nil {
				return err
			}
			defer store.Close()

			item, err := store.Get(args[0])
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("no run with id %s", args[0])
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s  %s  %s\n\n",
				styles.Subtle.Render("Run"), item.ID, item.Mode, item.Timestamp.Local().Format("2006-01-02 15:04:05"))
			for _, r := range item.Reports {
				cli.Display(out, r.Target, r.Statistics)
			}
			return nil
		},
	}
	cmd.AddCommand(show)

	cmd.PersistentFlags().String("history-db", "", "History database (default is $HOME/.ccload/history.db)")
	return cmd
}

func openHistory(v *viper.Viper) (*storage.Store, error) {
	path := v.GetString("history-db")
	if path == "" {
		var err error
		if path, err = storage.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return storage.Open(path)
}

// successRate sums all reports of a run, skipping the combined report of a
// distributed run so workers are not counted twice.
func successRate(item storage.HistoryItem) string {
	var total, ok int
	for _, r := range item.Reports {
		if strings.HasSuffix(r.Target, "(combined)") {
			continue
		}
		total += r.Statistics.TotalRequests
		ok += r.Statistics.SuccessfulRequests
	}
	if total == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", 100*float64(ok)/float64(total))
}
