package main

import (
	"os"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/threadkeeper/internal/config"
	"github.com/ibeckermayer/threadkeeper/internal/report"
	"github.com/ibeckermayer/threadkeeper/internal/store"
)

var (
	unitsAuthor string
	unitsLimit  int
	runsLimit   int
)

func openStore() (*store.Store, error) {
	dir, err := config.CacheDir()
	if err != nil {
		return nil, err
	}
	return store.Open(store.DefaultPath(dir))
}

var unitsCmd = &cobra.Command{
	Use:   "units",
	Short: "List registered units, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		rows, err := st.ListUnits(cmd.Context(), unitsAuthor, unitsLimit)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"ID", "Author", "Status", "Registered", "Likes", "Transcript", "Text"})
		for _, r := range rows {
			transcript := ""
			if r.Transcript != "" {
				transcript = strconv.Itoa(len([]rune(r.Transcript))) + " chars"
			}
			t.AppendRow(table.Row{
				r.Unit.PrimaryID,
				"@" + r.Unit.Author,
				r.Status,
				r.RegisteredAt.Local().Format("2006-01-02 15:04"),
				r.Unit.Metrics.Likes,
				transcript,
				report.Preview(r.Unit.Text, 40),
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Run", "Mode", "Author", "Started", "Threads", "Admitted", "Persisted", "Failed"})
		for _, r := range runs {
			t.AppendRow(table.Row{
				r.ID, r.Mode, r.Author,
				r.StartedAt.Local().Format("2006-01-02 15:04"),
				r.ThreadsVisited, r.Admitted, r.Persisted, r.Failed,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}

var markCmd = &cobra.Command{
	Use:   "mark <id> <status>",
	Short: "Set the status of a registered unit",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		return st.SetStatus(cmd.Context(), args[0], args[1])
	},
}

func init() {
	unitsCmd.Flags().StringVar(&unitsAuthor, "author", "", "only units by this handle")
	unitsCmd.Flags().IntVar(&unitsLimit, "limit", 20, "number of units to show")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 10, "number of runs to show")
	rootCmd.AddCommand(unitsCmd, runsCmd, markCmd)
}
