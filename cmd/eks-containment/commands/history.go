package commands

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	prettytable "github.com/tatsushid/go-prettytable"

	"github.com/fairwindsops/insights-plugins/plugins/eks-containment/pkg/evidence"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := evidenceStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		objects, err := store.List(cmd.Context(), evidence.RunsPrefix)
		if err != nil {
			return fmt.Errorf("failed to list evidence in %s: %w", store.Location(), err)
		}
		rows := historyRows(objects, historyLimit)
		if len(rows) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "No runs recorded in %s\n", store.Location())
			return nil
		}
		return printHistory(rows)
	},
}

func init() {
	RootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list, 0 for all")
}

type historyRow struct {
	Written string
	Kind    string
	Key     string
}

func historyRows(objects []evidence.Object, limit int) []historyRow {
	sorted := append([]evidence.Object(nil), objects...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].LastModified.Equal(sorted[j].LastModified) {
			return sorted[i].Key > sorted[j].Key
		}
		return sorted[i].LastModified.After(sorted[j].LastModified)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	rows := make([]historyRow, 0, len(sorted))
	for _, o := range sorted {
		rows = append(rows, historyRow{
			Written: o.LastModified.UTC().Format(time.RFC3339),
			Kind:    strings.TrimSuffix(path.Base(o.Key), ".json"),
			Key:     o.Key,
		})
	}
	return rows
}

func printHistory(rows []historyRow) error {
	table, err := prettytable.NewTable(
		prettytable.Column{Header: "Written"},
		prettytable.Column{Header: "Kind"},
		prettytable.Column{Header: "Key"},
	)
	if err != nil {
		return err
	}
	table.Separator = " | "
	for _, row := range rows {
		table.AddRow(row.Written, row.Kind, row.Key)
	}
	table.Print()
	return nil
}
