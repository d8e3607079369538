package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nixlim/stackview/internal/storage"
)

var recordingsCmd = &cobra.Command{
	Use:   "recordings [db]",
	Short: "List the recordings stored in a trace database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		path := cfg.Storage.DBPath
		if len(args) == 1 {
			path = args[0]
		}

		recs, err := storage.ListRecordings(cmd.Context(), path)
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			fmt.Fprintf(os.Stderr, "no recordings in %s\n", path)
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCREATED\tEVENTS\tSOURCE")
		for _, r := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", r.ID, r.CreatedAt, r.Events, r.Source)
		}
		return tw.Flush()
	},
}
