package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"scalp_bot/internal/helper"
	"scalp_bot/internal/store"
)

func newStateCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Print tracked position levels and exit targets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.withStore(func(s *store.Store) error {
				snap, err := s.Load()
				if err != nil {
					return err
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "SYMBOL\tDIR\tENTRY\tSIZE\tEXIT\tDCA\tTP ORDER\tOPENED")
				for _, sym := range helper.SortedKeys(snap.Levels) {
					l := snap.Levels[sym]
					order := "-"
					if t := snap.Targets[sym]; t != nil {
						order = "manual"
						if !t.Manual() {
							order = t.OrderID
						}
					}
					fmt.Fprintf(tw, "%s\t%s\t%g\t%g\t%g\t%d\t%s\t%s\n",
						sym, l.Direction, l.EntryPrice, l.Size, l.ExitPrice, l.DcaCount(), order,
						l.OpenedAt.Format(time.RFC3339))
				}
				for _, sym := range helper.SortedKeys(snap.Targets) {
					if snap.Levels[sym] != nil {
						continue
					}
					t := snap.Targets[sym]
					fmt.Fprintf(tw, "%s\t-\t-\t%g\t%g\t-\t%s\t%s\n",
						sym, t.Size, t.Price, t.OrderID, t.CreatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}
