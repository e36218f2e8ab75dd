package main

import (
	"github.com/spf13/cobra"

	"scalp_bot/internal/journal"
	"scalp_bot/internal/store"
)

func newTradesCmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "trades",
		Short: "Export trade history as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.withStore(func(s *store.Store) error {
				recs, err := s.Trades()
				if err != nil {
					return err
				}
				return journal.WriteTrades(cmd.OutOrStdout(), recs)
			})
		},
	}
}

func newDCACmd(rc *rootConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "dca",
		Short: "Export DCA history as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return rc.withStore(func(s *store.Store) error {
				recs, err := s.DCAHistory()
				if err != nil {
					return err
				}
				return journal.WriteDCA(cmd.OutOrStdout(), recs)
			})
		},
	}
}
