package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"scalp_bot/internal/store"
)

type rootConfig struct {
	storePath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rc := &rootConfig{}
	cmd := &cobra.Command{
		Use:           "scalpctl",
		Short:         "Inspect scalp bot state and export history",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&rc.storePath, "store", "data/state", "path to pebble state directory")

	cmd.AddCommand(
		newStateCmd(rc),
		newTradesCmd(rc),
		newDCACmd(rc),
	)
	return cmd
}

// withStore открывает хранилище только на чтение.
func (rc *rootConfig) withStore(fn func(s *store.Store) error) error {
	s, err := store.OpenReadOnly(rc.storePath)
	if err != nil {
		return err
	}
	defer s.Close()
	return errors.WithMessage(fn(s), "scalpctl")
}
