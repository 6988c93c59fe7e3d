package main

import (
	"github.com/spf13/cobra"

	"github.com/AlouiLouai/educ/internal/service"
)

func init() {
	SweepCommand.Flags().Duration("older-than", 0, "minimum identity age, defaults to worker.orphanage")
	RootCmd.AddCommand(&SweepCommand)
}

var SweepCommand = cobra.Command{
	Use:   "sweep",
	Short: "Delete identities that never got a profile",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		age, err := cmd.Flags().GetDuration("older-than")
		if err != nil {
			return err
		}
		if age <= 0 {
			age = cfg.Worker.OrphanAge
		}

		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		removed, err := service.NewSweeper(b.identities, b.identity, age, logger).Sweep(ctx)
		if err != nil {
			return err
		}
		cmd.Printf("removed %d orphan identities\n", removed)
		return nil
	},
}
