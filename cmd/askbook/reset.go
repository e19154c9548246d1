package main

import (
	"context"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete and recreate the vector collection",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx := context.Background()
		if err := a.ingest.Reset(ctx); err != nil {
			return err
		}
		cmd.Printf("Collection %s reset\n", a.ingest.Collection())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}
