package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewHealthCmd creates the health command
func NewHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the detection service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Remote.Health(cmd.Context()); err != nil {
				return fmt.Errorf("%s is unhealthy: %w", a.Remote.BaseURL(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is healthy\n", a.Remote.BaseURL())
			return nil
		},
	}
}
