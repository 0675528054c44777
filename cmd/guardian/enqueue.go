package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/feichai0017/pii-guardian/internal/utils/validator"
)

// NewEnqueueCmd creates the enqueue command
func NewEnqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue [image...]",
		Short: "Queue images for background redaction",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			redactor, err := a.Redactor()
			if err != nil {
				return err
			}
			v := validator.NewImageValidator(a.Logger, &validator.ValidatorConfig{
				MaxFileSize:  a.Config.Workflow.MaxFileSize,
				SniffContent: true,
			})

			for _, path := range args {
				file, err := readSourceFile(path)
				if err != nil {
					return err
				}
				accepted, err := v.Accept(file.Name, file.MediaType, file.Data)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				status, err := redactor.Submit(cmd.Context(), accepted)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", status.TaskID, status.Status, path)
			}
			return nil
		},
	}
}
