package main

import (
	"github.com/spf13/cobra"
)

func (cli *commandLine) remindFeesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remindfees",
		Short: "Email every student their overdue fees",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := cli.feeSvc.RemindOverdue(cmd.Context())
			if err != nil {
				return err
			}
			// emails are sent in the background
			if w, ok := cli.mailSvc.(interface{ Wait() }); ok {
				w.Wait()
			}
			cmd.Printf("%d student(s) reminded\n", n)
			return nil
		},
	}
}
