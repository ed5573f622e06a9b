package main

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/emontero/collmean/check"
	"github.com/emontero/collmean/collective"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "verify the collective operations against known expectations",
		RunE: func(cmd *cobra.Command, args []string) error {
			runner, err := newRunner()
			if err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			var summary check.Summary
			err = runner(rootFlags.procs, func(c *collective.Comm) error {
				got, valid, runErr := check.Run(c, log)
				if runErr != nil {
					return runErr
				}
				if valid {
					summary = got
				}
				return nil
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			names := make([]string, 0, len(summary.PassedMembers))
			for name := range summary.PassedMembers {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				status := "ok"
				if summary.PassedMembers[name] != summary.GroupSize {
					status = "FAILED"
				}
				fmt.Fprintf(out, "%-16s %d/%d members  %s\n",
					name, summary.PassedMembers[name], summary.GroupSize, status)
			}

			if !summary.Passed() {
				return errors.Errorf("%d check(s) failed", len(summary.Failures()))
			}
			fmt.Fprintln(out, "all checks passed")
			return nil
		},
	}
}
