package main

import (
	"github.com/spf13/cobra"
)

func resultsCmd() *cobra.Command {
	var failedOnly bool
	var showFindings bool
	cmd := &cobra.Command{
		Use:          "results",
		Short:        "List stored test results",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, err := openStore()
			if err != nil {
				return err
			}
			defer closeFn()

			ctx := cmd.Context()
			records, err := st.GetTestResults(ctx)
			if err != nil {
				return err
			}
			for _, rec := range records {
				if failedOnly && rec.Passed {
					continue
				}
				status := "PASS"
				if !rec.Passed {
					status = "FAIL"
				}
				cmd.Printf("%s  %s  %s  turns=%d  %dms  %s\n",
					rec.CreatedAt, status, rec.ScenarioName, rec.TurnCount, rec.DurationMs, rec.TestID)
				if rec.Summary != "" {
					cmd.Printf("      %s\n", rec.Summary)
				}
				if rec.ErrorMessage != "" {
					cmd.Printf("      error: %s\n", rec.ErrorMessage)
				}
			}

			if showFindings {
				findings, err := st.GetFindings(ctx)
				if err != nil {
					return err
				}
				for _, f := range findings {
					cmd.Printf("finding %s  x%d  %s  %s\n", f.Code, f.Occurrences, f.Location, f.Phrase)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "show only failed tests")
	cmd.Flags().BoolVar(&showFindings, "findings", false, "also list deduplicated findings")
	return cmd
}
