package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pragmatiks/pragma/internal/filter"
	"github.com/pragmatiks/pragma/internal/output"
)

func newOpsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ops",
		Short: "Operational inspection of the platform",
	}
	deadLetter := &cobra.Command{
		Use:   "dead-letter",
		Short: "Inspect failed provider events",
	}
	deadLetter.AddCommand(newDeadLetterListCmd())
	deadLetter.AddCommand(newDeadLetterShowCmd())
	cmd.AddCommand(deadLetter)
	return cmd
}

func newDeadLetterListCmd() *cobra.Command {
	var (
		provider   string
		filterExpr string
		format     string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead letter events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := output.ParseFormat(format)
			if err != nil {
				return err
			}
			var pred *filter.Predicate
			if filterExpr != "" {
				if pred, err = filter.Compile(filterExpr); err != nil {
					return err
				}
			}
			sess, err := newSession(true)
			if err != nil {
				return err
			}
			events, err := sess.Client.ListDeadLetterEvents(cmd.Context(), provider)
			if err != nil {
				return err
			}
			if pred != nil {
				kept := events[:0]
				for _, event := range events {
					ok, err := pred.Match(event)
					if err != nil {
						return err
					}
					if ok {
						kept = append(kept, event)
					}
				}
				events = kept
			}
			switch out {
			case output.FormatJSON:
				return output.JSON(os.Stdout, events)
			case output.FormatYAML:
				return output.YAML(os.Stdout, events)
			}
			if len(events) == 0 {
				fmt.Println("No dead letter events found")
				return nil
			}
			table := output.NewTable(os.Stdout, "ID", "PROVIDER", "RESOURCE", "NAME", "FAILED AT", "ERROR")
			for _, event := range events {
				table.Row(event.ID, event.Provider, event.ResourceType, event.ResourceName,
					event.FailedAt, output.Truncate(event.ErrorMessage, 60))
			}
			return table.Flush()
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&filterExpr, "filter", "", "Client-side filter expression")
	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format: table, json, or yaml")
	return cmd
}

func newDeadLetterShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one dead letter event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := newSession(true)
			if err != nil {
				return err
			}
			event, err := sess.Client.GetDeadLetterEvent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return output.JSON(os.Stdout, event)
		},
	}
}
