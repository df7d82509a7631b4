package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/logging"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/session"
)

func checkCommand(load func() (*app, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Fetch and normalize the sheet, then report what was found",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			co := session.NewCoordinator(a.src, a.settings, nil, logging.Module(a.logger, "check"))
			ds, err := co.Dataset(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			opts := co.Options(ds)
			fmt.Fprintf(out, "source:     %s\n", a.src.Name())
			fmt.Fprintf(out, "spots:      %d\n", len(ds.Spots))
			fmt.Fprintf(out, "unplaced:   %d\n", ds.Unplaced)
			fmt.Fprintf(out, "malformed:  %d\n", len(ds.Skipped))
			fmt.Fprintf(out, "categories: %v\n", opts.Categories[1:])
			fmt.Fprintf(out, "people:     %v\n", opts.People[1:])
			for _, e := range ds.Skipped {
				fmt.Fprintf(out, "  %v\n", e)
			}
			return nil
		},
	}
}
