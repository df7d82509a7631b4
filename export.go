package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/excel"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/filter"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/logging"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/models"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/session"
)

func exportCommand(load func() (*app, error)) *cobra.Command {
	crit := models.AllCriteria()
	var minScore, out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered spots to an xlsx file",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := filter.ParseMinScore(minScore)
			if err != nil {
				return err
			}
			crit.MinScore = n

			a, err := load()
			if err != nil {
				return err
			}
			co := session.NewCoordinator(a.src, a.settings, nil, logging.Module(a.logger, "export"))
			v, err := co.View(cmd.Context(), crit)
			if err != nil {
				return err
			}
			if err := excel.SaveSpots(out, v.Spots, "Miejsca"); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d spots written to %s\n", len(v.Spots), out)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&crit.Category, "category", models.AllCategories, "category to keep")
	f.StringVar(&crit.Person, "person", models.AllPeople, "keep spots rated by this person")
	f.StringVar(&crit.Visit, "visit", models.AllVisits, "visit status to keep")
	f.StringVar(&minScore, "min-score", models.NoMinScore, "minimum score, 1-5")
	f.StringVarP(&out, "out", "o", "spots.xlsx", "output file")
	return cmd
}
