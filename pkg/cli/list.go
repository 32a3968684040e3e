package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	var (
		cfg    config
		limit  int64
		asJSON bool
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of models to list",
			Value:       100,
			Sources:     cli.EnvVars("MODELHUB_LIST_LIMIT"),
			Destination: &limit,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "Print metadata as JSON",
			Destination: &asJSON,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List trained models",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx, nil)
			if err != nil {
				return err
			}
			uc, cleanup, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			models, err := uc.List(ctx, int(limit))
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(c.Root().Writer, models)
			}
			for _, m := range models {
				score := "-"
				if m.TestScore != nil {
					score = fmt.Sprintf("%.3f", *m.TestScore)
				}
				fmt.Fprintf(c.Root().Writer, "%s\t%s\t%s\t%s\n",
					m.ID, m.ModelType, score, m.UpdatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}
