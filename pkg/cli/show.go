package cli

import (
	"context"

	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/urfave/cli/v3"
)

func idFlag(id *model.ModelID) cli.Flag {
	return &cli.StringFlag{
		Name:        "id",
		Usage:       "Model ID",
		Sources:     cli.EnvVars("MODELHUB_MODEL_ID"),
		Destination: (*string)(id),
		Required:    true,
	}
}

func showCommand() *cli.Command {
	var (
		cfg config
		id  model.ModelID
	)

	flags := []cli.Flag{idFlag(&id)}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "show",
		Usage: "Show metadata of a model",
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

			meta, err := uc.Get(ctx, id)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, meta)
		},
	}
}

func removeCommand() *cli.Command {
	var (
		cfg config
		id  model.ModelID
	)

	flags := []cli.Flag{idFlag(&id)}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "remove",
		Usage: "Delete a model artifact and its metadata",
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

			return uc.Remove(ctx, id)
		},
	}
}
