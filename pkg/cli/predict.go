package cli

import (
	"bufio"
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/urfave/cli/v3"
)

func predictCommand() *cli.Command {
	var (
		cfg   config
		id    model.ModelID
		input string
	)

	flags := []cli.Flag{
		idFlag(&id),
		&cli.StringFlag{
			Name:        "input",
			Aliases:     []string{"i"},
			Usage:       "File with one text row per line; rows are read from arguments when omitted",
			Destination: &input,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:      "predict",
		Usage:     "Classify text rows with a stored model",
		ArgsUsage: "[text...]",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx, nil)
			if err != nil {
				return err
			}

			features := c.Args().Slice()
			if input != "" {
				features, err = readLines(input)
				if err != nil {
					return err
				}
			}

			uc, cleanup, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			labels, err := uc.Predict(ctx, id, features)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, map[string]any{
				"id":          id,
				"predictions": labels,
			})
		},
	}
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(model.Mark(model.ErrInvalidInput, err), "failed to open input", goerr.V("path", path))
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to read input", goerr.V("path", path))
	}
	return lines, nil
}
