package cli

import (
	"context"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/dataset"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/usecase/lifecycle"
	"github.com/urfave/cli/v3"
)

func trainCommand() *cli.Command {
	var (
		cfg         config
		id          model.ModelID
		modelType   string
		params      string
		datasetPath string
		datasetName string
		quiet       bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "model-type",
			Aliases:     []string{"t"},
			Usage:       "Model type from the catalog (linearSVC, logreg)",
			Destination: &modelType,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "id",
			Usage:       "Model ID to create or replace; a new ID is generated when empty",
			Destination: (*string)(&id),
		},
		&cli.StringFlag{
			Name:        "params",
			Usage:       `Hyperparameters as a JSON object, e.g. {"C": 0.5}`,
			Destination: &params,
		},
		&cli.StringFlag{
			Name:        "dataset",
			Usage:       "JSON file with train_features, train_labels and optional test_features, test_labels",
			Destination: &datasetPath,
		},
		&cli.StringFlag{
			Name:        "dataset-name",
			Usage:       "Named BigQuery dataset from the catalog",
			Destination: &datasetName,
		},
		&cli.BoolFlag{
			Name:        "quiet",
			Aliases:     []string{"q"},
			Usage:       "Do not show progress",
			Destination: &quiet,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)

	return &cli.Command{
		Name:  "train",
		Usage: "Train a model and store it in the registry",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, err := cfg.setupLogger(ctx, nil)
			if err != nil {
				return err
			}

			input := lifecycle.TrainInput{
				ID:          id,
				ModelType:   model.ModelType(modelType),
				DatasetName: datasetName,
			}
			if params != "" {
				if err := json.Unmarshal([]byte(params), &input.Hyperparameters); err != nil {
					return goerr.Wrap(model.Mark(model.ErrInvalidInput, err), "hyperparameters must be a JSON object")
				}
			}
			if datasetPath != "" {
				input.Dataset, err = readDataset(datasetPath)
				if err != nil {
					return err
				}
			}

			uc, cleanup, err := cfg.newUseCase(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			if !quiet {
				s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
				s.Suffix = " training " + modelType
				s.Start()
				defer s.Stop()
			}

			out, err := uc.Train(ctx, input)
			if err != nil {
				return err
			}
			return printJSON(c.Root().Writer, out)
		},
	}
}

func readDataset(path string) (*dataset.Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(model.Mark(model.ErrInvalidInput, err), "failed to read dataset", goerr.V("path", path))
	}
	var ds dataset.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return nil, goerr.Wrap(model.Mark(model.ErrInvalidInput, err), "malformed dataset", goerr.V("path", path))
	}
	return &ds, nil
}
