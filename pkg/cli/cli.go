package cli

import (
	"context"

	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const version = "0.1.0"

type Error struct {
	Code    int
	Message string
}

// exit codes by error kind so scripts can tell user errors from outages
var exitCodes = map[model.ErrorKind]int{
	model.KindBadInput:      2,
	model.KindNotFound:      3,
	model.KindUnprocessable: 4,
	model.KindInconsistent:  5,
	model.KindUnavailable:   6,
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:    "modelhub",
		Usage:   "Train, store and serve text classification models",
		Version: version,
		Commands: []*cli.Command{
			serveCommand(),
			trainCommand(),
			predictCommand(),
			listCommand(),
			showCommand(),
			removeCommand(),
			mcpCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		kind := model.KindOf(err)
		logging.Default().Error("command failed", "error", err, "kind", kind)

		code, ok := exitCodes[kind]
		if !ok {
			code = 1
		}
		return &Error{
			Code:    code,
			Message: err.Error(),
		}
	}

	return nil
}
