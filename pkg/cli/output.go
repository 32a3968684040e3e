package cli

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal output")
	}
	fmt.Fprintf(w, "%s\n", string(data))
	return nil
}
