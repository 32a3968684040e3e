// Package policy evaluates the training admission policy. Policies are
// Rego modules under package "train" that may emit deny messages:
//
//	package train
//
//	deny contains msg if {
//		input.train_size < 10
//		msg := "need at least 10 training rows"
//	}
package policy

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

const trainQuery = "data.train"

// Input is the document a training policy sees as `input`
type Input struct {
	ModelType       model.ModelType `json:"model_type"`
	Hyperparameters map[string]any  `json:"hyperparameters"`
	TrainSize       int             `json:"train_size"`
	TestSize        int             `json:"test_size"`
}

type result struct {
	Deny []string `json:"deny"`
}

// regoPrintHook forwards Rego print() output to the context logger
type regoPrintHook struct {
	ctx context.Context
}

func (h *regoPrintHook) Print(_ print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message)
	return nil
}

// Engine evaluates the training policy. A nil query allows everything.
type Engine struct {
	query *rego.PreparedEvalQuery
}

// New loads policies from policyDir. An empty policyDir yields an engine
// that allows every request.
func New(ctx context.Context, policyDir string) (*Engine, error) {
	if policyDir == "" {
		return &Engine{}, nil
	}
	query, err := loadPolicy(ctx, policyDir, trainQuery)
	if err != nil {
		return nil, err
	}
	return &Engine{query: query}, nil
}

// Enabled reports whether any policy is loaded
func (e *Engine) Enabled() bool {
	return e != nil && e.query != nil
}

// Check returns model.ErrPolicyDenied carrying every deny message when the
// policy rejects the request
func (e *Engine) Check(ctx context.Context, input *Input) error {
	if !e.Enabled() {
		return nil
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal policy input")
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return goerr.Wrap(err, "failed to build policy input")
	}

	rs, err := e.query.Eval(ctx, rego.EvalInput(doc), rego.EvalPrintHook(&regoPrintHook{ctx: ctx}))
	if err != nil {
		return goerr.Wrap(err, "failed to evaluate training policy")
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil
	}

	out, err := json.Marshal(rs[0].Expressions[0].Value)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal policy result")
	}
	var res result
	if err := json.Unmarshal(out, &res); err != nil {
		return goerr.Wrap(err, "unexpected policy result", goerr.V("result", string(out)))
	}

	if len(res.Deny) > 0 {
		sort.Strings(res.Deny)
		return goerr.Wrap(model.Mark(model.ErrPolicyDenied, &DeniedError{Reasons: res.Deny}),
			"training denied by policy", goerr.V("model_type", input.ModelType))
	}
	return nil
}

// DeniedError carries the deny messages of a rejected request
type DeniedError struct {
	Reasons []string
}

func (e *DeniedError) Error() string {
	return "denied: " + strings.Join(e.Reasons, "; ")
}

// Reasons extracts the deny messages from an error returned by Check
func Reasons(err error) []string {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return denied.Reasons
	}
	return nil
}
