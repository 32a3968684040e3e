// Package mcp serves the model lifecycle as MCP tools so agents can inspect
// models and run predictions.
package mcp

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/usecase/lifecycle"
	"github.com/m-mizutani/modelhub/pkg/utils/logging"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultListLimit = 100

type listModelsParams struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of models to return (default 100)"`
}

type getModelParams struct {
	ID string `json:"id" jsonschema:"Model ID"`
}

type predictParams struct {
	ID       string   `json:"id" jsonschema:"Model ID"`
	Features []string `json:"features" jsonschema:"Text rows to classify"`
}

type handler struct {
	uc *lifecycle.UseCase
}

// NewServer builds an MCP server exposing list_models, get_model and predict
func NewServer(uc *lifecycle.UseCase, version string) *mcp.Server {
	h := &handler{uc: uc}
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "modelhub",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_models",
		Description: "List trained text classification models with their type, hyperparameters and scores",
	}, h.listModels)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_model",
		Description: "Get metadata of one trained model",
	}, h.getModel)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "predict",
		Description: "Classify text rows with a trained model. Returns one label per row in input order",
	}, h.predict)

	return server
}

// ServeStdio runs the MCP server on stdin/stdout until ctx is done
func ServeStdio(ctx context.Context, uc *lifecycle.UseCase, version string) error {
	if err := NewServer(uc, version).Run(ctx, &mcp.StdioTransport{}); err != nil {
		return goerr.Wrap(err, "MCP server stopped")
	}
	return nil
}

// Handler serves the MCP server over streamable HTTP
func Handler(uc *lifecycle.UseCase, version string) http.Handler {
	server := NewServer(uc, version)
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return server
	}, nil)
}

func (h *handler) listModels(ctx context.Context, req *mcp.CallToolRequest, params listModelsParams) (*mcp.CallToolResult, any, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	models, err := h.uc.List(ctx, limit)
	if err != nil {
		return nil, nil, toolError(ctx, "list_models", err)
	}
	if models == nil {
		models = []*model.Metadata{}
	}
	return jsonResult(map[string]any{"models": models})
}

func (h *handler) getModel(ctx context.Context, req *mcp.CallToolRequest, params getModelParams) (*mcp.CallToolResult, any, error) {
	meta, err := h.uc.Get(ctx, model.ModelID(params.ID))
	if err != nil {
		return nil, nil, toolError(ctx, "get_model", err)
	}
	return jsonResult(meta)
}

func (h *handler) predict(ctx context.Context, req *mcp.CallToolRequest, params predictParams) (*mcp.CallToolResult, any, error) {
	labels, err := h.uc.Predict(ctx, model.ModelID(params.ID), params.Features)
	if err != nil {
		return nil, nil, toolError(ctx, "predict", err)
	}
	return jsonResult(map[string]any{"id": params.ID, "predictions": labels})
}

func jsonResult(v any) (*mcp.CallToolResult, any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, nil, goerr.Wrap(err, "failed to marshal tool result")
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(raw)}},
	}, nil, nil
}

// toolError prefixes the error kind so the caller can branch without parsing
// the message
func toolError(ctx context.Context, tool string, err error) error {
	kind := model.KindOf(err)
	logging.From(ctx).Warn("MCP tool failed", "tool", tool, "kind", kind, "error", err)
	return fmt.Errorf("%s: %w", kind, err)
}
