package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/utils/logging"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    model.ErrorKind `json:"kind"`
	Message string          `json:"message"`
}

func statusOf(kind model.ErrorKind) int {
	switch kind {
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindBadInput:
		return http.StatusBadRequest
	case model.KindUnprocessable:
		return http.StatusUnprocessableEntity
	case model.KindInconsistent:
		return http.StatusConflict
	case model.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.From(r.Context()).Error("failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	status := statusOf(kind)

	logger := logging.From(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err, "kind", kind)
	} else {
		logger.Warn("request rejected", "error", err, "kind", kind)
	}

	writeJSON(w, r, status, errorBody{Error: errorDetail{Kind: kind, Message: err.Error()}})
}

// decodeBody reads a JSON request body of at most maxBodyBytes into dst and
// runs struct validation
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return goerr.Wrap(model.ErrInvalidInput, "request body too large", goerr.V("limit", tooLarge.Limit))
		}
		return goerr.Wrap(model.Mark(model.ErrInvalidInput, err), "failed to read request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return goerr.Wrap(model.Mark(model.ErrInvalidInput, err), "malformed request body")
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return goerr.Wrap(model.ErrInvalidInput, "invalid request",
				goerr.V("field", verrs[0].Field()), goerr.V("rule", verrs[0].Tag()))
		}
		return goerr.Wrap(model.Mark(model.ErrInvalidInput, err), "invalid request")
	}
	return nil
}
