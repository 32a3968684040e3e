package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/dataset"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/usecase/lifecycle"
)

type trainRequest struct {
	ModelType       model.ModelType  `json:"model_type" validate:"required"`
	Hyperparameters map[string]any   `json:"hyperparameters"`
	Dataset         *dataset.Dataset `json:"dataset" validate:"required_without=DatasetName"`
	DatasetName     string           `json:"dataset_name"`
}

type predictRequest struct {
	Features []string `json:"features" validate:"required,min=1"`
}

type predictResponse struct {
	ID          model.ModelID `json:"id"`
	Predictions []string      `json:"predictions"`
}

type listResponse struct {
	Models []*model.Metadata `json:"models"`
}

func pathID(r *http.Request) model.ModelID {
	return model.ModelID(chi.URLParam(r, "id"))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	s.train(w, r, "", http.StatusCreated)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	s.train(w, r, pathID(r), http.StatusOK)
}

func (s *Server) train(w http.ResponseWriter, r *http.Request, id model.ModelID, status int) {
	var req trainRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := s.uc.Train(r.Context(), lifecycle.TrainInput{
		ID:              id,
		ModelType:       req.ModelType,
		Hyperparameters: req.Hyperparameters,
		Dataset:         req.Dataset,
		DatasetName:     req.DatasetName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, status, out)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, r, goerr.Wrap(model.ErrInvalidInput, "limit must be a positive integer", goerr.V("limit", v)))
			return
		}
		limit = min(n, maxListLimit)
	}

	models, err := s.uc.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if models == nil {
		models = []*model.Metadata{}
	}
	writeJSON(w, r, http.StatusOK, listResponse{Models: models})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	meta, err := s.uc.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, meta)
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	id := pathID(r)
	labels, err := s.uc.Predict(r.Context(), id, req.Features)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, predictResponse{ID: id, Predictions: labels})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if err := s.uc.Remove(r.Context(), pathID(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
