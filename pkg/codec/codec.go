// Package codec converts a fitted pipeline to and from artifact bytes.
//
// An artifact is the 4-byte magic "MHUB", one format version byte, and a
// zstd-compressed JSON envelope holding the vectorizer state, the estimator
// state and the label set.
package codec

import (
	"bytes"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/ml"
	"github.com/m-mizutani/modelhub/pkg/model"
)

const (
	magic         = "MHUB"
	formatVersion = byte(1)
	headerSize    = len(magic) + 1
)

type envelope struct {
	ModelType      model.ModelType   `json:"model_type"`
	VectorizerKind ml.VectorizerKind `json:"vectorizer_kind"`
	Vectorizer     json.RawMessage   `json:"vectorizer"`
	Estimator      json.RawMessage   `json:"estimator"`
	Classes        []string          `json:"classes"`
}

// Encode serializes a fitted pipeline
func Encode(p *ml.Pipeline) ([]byte, error) {
	if p == nil || !p.Fitted() {
		return nil, goerr.Wrap(model.ErrNotFitted, "only fitted pipelines can be encoded")
	}

	vec, err := json.Marshal(p.Vectorizer)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal vectorizer")
	}
	est, err := json.Marshal(p.Estimator)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal estimator")
	}
	body, err := json.Marshal(envelope{
		ModelType:      p.Estimator.Kind(),
		VectorizerKind: p.Vectorizer.Kind(),
		Vectorizer:     vec,
		Estimator:      est,
		Classes:        p.Classes,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal artifact envelope")
	}

	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(formatVersion)

	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create zstd writer")
	}
	if _, err := zw.Write(body); err != nil {
		_ = zw.Close()
		return nil, goerr.Wrap(err, "failed to compress artifact")
	}
	if err := zw.Close(); err != nil {
		return nil, goerr.Wrap(err, "failed to flush artifact")
	}
	return buf.Bytes(), nil
}

// Decode restores a fitted pipeline. Any malformed input is reported as
// model.ErrCorruptArtifact.
func Decode(data []byte) (*ml.Pipeline, error) {
	if len(data) < headerSize || string(data[:len(magic)]) != magic {
		return nil, goerr.Wrap(model.ErrCorruptArtifact, "missing artifact header")
	}
	if v := data[len(magic)]; v != formatVersion {
		return nil, goerr.Wrap(model.ErrCorruptArtifact, "unsupported artifact version", goerr.V("version", v))
	}

	zr, err := zstd.NewReader(nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create zstd reader")
	}
	defer zr.Close()

	body, err := zr.DecodeAll(data[headerSize:], nil)
	if err != nil {
		return nil, goerr.Wrap(model.ErrCorruptArtifact, "failed to decompress artifact", goerr.V("error", err.Error()))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, goerr.Wrap(model.ErrCorruptArtifact, "failed to parse artifact envelope", goerr.V("error", err.Error()))
	}

	vec, err := ml.EmptyVectorizer(env.VectorizerKind)
	if err != nil {
		return nil, goerr.Wrap(model.ErrCorruptArtifact, "unknown vectorizer", goerr.V("kind", env.VectorizerKind))
	}
	if err := json.Unmarshal(env.Vectorizer, vec); err != nil {
		return nil, goerr.Wrap(model.ErrCorruptArtifact, "failed to restore vectorizer", goerr.V("error", err.Error()))
	}

	est, err := ml.EmptyEstimator(env.ModelType)
	if err != nil {
		return nil, goerr.Wrap(model.ErrCorruptArtifact, "unknown estimator", goerr.V("kind", env.ModelType))
	}
	if err := json.Unmarshal(env.Estimator, est); err != nil {
		return nil, goerr.Wrap(model.ErrCorruptArtifact, "failed to restore estimator", goerr.V("error", err.Error()))
	}

	if len(env.Classes) < 2 {
		return nil, goerr.Wrap(model.ErrCorruptArtifact, "artifact has no label set")
	}
	if err := vec.Validate(); err != nil {
		return nil, goerr.Wrap(model.Mark(model.ErrCorruptArtifact, err), "inconsistent vectorizer state")
	}
	if err := est.Validate(vec.Features(), len(env.Classes)); err != nil {
		return nil, goerr.Wrap(model.Mark(model.ErrCorruptArtifact, err), "inconsistent estimator state",
			goerr.V("model_type", env.ModelType))
	}

	p := ml.NewPipeline(vec, est)
	p.Classes = env.Classes
	return p, nil
}
