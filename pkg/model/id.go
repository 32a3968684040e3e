package model

import (
	"regexp"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// ModelID is the primary key of a trained model in both the document store
// and the blob path.
type ModelID string

// NewModelID generates a new unique ModelID
func NewModelID() ModelID {
	return ModelID(uuid.New().String())
}

// Document IDs may not contain "/" and are embedded in blob paths, so keep the
// alphabet conservative.
var modelIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]{0,127}$`)

// Validate checks that a caller-supplied ID can be used as a key
func (id ModelID) Validate() error {
	if !modelIDPattern.MatchString(string(id)) {
		return goerr.Wrap(ErrInvalidInput, "malformed model id", goerr.V("id", id))
	}
	return nil
}

func (id ModelID) String() string { return string(id) }
