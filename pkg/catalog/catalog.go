// Package catalog holds the model-type capability table: for every
// supported model type, where its artifacts live, which vectorizer it uses,
// its default hyperparameters and the JSON schema the hyperparameters must
// satisfy. It is loaded once at start-up and passed to the registry and
// training constructors.
package catalog

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/ml"
	"github.com/m-mizutani/modelhub/pkg/model"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

//go:embed schema/*.json
var schemaFS embed.FS

// Entry describes one model type
type Entry struct {
	ModelType    model.ModelType     `yaml:"-"`
	Bucket       string              `yaml:"bucket"`
	PathTemplate string              `yaml:"path_template"`
	Vectorizer   ml.VectorizerConfig `yaml:"vectorizer"`
	Defaults     map[string]any      `yaml:"defaults"`

	schema *jsonschema.Resolved
}

// Dataset is a named BigQuery training source
type Dataset struct {
	Name        string   `yaml:"-"`
	Query       string   `yaml:"query"`
	TextColumns []string `yaml:"text_columns"`
	LabelColumn string   `yaml:"label_column"`
	TrainSize   float64  `yaml:"train_size"`
	Seed        int64    `yaml:"seed"`
}

// Catalog is the validated set of model types and dataset sources
type Catalog struct {
	entries  map[model.ModelType]*Entry
	datasets map[string]*Dataset
}

type catalogFile struct {
	ModelTypes map[string]*Entry   `yaml:"model_types"`
	Datasets   map[string]*Dataset `yaml:"datasets"`
}

// Default returns the catalog embedded in the binary
func Default() (*Catalog, error) {
	return Load(defaultCatalog)
}

// LoadFile reads a catalog from a YAML file
func LoadFile(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read catalog file", goerr.V("path", path))
	}
	cat, err := Load(raw)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid catalog file", goerr.V("path", path))
	}
	return cat, nil
}

// Load parses and validates a YAML catalog
func Load(raw []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse catalog")
	}
	if len(file.ModelTypes) == 0 {
		return nil, goerr.New("catalog has no model types")
	}

	cat := &Catalog{
		entries:  make(map[model.ModelType]*Entry, len(file.ModelTypes)),
		datasets: make(map[string]*Dataset, len(file.Datasets)),
	}

	for name, entry := range file.ModelTypes {
		mt := model.ModelType(name)
		if err := mt.Validate(); err != nil {
			return nil, goerr.Wrap(err, "unknown model type in catalog")
		}
		if entry == nil {
			return nil, goerr.New("empty catalog entry", goerr.V("model_type", name))
		}
		entry.ModelType = mt
		if err := entry.validate(); err != nil {
			return nil, err
		}
		cat.entries[mt] = entry
	}

	for name, ds := range file.Datasets {
		if ds == nil {
			return nil, goerr.New("empty dataset entry", goerr.V("dataset", name))
		}
		ds.Name = name
		if err := ds.validate(); err != nil {
			return nil, err
		}
		cat.datasets[name] = ds
	}

	return cat, nil
}

func (e *Entry) validate() error {
	if e.Bucket == "" {
		return goerr.New("bucket is required", goerr.V("model_type", e.ModelType))
	}
	if strings.Count(e.PathTemplate, "%s") != 1 || strings.Count(e.PathTemplate, "%") != 1 {
		return goerr.New("path_template must contain exactly one %s",
			goerr.V("model_type", e.ModelType), goerr.V("path_template", e.PathTemplate))
	}
	if e.Vectorizer.Kind == "" {
		e.Vectorizer.Kind = ml.VectorizerTFIDF
	}
	if err := e.Vectorizer.Validate(); err != nil {
		return goerr.Wrap(err, "invalid vectorizer", goerr.V("model_type", e.ModelType))
	}

	raw, err := schemaFS.ReadFile("schema/" + string(e.ModelType) + ".json")
	if err != nil {
		return goerr.Wrap(err, "no hyperparameter schema", goerr.V("model_type", e.ModelType))
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return goerr.Wrap(err, "broken hyperparameter schema", goerr.V("model_type", e.ModelType))
	}
	resolved, err := schema.Resolve(&jsonschema.ResolveOptions{})
	if err != nil {
		return goerr.Wrap(err, "failed to resolve hyperparameter schema", goerr.V("model_type", e.ModelType))
	}
	e.schema = resolved

	defaults, err := normalize(e.Defaults)
	if err != nil {
		return goerr.Wrap(err, "invalid defaults", goerr.V("model_type", e.ModelType))
	}
	if err := e.schema.Validate(defaults); err != nil {
		return goerr.Wrap(err, "defaults violate schema", goerr.V("model_type", e.ModelType))
	}
	e.Defaults = defaults
	return nil
}

func (d *Dataset) validate() error {
	if d.Query == "" {
		return goerr.New("dataset query is required", goerr.V("dataset", d.Name))
	}
	if len(d.TextColumns) == 0 || d.LabelColumn == "" {
		return goerr.New("dataset needs text_columns and label_column", goerr.V("dataset", d.Name))
	}
	if d.TrainSize == 0 {
		d.TrainSize = 0.75
	}
	if d.TrainSize <= 0 || d.TrainSize >= 1 {
		return goerr.New("train_size must be in (0, 1)", goerr.V("dataset", d.Name), goerr.V("train_size", d.TrainSize))
	}
	if d.Seed == 0 {
		d.Seed = 0xDEAD
	}
	return nil
}

// BlobPath renders the artifact path of id
func (e *Entry) BlobPath(id model.ModelID) string {
	return fmt.Sprintf(e.PathTemplate, id)
}

// Hyperparameters merges params over the entry defaults and validates the
// result against the model type's schema. The returned map holds only JSON
// values (float64, bool, string) and is safe to store as metadata.
func (e *Entry) Hyperparameters(params map[string]any) (map[string]any, error) {
	supplied, err := normalize(params)
	if err != nil {
		return nil, goerr.Wrap(model.ErrInvalidHyperparameters, "hyperparameters are not plain data",
			goerr.V("model_type", e.ModelType), goerr.V("error", err.Error()))
	}

	merged := make(map[string]any, len(e.Defaults)+len(supplied))
	for k, v := range e.Defaults {
		merged[k] = v
	}
	for k, v := range supplied {
		merged[k] = v
	}

	if err := e.schema.Validate(merged); err != nil {
		return nil, goerr.Wrap(model.ErrInvalidHyperparameters, "hyperparameters rejected",
			goerr.V("model_type", e.ModelType), goerr.V("error", err.Error()))
	}
	return merged, nil
}

// normalize round-trips params through JSON so that numbers become float64
// and nested YAML maps become map[string]any
func normalize(params map[string]any) (map[string]any, error) {
	out := map[string]any{}
	if len(params) == 0 {
		return out, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Lookup returns the entry of mt, or ErrInvalidInput if mt is not served
func (c *Catalog) Lookup(mt model.ModelType) (*Entry, error) {
	if err := mt.Validate(); err != nil {
		return nil, err
	}
	entry, ok := c.entries[mt]
	if !ok {
		return nil, goerr.Wrap(model.ErrInvalidInput, "model type is not enabled", goerr.V("model_type", mt))
	}
	return entry, nil
}

// Types lists served model types in sorted order
func (c *Catalog) Types() []model.ModelType {
	types := make([]model.ModelType, 0, len(c.entries))
	for mt := range c.entries {
		types = append(types, mt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Buckets lists the distinct artifact buckets of all entries
func (c *Catalog) Buckets() []string {
	seen := map[string]struct{}{}
	var buckets []string
	for _, mt := range c.Types() {
		b := c.entries[mt].Bucket
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		buckets = append(buckets, b)
	}
	return buckets
}

// Dataset returns the named BigQuery source
func (c *Catalog) Dataset(name string) (*Dataset, error) {
	ds, ok := c.datasets[name]
	if !ok {
		return nil, goerr.Wrap(model.ErrInvalidInput, "unknown dataset", goerr.V("dataset", name))
	}
	return ds, nil
}
