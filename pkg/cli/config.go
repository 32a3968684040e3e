package cli

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/modelhub/pkg/adapter"
	"github.com/m-mizutani/modelhub/pkg/catalog"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/policy"
	"github.com/m-mizutani/modelhub/pkg/repository"
	"github.com/m-mizutani/modelhub/pkg/usecase/lifecycle"
	"github.com/m-mizutani/modelhub/pkg/usecase/registry"
	"github.com/m-mizutani/modelhub/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const (
	backendGCS       = "gcs"
	backendFirestore = "firestore"
	backendPostgres  = "postgres"
	backendBadger    = "badger"
)

// config holds configuration values
type config struct {
	// Logging
	logLevel  string
	logFormat string

	// Google Cloud
	project  string
	database string

	// Stores
	blobBackend  string
	docBackend   string
	badgerDir    string
	postgresURL  string
	collection   string
	storeTimeout time.Duration
	breaker      bool

	// Training
	catalogPath       string
	policyDir         string
	bigqueryProject   string
	bigqueryScanLimit int64
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("MODELHUB_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "Log format (console, json)",
			Value:       "console",
			Sources:     cli.EnvVars("MODELHUB_LOG_FORMAT"),
			Destination: &cfg.logFormat,
		},
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "firestore-database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "blob-backend",
			Usage:       "Artifact store (gcs, badger)",
			Value:       backendGCS,
			Sources:     cli.EnvVars("MODELHUB_BLOB_BACKEND"),
			Destination: &cfg.blobBackend,
		},
		&cli.StringFlag{
			Name:        "doc-backend",
			Usage:       "Metadata store (firestore, postgres, badger)",
			Value:       backendFirestore,
			Sources:     cli.EnvVars("MODELHUB_DOC_BACKEND"),
			Destination: &cfg.docBackend,
		},
		&cli.StringFlag{
			Name:        "badger-dir",
			Usage:       "Badger data directory; empty keeps data in memory",
			Sources:     cli.EnvVars("MODELHUB_BADGER_DIR"),
			Destination: &cfg.badgerDir,
		},
		&cli.StringFlag{
			Name:        "postgres-url",
			Usage:       "PostgreSQL connection string for the postgres backend",
			Sources:     cli.EnvVars("MODELHUB_POSTGRES_URL"),
			Destination: &cfg.postgresURL,
		},
		&cli.StringFlag{
			Name:        "collection",
			Usage:       "Metadata collection name",
			Value:       registry.DefaultCollection,
			Sources:     cli.EnvVars("MODELHUB_COLLECTION"),
			Destination: &cfg.collection,
		},
		&cli.DurationFlag{
			Name:        "store-timeout",
			Usage:       "Deadline of each store call; 0 disables it",
			Value:       10 * time.Second,
			Sources:     cli.EnvVars("MODELHUB_STORE_TIMEOUT"),
			Destination: &cfg.storeTimeout,
		},
		&cli.BoolFlag{
			Name:        "breaker",
			Usage:       "Guard store calls with a circuit breaker",
			Value:       true,
			Sources:     cli.EnvVars("MODELHUB_BREAKER"),
			Destination: &cfg.breaker,
		},
		&cli.StringFlag{
			Name:        "catalog",
			Usage:       "Model type catalog YAML; the embedded catalog is used when empty",
			Sources:     cli.EnvVars("MODELHUB_CATALOG"),
			Destination: &cfg.catalogPath,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego training admission policies",
			Sources:     cli.EnvVars("MODELHUB_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
		&cli.StringFlag{
			Name:        "bigquery-project",
			Usage:       "Google Cloud project running dataset queries; named datasets are disabled when empty",
			Sources:     cli.EnvVars("MODELHUB_BIGQUERY_PROJECT"),
			Destination: &cfg.bigqueryProject,
		},
		&cli.IntFlag{
			Name:        "bigquery-scan-limit",
			Usage:       "Reject dataset queries scanning more bytes than this; 0 disables the check",
			Value:       10 * 1024 * 1024 * 1024,
			Sources:     cli.EnvVars("MODELHUB_BIGQUERY_SCAN_LIMIT"),
			Destination: &cfg.bigqueryScanLimit,
		},
	}
}

// setupLogger installs the default logger and returns a context carrying it.
// Logs go to stderr so command output on stdout stays parseable.
func (cfg *config) setupLogger(ctx context.Context, w io.Writer) (context.Context, error) {
	format, err := logging.ParseFormat(cfg.logFormat)
	if err != nil {
		return ctx, err
	}
	if w == nil {
		w = os.Stderr
	}
	logger := logging.NewWithFormat(format, cfg.logLevel, w)
	logging.SetDefault(logger)
	return logging.With(ctx, logger), nil
}

func (cfg *config) loadCatalog() (*catalog.Catalog, error) {
	if cfg.catalogPath == "" {
		return catalog.Default()
	}
	return catalog.LoadFile(cfg.catalogPath)
}

// closers releases resources opened while building the use case
type closers []func()

func (c closers) close() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// newUseCase wires stores, catalog, policy and BigQuery into a lifecycle
// use case. The returned cleanup must be called once the command finishes.
func (cfg *config) newUseCase(ctx context.Context) (*lifecycle.UseCase, func(), error) {
	var cleanup closers

	uc, err := cfg.buildUseCase(ctx, &cleanup)
	if err != nil {
		cleanup.close()
		return nil, nil, err
	}
	return uc, cleanup.close, nil
}

func (cfg *config) buildUseCase(ctx context.Context, cleanup *closers) (*lifecycle.UseCase, error) {
	cat, err := cfg.loadCatalog()
	if err != nil {
		return nil, err
	}

	blobs, docs, err := cfg.newStores(ctx, cat.Buckets(), cleanup)
	if err != nil {
		return nil, err
	}

	reg := registry.New(
		adapter.NewBreakerBlobStore(blobs, cfg.breakerConfig("blob")),
		adapter.NewBreakerDocumentStore(docs, cfg.breakerConfig("document")),
		cat,
		registry.WithCollection(cfg.collection),
	)

	var opts []lifecycle.Option
	if cfg.policyDir != "" {
		engine, err := policy.New(ctx, cfg.policyDir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, lifecycle.WithPolicy(engine))
	}
	if cfg.bigqueryProject != "" {
		bq, err := adapter.NewBigQuery(ctx, cfg.bigqueryProject, adapter.WithScanLimit(cfg.bigqueryScanLimit))
		if err != nil {
			return nil, model.StoreFailure(err)
		}
		opts = append(opts, lifecycle.WithBigQuery(bq))
	}

	return lifecycle.New(reg, cat, opts...), nil
}

func (cfg *config) breakerConfig(name string) adapter.BreakerConfig {
	return adapter.BreakerConfig{
		Name:     name,
		Timeout:  cfg.storeTimeout,
		Disabled: !cfg.breaker,
	}
}

func (cfg *config) newStores(ctx context.Context, buckets []string, cleanup *closers) (interfaces.BlobStore, interfaces.DocumentStore, error) {
	var db *adapter.Badger
	openBadger := func() (*adapter.Badger, error) {
		if db != nil {
			return db, nil
		}
		b, err := adapter.NewBadger(ctx, cfg.badgerDir, buckets...)
		if err != nil {
			return nil, model.StoreFailure(err)
		}
		*cleanup = append(*cleanup, func() { _ = b.Close() })
		db = b
		return db, nil
	}

	var blobs interfaces.BlobStore
	switch cfg.blobBackend {
	case backendGCS:
		if cfg.project == "" {
			return nil, nil, goerr.New("project is required for the gcs backend")
		}
		storage, err := adapter.NewStorage(ctx, cfg.project, buckets...)
		if err != nil {
			return nil, nil, model.StoreFailure(err)
		}
		*cleanup = append(*cleanup, func() { _ = storage.Close() })
		blobs = storage
	case backendBadger:
		b, err := openBadger()
		if err != nil {
			return nil, nil, err
		}
		blobs = b
	default:
		return nil, nil, goerr.Wrap(model.ErrInvalidInput, "unsupported blob backend", goerr.V("backend", cfg.blobBackend))
	}

	var docs interfaces.DocumentStore
	switch cfg.docBackend {
	case backendFirestore:
		if cfg.project == "" {
			return nil, nil, goerr.New("project is required for the firestore backend")
		}
		fs, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
		if err != nil {
			return nil, nil, model.StoreFailure(err)
		}
		*cleanup = append(*cleanup, func() { _ = fs.Close() })
		docs = fs
	case backendPostgres:
		if cfg.postgresURL == "" {
			return nil, nil, goerr.New("postgres-url is required for the postgres backend")
		}
		pg, err := repository.NewPostgres(ctx, cfg.postgresURL)
		if err != nil {
			return nil, nil, model.StoreFailure(err)
		}
		*cleanup = append(*cleanup, pg.Close)
		docs = pg
	case backendBadger:
		b, err := openBadger()
		if err != nil {
			return nil, nil, err
		}
		docs = b
	default:
		return nil, nil, goerr.Wrap(model.ErrInvalidInput, "unsupported document backend", goerr.V("backend", cfg.docBackend))
	}

	return blobs, docs, nil
}
