package registry_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/modelhub/pkg/catalog"
	"github.com/m-mizutani/modelhub/pkg/interfaces"
	"github.com/m-mizutani/modelhub/pkg/model"
	"github.com/m-mizutani/modelhub/pkg/training"
	"github.com/m-mizutani/modelhub/pkg/usecase/registry"
)

// Mock stores record every call so tests can assert ordering
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

type mockBlobStore struct {
	log       *callLog
	objects   map[string][]byte
	putErr    error
	deleteErr error
}

func newMockBlobStore(log *callLog) *mockBlobStore {
	return &mockBlobStore{log: log, objects: map[string][]byte{}}
}

func (m *mockBlobStore) Put(ctx context.Context, bucket, path string, data []byte) error {
	m.log.add("blob.put")
	if m.putErr != nil {
		return m.putErr
	}
	m.objects[bucket+"/"+path] = append([]byte{}, data...)
	return nil
}

func (m *mockBlobStore) Get(ctx context.Context, bucket, path string) ([]byte, error) {
	m.log.add("blob.get")
	data, ok := m.objects[bucket+"/"+path]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrObjectNotFound, "missing", goerr.V("path", path))
	}
	return data, nil
}

func (m *mockBlobStore) Delete(ctx context.Context, bucket, path string) error {
	m.log.add("blob.delete")
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.objects[bucket+"/"+path]; !ok {
		return goerr.Wrap(interfaces.ErrObjectNotFound, "missing", goerr.V("path", path))
	}
	delete(m.objects, bucket+"/"+path)
	return nil
}

func (m *mockBlobStore) Exists(ctx context.Context, bucket string) (bool, error) {
	return true, nil
}

func (m *mockBlobStore) CreateBucket(ctx context.Context, bucket string) error {
	return nil
}

type mockDocumentStore struct {
	log       *callLog
	docs      map[model.ModelID]*model.Metadata
	order     []model.ModelID
	upsertRes *interfaces.UpsertResult
	deleteErr error
	findErr   error
}

func newMockDocumentStore(log *callLog) *mockDocumentStore {
	return &mockDocumentStore{log: log, docs: map[model.ModelID]*model.Metadata{}}
}

func (m *mockDocumentStore) FindByID(ctx context.Context, collection string, id model.ModelID) (*model.Metadata, error) {
	m.log.add("doc.find")
	if m.findErr != nil {
		return nil, m.findErr
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, goerr.Wrap(interfaces.ErrDocumentNotFound, "missing", goerr.V("id", id))
	}
	copied := *doc
	return &copied, nil
}

func (m *mockDocumentStore) Upsert(ctx context.Context, collection string, id model.ModelID, doc *model.Metadata) (interfaces.UpsertResult, error) {
	m.log.add("doc.upsert")
	if m.upsertRes != nil {
		return *m.upsertRes, nil
	}
	copied := *doc
	if _, ok := m.docs[id]; ok {
		m.docs[id] = &copied
		return interfaces.UpsertMatched, nil
	}
	m.docs[id] = &copied
	m.order = append(m.order, id)
	return interfaces.UpsertInserted, nil
}

func (m *mockDocumentStore) DeleteByID(ctx context.Context, collection string, id model.ModelID) error {
	m.log.add("doc.delete")
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.docs, id)
	return nil
}

func (m *mockDocumentStore) List(ctx context.Context, collection string, limit int) ([]*model.Metadata, error) {
	var out []*model.Metadata
	for _, id := range m.order {
		if doc, ok := m.docs[id]; ok && len(out) < limit {
			out = append(out, doc)
		}
	}
	return out, nil
}

type fixture struct {
	log   *callLog
	blobs *mockBlobStore
	docs  *mockDocumentStore
	cat   *catalog.Catalog
	reg   *registry.Registry
}

func newFixture(t *testing.T, opts ...registry.Option) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	gt.NoError(t, err)

	log := &callLog{}
	f := &fixture{
		log:   log,
		blobs: newMockBlobStore(log),
		docs:  newMockDocumentStore(log),
		cat:   cat,
	}
	f.reg = registry.New(f.blobs, f.docs, cat, opts...)
	return f
}

func (f *fixture) session(t *testing.T, mt model.ModelType, params map[string]any, features, labels []string) *training.Session {
	t.Helper()
	entry, err := f.cat.Lookup(mt)
	gt.NoError(t, err)
	s, err := training.New(entry, params)
	gt.NoError(t, err)
	gt.NoError(t, s.Fit(features, labels))
	return s
}

func ptr(v float64) *float64 { return &v }

var (
	exampleFeatures = []string{"free garage for sale", "used car cheap"}
	exampleLabels   = []string{"realEstate", "auto"}
)

func TestSaveListLoadExample(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	s := f.session(t, model.ModelTypeLinearSVC, map[string]any{"C": 0.5}, exampleFeatures, exampleLabels)
	score, err := s.Score(exampleFeatures, exampleLabels)
	gt.NoError(t, err)

	id, err := f.reg.Save(ctx, s, "", ptr(score.Accuracy), nil)
	gt.NoError(t, err)
	gt.NoError(t, id.Validate())

	models, err := f.reg.List(ctx, 10)
	gt.NoError(t, err)
	gt.A(t, models).Length(1)
	gt.Equal(t, models[0].ID, id)
	gt.Equal(t, models[0].ModelType, model.ModelTypeLinearSVC)
	gt.Equal(t, models[0].BlobPath, "linear_svc/"+id.String()+".mhub")
	gt.Equal(t, models[0].Hyperparameters["C"], any(0.5))
	gt.Equal(t, *models[0].TrainScore, score.Accuracy)
	gt.Nil(t, models[0].TestScore)

	loaded, meta, err := f.reg.Load(ctx, id)
	gt.NoError(t, err)
	gt.Equal(t, meta.ID, id)
	gt.True(t, loaded.Loaded())

	got, err := loaded.Predict([]string{"garage available"})
	gt.NoError(t, err)
	gt.A(t, got).Length(1)
	gt.True(t, got[0] == "realEstate" || got[0] == "auto")

	reloaded, err := loaded.Score(exampleFeatures, exampleLabels)
	gt.NoError(t, err)
	gt.Equal(t, reloaded.Accuracy, score.Accuracy)
}

func TestSaveRoundTripFidelity(t *testing.T) {
	features := []string{
		"stock market rallies", "bank raises rates", "shares fall sharply",
		"team wins final", "striker scores twice", "coach praises defence",
	}
	labels := []string{"business", "business", "business", "sports", "sports", "sports"}

	for _, mt := range model.ModelTypes() {
		t.Run(string(mt), func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			s := f.session(t, mt, nil, features, labels)
			before, err := s.Score(features, labels)
			gt.NoError(t, err)

			id, err := f.reg.Save(ctx, s, "", ptr(before.Accuracy), nil)
			gt.NoError(t, err)

			loaded, _, err := f.reg.Load(ctx, id)
			gt.NoError(t, err)
			after, err := loaded.Score(features, labels)
			gt.NoError(t, err)
			gt.Equal(t, after.Accuracy, before.Accuracy)
		})
	}
}

func TestSaveUpdate(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, registry.WithClock(func() time.Time { return fixed }))

	first := f.session(t, model.ModelTypeLogReg, nil, exampleFeatures, exampleLabels)
	id, err := f.reg.Save(ctx, first, "my-model", nil, nil)
	gt.NoError(t, err)
	gt.Equal(t, id, model.ModelID("my-model"))

	v1, err := f.reg.Get(ctx, id)
	gt.NoError(t, err)
	gt.Equal(t, v1.CreatedAt, fixed)
	gt.Equal(t, v1.UpdatedAt, fixed)
	blob1 := f.blobs.objects[v1.BlobBucket+"/"+v1.BlobPath]

	second := f.session(t, model.ModelTypeLogReg, map[string]any{"C": 10.0},
		[]string{"sunny warm day", "heavy rain storm", "bright clear sky", "rain and wind"},
		[]string{"dry", "wet", "dry", "wet"})
	id2, err := f.reg.Save(ctx, second, id, nil, ptr(0.5))
	gt.NoError(t, err)
	gt.Equal(t, id2, id)

	v2, err := f.reg.Get(ctx, id)
	gt.NoError(t, err)
	gt.Equal(t, v2.CreatedAt, v1.CreatedAt)
	gt.True(t, v2.UpdatedAt.After(v1.UpdatedAt))
	gt.Equal(t, *v2.TestScore, 0.5)

	models, err := f.reg.List(ctx, 10)
	gt.NoError(t, err)
	gt.A(t, models).Length(1)

	blob2 := f.blobs.objects[v2.BlobBucket+"/"+v2.BlobPath]
	gt.True(t, string(blob2) != string(blob1))

	loaded, _, err := f.reg.Load(ctx, id)
	gt.NoError(t, err)
	got, err := loaded.Predict([]string{"rain"})
	gt.NoError(t, err)
	gt.Equal(t, got[0], "wet")
}

func TestSaveUpdateChangesModelType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.reg.Save(ctx, f.session(t, model.ModelTypeLogReg, nil, exampleFeatures, exampleLabels), "switch", nil, nil)
	gt.NoError(t, err)
	_, err = f.reg.Save(ctx, f.session(t, model.ModelTypeLinearSVC, nil, exampleFeatures, exampleLabels), id, nil, nil)
	gt.NoError(t, err)

	gt.Map(t, f.blobs.objects).HasKey("modelhub-models/linear_svc/switch.mhub")
	_, stale := f.blobs.objects["modelhub-models/logreg/switch.mhub"]
	gt.False(t, stale)
}

func TestSaveOrdering(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.reg.Save(ctx, f.session(t, model.ModelTypeLogReg, nil, exampleFeatures, exampleLabels), "", nil, nil)
	gt.NoError(t, err)
	gt.A(t, f.log.calls).Equal([]string{"blob.put", "doc.find", "doc.upsert"})
}

func TestSaveFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("blob write failure leaves metadata untouched", func(t *testing.T) {
		f := newFixture(t)
		f.blobs.putErr = errors.New("connection refused")

		_, err := f.reg.Save(ctx, f.session(t, model.ModelTypeLogReg, nil, exampleFeatures, exampleLabels), "", nil, nil)
		gt.True(t, errors.Is(err, model.ErrStoreUnavailable))
		gt.Equal(t, model.KindOf(err), model.KindUnavailable)
		gt.A(t, f.log.calls).Equal([]string{"blob.put"})
		gt.Equal(t, len(f.docs.docs), 0)
	})

	t.Run("upsert with no effect", func(t *testing.T) {
		f := newFixture(t)
		none := interfaces.UpsertNone
		f.docs.upsertRes = &none

		_, err := f.reg.Save(ctx, f.session(t, model.ModelTypeLogReg, nil, exampleFeatures, exampleLabels), "", nil, nil)
		gt.True(t, errors.Is(err, model.ErrRegistryWrite))
	})

	t.Run("prior metadata read failure", func(t *testing.T) {
		f := newFixture(t)
		f.docs.findErr = errors.New("deadline exceeded")

		_, err := f.reg.Save(ctx, f.session(t, model.ModelTypeLogReg, nil, exampleFeatures, exampleLabels), "x1", nil, nil)
		gt.True(t, errors.Is(err, model.ErrStoreUnavailable))
	})

	t.Run("unfitted session", func(t *testing.T) {
		f := newFixture(t)
		entry, err := f.cat.Lookup(model.ModelTypeLogReg)
		gt.NoError(t, err)
		s, err := training.New(entry, nil)
		gt.NoError(t, err)

		_, err = f.reg.Save(ctx, s, "", nil, nil)
		gt.True(t, errors.Is(err, model.ErrNotFitted))
		gt.A(t, f.log.calls).Length(0)
	})

	t.Run("malformed id", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.reg.Save(ctx, f.session(t, model.ModelTypeLogReg, nil, exampleFeatures, exampleLabels), "../etc/passwd", nil, nil)
		gt.True(t, errors.Is(err, model.ErrInvalidInput))
	})
}

func TestLoadFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.reg.Load(ctx, "absent")
		gt.True(t, errors.Is(err, model.ErrNotFound))
		gt.Equal(t, model.KindOf(err), model.KindNotFound)
	})

	t.Run("artifact missing", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.reg.Save(ctx, f.session(t, model.ModelTypeLogReg, nil, exampleFeatures, exampleLabels), "", nil, nil)
		gt.NoError(t, err)
		f.blobs.objects = map[string][]byte{}

		_, _, err = f.reg.Load(ctx, id)
		gt.True(t, errors.Is(err, model.ErrArtifactMissing))
	})

	t.Run("corrupt artifact", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.reg.Save(ctx, f.session(t, model.ModelTypeLogReg, nil, exampleFeatures, exampleLabels), "", nil, nil)
		gt.NoError(t, err)
		for k := range f.blobs.objects {
			f.blobs.objects[k] = []byte("garbage")
		}

		_, _, err = f.reg.Load(ctx, id)
		gt.True(t, errors.Is(err, model.ErrCorruptArtifact))
	})
}

func TestRemove(t *testing.T) {
	ctx := context.Background()

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		err := f.reg.Remove(ctx, "absent")
		gt.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("removes both", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.reg.Save(ctx, f.session(t, model.ModelTypeLinearSVC, nil, exampleFeatures, exampleLabels), "", nil, nil)
		gt.NoError(t, err)
		f.log.calls = nil

		gt.NoError(t, f.reg.Remove(ctx, id))
		gt.A(t, f.log.calls).Equal([]string{"doc.find", "blob.delete", "doc.delete"})
		gt.Equal(t, len(f.blobs.objects), 0)

		_, _, err = f.reg.Load(ctx, id)
		gt.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("blob deletion failure aborts", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.reg.Save(ctx, f.session(t, model.ModelTypeLinearSVC, nil, exampleFeatures, exampleLabels), "", nil, nil)
		gt.NoError(t, err)
		f.blobs.deleteErr = errors.New("timeout")

		err = f.reg.Remove(ctx, id)
		gt.True(t, errors.Is(err, model.ErrStoreUnavailable))

		f.blobs.deleteErr = nil
		_, _, err = f.reg.Load(ctx, id)
		gt.NoError(t, err)
	})

	t.Run("metadata deletion failure is orphaned", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.reg.Save(ctx, f.session(t, model.ModelTypeLinearSVC, nil, exampleFeatures, exampleLabels), "", nil, nil)
		gt.NoError(t, err)
		f.docs.deleteErr = errors.New("unavailable")

		err = f.reg.Remove(ctx, id)
		gt.True(t, errors.Is(err, model.ErrOrphanedMetadata))
		gt.Equal(t, model.KindOf(err), model.KindInconsistent)

		_, _, err = f.reg.Load(ctx, id)
		gt.True(t, errors.Is(err, model.ErrArtifactMissing))
	})

	t.Run("already missing artifact", func(t *testing.T) {
		f := newFixture(t)
		id, err := f.reg.Save(ctx, f.session(t, model.ModelTypeLinearSVC, nil, exampleFeatures, exampleLabels), "", nil, nil)
		gt.NoError(t, err)
		f.blobs.objects = map[string][]byte{}

		gt.NoError(t, f.reg.Remove(ctx, id))
		_, err = f.reg.Get(ctx, id)
		gt.True(t, errors.Is(err, model.ErrNotFound))
	})
}

func TestList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, registry.WithIDGenerator(func() model.ModelID {
		return model.NewModelID()
	}))

	for i := 0; i < 3; i++ {
		_, err := f.reg.Save(ctx, f.session(t, model.ModelTypeLogReg, nil, exampleFeatures, exampleLabels), "", nil, nil)
		gt.NoError(t, err)
	}

	models, err := f.reg.List(ctx, 2)
	gt.NoError(t, err)
	gt.A(t, models).Length(2)

	_, err = f.reg.List(ctx, 0)
	gt.True(t, errors.Is(err, model.ErrInvalidInput))
}
