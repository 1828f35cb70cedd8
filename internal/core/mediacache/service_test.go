package mediacache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockRepository implements Repository in memory
type MockRepository struct {
	records     map[string]*Record
	getErr      error
	touchErr    error
	upsertErrs  []error
	upsertCalls int
	touchCalls  int
	mu          sync.Mutex
}

func NewMockRepository() *MockRepository {
	return &MockRepository{records: make(map[string]*Record)}
}

func (m *MockRepository) Get(ctx context.Context, url string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	rec, ok := m.records[url]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *MockRepository) Upsert(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if len(m.upsertErrs) > 0 {
		err := m.upsertErrs[0]
		m.upsertErrs = m.upsertErrs[1:]
		if err != nil {
			return err
		}
	}
	cp := *rec
	m.records[rec.URL] = &cp
	return nil
}

func (m *MockRepository) Touch(ctx context.Context, url string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.touchCalls++
	if m.touchErr != nil {
		return m.touchErr
	}
	if rec, ok := m.records[url]; ok {
		rec.Timestamp = at
	}
	return nil
}

func (m *MockRepository) Usage(ctx context.Context) (Usage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var u Usage
	for _, r := range m.records {
		u.Records++
		u.Bytes += r.Size
	}
	return u, nil
}

func (m *MockRepository) Oldest(ctx context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]Entry, 0, len(m.records))
	for _, r := range m.records {
		entries = append(entries, Entry{URL: r.URL, Size: r.Size, Timestamp: r.Timestamp})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.Before(entries[j].Timestamp) })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *MockRepository) Delete(ctx context.Context, urls ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, u := range urls {
		if _, ok := m.records[u]; ok {
			delete(m.records, u)
			n++
		}
	}
	return n, nil
}

func (m *MockRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for u, r := range m.records {
		if r.Timestamp.Before(cutoff) {
			delete(m.records, u)
			n++
		}
	}
	return n, nil
}

func newTestService(t *testing.T, repo Repository, cfg Config) *Service {
	t.Helper()
	svc, err := NewService(repo, cfg)
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestNewService_NilRepo(t *testing.T) {
	_, err := NewService(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestClassifyMediaType(t *testing.T) {
	tests := []struct {
		contentType string
		want        MediaType
	}{
		{"image/jpeg", MediaTypeImage},
		{"IMAGE/PNG", MediaTypeImage},
		{"video/mp4", MediaTypeVideo},
		{"video/webm; codecs=vp9", MediaTypeVideo},
		{"application/octet-stream", MediaTypeOther},
		{"", MediaTypeOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyMediaType(tt.contentType), tt.contentType)
	}
}

func TestService_GetStoreFailureIsMiss(t *testing.T) {
	repo := NewMockRepository()
	repo.getErr = errors.New("database is locked")
	svc := newTestService(t, repo, DefaultConfig())

	rec, ok := svc.Get(context.Background(), "https://example.com/a.mp4")
	assert.False(t, ok)
	assert.Nil(t, rec)
}

func TestService_TouchFailureStillReturnsBlob(t *testing.T) {
	repo := NewMockRepository()
	repo.touchErr = errors.New("readonly")
	svc := newTestService(t, repo, DefaultConfig())
	ctx := context.Background()

	require.NoError(t, svc.Put(ctx, "https://example.com/a.mp4", Blob{Type: "video/mp4", Data: []byte("v")}, "a.mp4", ".mp4"))

	before := TouchErrorCount()
	rec, ok := svc.Get(ctx, "https://example.com/a.mp4")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), rec.Blob)

	svc.Close()
	assert.Equal(t, before+1, TouchErrorCount())
}

func TestService_PutRejectsEmpty(t *testing.T) {
	repo := NewMockRepository()
	svc := newTestService(t, repo, DefaultConfig())

	err := svc.Put(context.Background(), "https://example.com/a", Blob{Type: "image/png", Data: nil}, "", "")
	assert.ErrorIs(t, err, ErrEmptyPayload)

	err = svc.Put(context.Background(), "", Blob{Type: "image/png", Data: []byte("x")}, "", "")
	assert.ErrorIs(t, err, ErrEmptyURL)

	assert.Equal(t, 0, repo.upsertCalls)
}

func TestService_PutQuotaFromStoreEvictsAndRetries(t *testing.T) {
	repo := NewMockRepository()
	ctx := context.Background()
	svc := newTestService(t, repo, DefaultConfig())

	old := time.Now().Add(-time.Hour)
	repo.records["https://example.com/old"] = &Record{URL: "https://example.com/old", Size: 10, Timestamp: old}

	repo.upsertErrs = []error{ErrQuotaExceeded, nil}
	err := svc.Put(ctx, "https://example.com/new", Blob{Type: "video/mp4", Data: []byte("new")}, "", "")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.upsertCalls)
}

func TestService_RePutSameURLDoesNotEvictOthers(t *testing.T) {
	repo := NewMockRepository()
	cfg := DefaultConfig()
	cfg.MaxBytes = 10
	svc := newTestService(t, repo, cfg)
	ctx := context.Background()

	old := time.Now().Add(-time.Hour)
	repo.records["https://example.com/keep"] = &Record{URL: "https://example.com/keep", Size: 4, Timestamp: old}
	repo.records["https://example.com/same"] = &Record{URL: "https://example.com/same", Size: 5, Timestamp: time.Now()}

	err := svc.Put(ctx, "https://example.com/same", Blob{Type: "image/png", Data: []byte("123456")}, "", "")
	require.NoError(t, err)

	assert.Contains(t, repo.records, "https://example.com/keep")
	assert.Equal(t, int64(6), repo.records["https://example.com/same"].Size)
	assert.Equal(t, 1, repo.upsertCalls)

	err = svc.Put(ctx, "https://example.com/other", Blob{Type: "image/png", Data: []byte("1")}, "", "")
	require.NoError(t, err)
	assert.NotContains(t, repo.records, "https://example.com/keep", "a new URL over budget still evicts")
}

func TestService_PutTransientErrorIsNotRetried(t *testing.T) {
	repo := NewMockRepository()
	svc := newTestService(t, repo, DefaultConfig())

	repo.upsertErrs = []error{ErrStoreUnavailable}
	err := svc.Put(context.Background(), "https://example.com/a", Blob{Type: "video/mp4", Data: []byte("a")}, "", "")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrQuotaExceeded)
	assert.Equal(t, 1, repo.upsertCalls)
}

func TestService_CleanExpired(t *testing.T) {
	repo := NewMockRepository()
	cfg := DefaultConfig()
	cfg.TTL = 24 * time.Hour
	svc := newTestService(t, repo, cfg)

	repo.records["stale"] = &Record{URL: "stale", Size: 1, Timestamp: time.Now().Add(-48 * time.Hour)}
	repo.records["fresh"] = &Record{URL: "fresh", Size: 1, Timestamp: time.Now()}

	removed, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Contains(t, repo.records, "fresh")
}

func TestService_StartCleanupJobDisabled(t *testing.T) {
	svc := newTestService(t, NewMockRepository(), DefaultConfig())
	cancel := svc.StartCleanupJob(0)
	cancel()
}

func TestService_StartCleanupJobStops(t *testing.T) {
	svc := newTestService(t, NewMockRepository(), DefaultConfig())
	cancel := svc.StartCleanupJob(10 * time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	cancel()
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.MaxBytes = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidMaxBytes)

	bad = cfg
	bad.EvictTargetRatio = 1.5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidEvictTarget)

	bad = cfg
	bad.TTL = -time.Second
	assert.ErrorIs(t, bad.Validate(), ErrInvalidTTL)
}
