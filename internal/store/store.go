package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/denis567denis/valkey-search/internal/config"
	vserrors "github.com/denis567denis/valkey-search/internal/errors"
	"github.com/denis567denis/valkey-search/internal/metrics"
)

// Store is the vector store for one workspace. It is safe for concurrent use.
type Store struct {
	client    Client
	workspace string
	index     string
	spec      indexSpec
	logger    *slog.Logger
	breaker   *vserrors.CircuitBreaker

	minScore   float64
	maxResults int
	batchSize  int
	workers    int

	mu       sync.Mutex
	ready    bool
	segDepth int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New builds a Store over an existing client. cfg must already be validated.
func New(client Client, workspace string, cfg *config.Config, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(workspace)
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeInvalidPath, "resolve workspace path", err)
	}
	abs = filepath.Clean(abs)

	index, err := IndexName(cfg.Index.Prefix, abs)
	if err != nil {
		return nil, err
	}

	s := &Store{
		client:    client,
		workspace: abs,
		index:     index,
		spec: indexSpec{
			storageMode:    cfg.Index.StorageMode,
			dimension:      cfg.Index.VectorSize,
			distanceMetric: strings.ToUpper(cfg.Index.DistanceMetric),
			algorithm:      strings.ToUpper(cfg.Index.Algorithm),
			hnswM:          cfg.Index.HNSWM,
			hnswEF:         cfg.Index.HNSWEFConstruction,
			segmentDepth:   cfg.Index.MinSegmentDepth,
		},
		logger:     slog.Default(),
		breaker:    defaultBreaker(cfg.Connect),
		minScore:   cfg.Search.MinScore,
		maxResults: cfg.Search.MaxResults,
		batchSize:  cfg.Write.BatchSize,
		workers:    cfg.Write.Workers,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("index", index))
	return s, nil
}

// Open connects to the engine described by cfg and returns a Store for
// workspace. The connection is retried with a fixed delay.
func Open(ctx context.Context, workspace string, cfg *config.Config, opts ...Option) (*Store, error) {
	client := NewRedisClient(cfg.Redis)
	s, err := New(client, workspace, cfg, opts...)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	retry := vserrors.FixedRetryConfig(cfg.Connect.Retries, cfg.Connect.RetryDelay)
	if err := Connect(ctx, client, retry, s.logger); err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// IndexName returns the name of this workspace's index.
func (s *Store) IndexName() string { return s.index }

// Workspace returns the absolute workspace path.
func (s *Store) Workspace() string { return s.workspace }

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// do issues one command through the circuit breaker and records metrics.
// The returned error is the raw client error; callers classify it.
func (s *Store) do(ctx context.Context, args ...any) (any, error) {
	command := commandName(args)
	start := time.Now()

	var reply any
	err := s.breaker.Execute(func() error {
		var err error
		reply, err = s.client.Do(ctx, args...).Result()
		return err
	})
	if errors.Is(err, redis.Nil) {
		metrics.ObserveCommand(command, start, nil)
		return nil, err
	}
	metrics.ObserveCommand(command, start, err)
	return reply, err
}

func commandName(args []any) string {
	if len(args) == 0 {
		return ""
	}
	name, _ := args[0].(string)
	return name
}

// fail logs a failed command and returns it classified.
func (s *Store) fail(command string, err error) error {
	s.logger.Error("search engine command failed",
		slog.String("command", command),
		slog.String("error", err.Error()))
	return classify(command, err)
}

// info runs FT.INFO. A missing index yields ErrIndexNotFound.
func (s *Store) info(ctx context.Context) (*remoteIndex, error) {
	reply, err := s.do(ctx, "FT.INFO", s.index)
	if err != nil {
		if isIndexNotFound(err) {
			return nil, vserrors.New(vserrors.ErrCodeIndexNotFound, "index "+s.index+" not found", err)
		}
		return nil, s.fail("FT.INFO", err)
	}
	return parseInfo(reply)
}

// Initialize creates the index when missing, or recreates it when its vector
// dimension no longer matches the configured vector size.
func (s *Store) Initialize(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	remote, err := s.info(ctx)
	if errors.Is(err, vserrors.ErrIndexNotFound) {
		if err := s.create(ctx); err != nil {
			return false, err
		}
		s.logger.Info("created vector index",
			slog.Int("dimension", s.spec.dimension),
			slog.String("storage", s.spec.storageMode))
		return true, nil
	}
	if err != nil {
		return false, err
	}

	dim := remote.dimension
	if dim == 0 {
		dim = s.storedDimension(ctx)
	}
	if dim != 0 && dim != s.spec.dimension {
		s.logger.Warn("vector dimension changed, recreating index",
			slog.Int("existing", dim),
			slog.Int("configured", s.spec.dimension))
		if err := s.recreate(ctx); err != nil {
			return false, err
		}
		return true, nil
	}
	if remote.staleTagOptions() {
		s.logger.Warn("path tags fold case or split on separators, recreating index",
			slog.String("separator", remote.tagSeparator),
			slog.Bool("case_sensitive", remote.tagCaseSensitive))
		if err := s.recreate(ctx); err != nil {
			return false, err
		}
		return true, nil
	}

	s.segDepth = remote.segmentDepth
	s.ready = true
	if err := s.extendSegmentsLocked(ctx, s.spec.segmentDepth); err != nil {
		return false, err
	}
	return false, nil
}

// recreate drops the index with its documents and creates it again.
// Must be called with s.mu held.
func (s *Store) recreate(ctx context.Context) error {
	if _, err := s.do(ctx, "FT.DROPINDEX", s.index, "DD"); err != nil && !isIndexNotFound(err) {
		return s.fail("FT.DROPINDEX", err)
	}
	if _, err := s.do(ctx, "DEL", metaKey(s.index)); err != nil {
		return s.fail("DEL", err)
	}
	return s.create(ctx)
}

// create issues FT.CREATE and records the dimension in the metadata hash.
// Must be called with s.mu held.
func (s *Store) create(ctx context.Context) error {
	if _, err := s.do(ctx, s.spec.createArgs(s.index)...); err != nil {
		if !isIndexExists(err) {
			s.logger.Error("search engine command failed",
				slog.String("command", "FT.CREATE"),
				slog.String("error", err.Error()))
			return vserrors.New(vserrors.ErrCodeIndexCreate, "create index "+s.index, err)
		}
		// Lost a race with another process; adopt its index.
		remote, err := s.info(ctx)
		if err != nil {
			return err
		}
		s.segDepth = remote.segmentDepth
		s.ready = true
		return s.extendSegmentsLocked(ctx, s.spec.segmentDepth)
	}

	s.segDepth = s.spec.segmentDepth
	s.ready = true

	_, err := s.do(ctx, "HSET", metaKey(s.index),
		"dimension", s.spec.dimension,
		"storage_mode", s.spec.storageMode,
		"created_at", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return s.fail("HSET", err)
	}
	return nil
}

// storedDimension reads the dimension recorded at creation, for engines
// whose FT.INFO omits it. Zero means unknown.
func (s *Store) storedDimension(ctx context.Context) int {
	reply, err := s.do(ctx, "HGET", metaKey(s.index), "dimension")
	if err != nil {
		return 0
	}
	n, _ := toInt64(reply)
	return int(n)
}

// ensureReady loads the remote segment depth on first use so a Store opened
// in a fresh process can search or write without calling Initialize.
func (s *Store) ensureReady(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	return s.loadLocked(ctx)
}

// refreshSegments re-reads the indexed segment depth, picking up attributes
// another writer added with FT.ALTER since this Store last looked.
func (s *Store) refreshSegments(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadLocked(ctx); err != nil {
		return 0, err
	}
	return s.segDepth, nil
}

func (s *Store) loadLocked(ctx context.Context) error {
	remote, err := s.info(ctx)
	if errors.Is(err, vserrors.ErrIndexNotFound) {
		s.ready = false
		return vserrors.New(vserrors.ErrCodeNotInitialized, "index "+s.index+" not initialized", err)
	}
	if err != nil {
		return err
	}
	s.segDepth = remote.segmentDepth
	s.ready = true
	return nil
}

func (s *Store) segmentDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.segDepth
}

// extendSegments makes sure seg0..seg(depth-1) are indexed.
func (s *Store) extendSegments(ctx context.Context, depth int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.extendSegmentsLocked(ctx, depth)
}

func (s *Store) extendSegmentsLocked(ctx context.Context, depth int) error {
	if depth <= s.segDepth {
		return nil
	}

	_, err := s.do(ctx, s.spec.alterArgs(s.index, s.segDepth, depth)...)
	if err != nil && !isDuplicateField(err) {
		return s.fail("FT.ALTER", err)
	}
	s.logger.Debug("extended path segment attributes",
		slog.Int("from", s.segDepth),
		slog.Int("to", depth))
	s.segDepth = depth
	return nil
}

// CollectionExists reports whether the workspace index exists.
func (s *Store) CollectionExists(ctx context.Context) (bool, error) {
	_, err := s.info(ctx)
	if errors.Is(err, vserrors.ErrIndexNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Info describes the remote index. A missing index is reported with
// Exists=false rather than an error.
func (s *Store) Info(ctx context.Context) (*IndexInfo, error) {
	out := &IndexInfo{Name: s.index, StorageMode: s.spec.storageMode}

	remote, err := s.info(ctx)
	if errors.Is(err, vserrors.ErrIndexNotFound) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}

	out.Exists = true
	out.NumDocs = remote.numDocs
	out.Dimension = remote.dimension
	if out.Dimension == 0 {
		out.Dimension = s.storedDimension(ctx)
	}
	out.SegmentDepth = remote.segmentDepth

	complete, err := s.completionMarker(ctx)
	if err != nil {
		return nil, err
	}
	out.IndexingComplete = remote.numDocs > 0 && complete
	return out, nil
}

// DeleteCollection drops the index together with its documents.
func (s *Store) DeleteCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.do(ctx, "FT.DROPINDEX", s.index, "DD"); err != nil {
		if !isIndexNotFound(err) {
			return s.fail("FT.DROPINDEX", err)
		}
		s.logger.Debug("index already absent")
	}
	if _, err := s.do(ctx, "DEL", metaKey(s.index)); err != nil {
		return s.fail("DEL", err)
	}

	s.ready = false
	s.segDepth = 0
	s.logger.Info("deleted vector index")
	return nil
}

// ClearCollection deletes every document of the index, keeping the index
// and its recorded dimension.
func (s *Store) ClearCollection(ctx context.Context) error {
	match := globEscape(s.index) + ":*"

	var (
		cursor  uint64
		deleted int64
	)
	for {
		var (
			keys []string
			next uint64
		)
		start := time.Now()
		err := s.breaker.Execute(func() error {
			var err error
			keys, next, err = s.client.Scan(ctx, cursor, match, int64(max(s.batchSize, 1))).Result()
			return err
		})
		metrics.ObserveCommand("SCAN", start, err)
		if err != nil {
			return s.fail("SCAN", err)
		}

		if len(keys) > 0 {
			n, err := s.deleteKeys(ctx, keys)
			if err != nil {
				return err
			}
			deleted += n
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	if _, err := s.do(ctx, "HDEL", metaKey(s.index), "indexing_complete", "completed_at"); err != nil {
		return s.fail("HDEL", err)
	}

	s.logger.Info("cleared vector index", slog.Int64("deleted", deleted))
	return nil
}

// deleteKeys removes keys in batches and returns how many existed.
func (s *Store) deleteKeys(ctx context.Context, keys []string) (int64, error) {
	var deleted int64
	for batch := range slices.Chunk(keys, max(s.batchSize, 1)) {
		args := make([]any, 0, len(batch)+1)
		args = append(args, "DEL")
		for _, k := range batch {
			args = append(args, k)
		}

		reply, err := s.do(ctx, args...)
		if err != nil {
			return deleted, s.fail("DEL", err)
		}
		n, _ := toInt64(reply)
		deleted += n
	}
	metrics.PointsDeleted.WithLabelValues(s.index).Add(float64(deleted))
	return deleted, nil
}

// HasIndexedData reports whether the index holds documents from a finished
// indexing run. A missing completion marker counts as finished so indexes
// written before the marker existed stay usable.
func (s *Store) HasIndexedData(ctx context.Context) (bool, error) {
	remote, err := s.info(ctx)
	if errors.Is(err, vserrors.ErrIndexNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if remote.numDocs == 0 {
		return false, nil
	}
	return s.completionMarker(ctx)
}

func (s *Store) completionMarker(ctx context.Context) (bool, error) {
	reply, err := s.do(ctx, "HGET", metaKey(s.index), "indexing_complete")
	if errors.Is(err, redis.Nil) {
		return true, nil
	}
	if err != nil {
		return false, s.fail("HGET", err)
	}
	v, _ := toString(reply)
	return v != "0", nil
}

// MarkIndexingComplete records that a full indexing pass finished.
func (s *Store) MarkIndexingComplete(ctx context.Context) error {
	_, err := s.do(ctx, "HSET", metaKey(s.index),
		"indexing_complete", "1",
		"completed_at", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return s.fail("HSET", err)
	}
	return nil
}

// MarkIndexingIncomplete records that an indexing pass is in progress, so
// HasIndexedData reports false until it completes.
func (s *Store) MarkIndexingIncomplete(ctx context.Context) error {
	_, err := s.do(ctx, "HSET", metaKey(s.index),
		"indexing_complete", "0",
		"started_at", time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return s.fail("HSET", err)
	}
	return nil
}

func dimensionMismatch(expected, got int) *vserrors.Error {
	return vserrors.New(vserrors.ErrCodeDimensionMismatch,
		fmt.Sprintf("vector dimension mismatch: expected %d, got %d", expected, got), nil).
		WithDetail("expected", fmt.Sprint(expected)).
		WithDetail("got", fmt.Sprint(got))
}
