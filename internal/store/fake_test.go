package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/denis567denis/valkey-search/internal/config"
)

// handler answers one command. args[0] is the command name.
type handler func(args []any) (any, error)

// fakeClient records commands and answers them from per-command handlers.
type fakeClient struct {
	mu       sync.Mutex
	calls    [][]any
	piped    [][]any
	handlers map[string]handler

	scanPages [][]string
	pipeErr   error
	pingErrs  []error
	pings     int
	closed    bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]handler)}
}

func (f *fakeClient) on(command string, h handler) {
	f.handlers[strings.ToUpper(command)] = h
}

func (f *fakeClient) Do(_ context.Context, args ...any) *redis.Cmd {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	h := f.handlers[strings.ToUpper(fmt.Sprint(args[0]))]
	f.mu.Unlock()

	if h == nil {
		return redis.NewCmdResult(int64(1), nil)
	}
	v, err := h(args)
	return redis.NewCmdResult(v, err)
}

func (f *fakeClient) Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	if err := fn(&fakePipe{client: f}); err != nil {
		return nil, err
	}
	return nil, f.pipeErr
}

func (f *fakeClient) Scan(_ context.Context, cursor uint64, match string, _ int64) *redis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, []any{"SCAN", cursor, match})

	if int(cursor) >= len(f.scanPages) {
		return redis.NewScanCmdResult(nil, 0, nil)
	}
	next := cursor + 1
	if int(next) >= len(f.scanPages) {
		next = 0
	}
	return redis.NewScanCmdResult(f.scanPages[cursor], next, nil)
}

func (f *fakeClient) Ping(context.Context) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	if len(f.pingErrs) > 0 {
		err := f.pingErrs[0]
		f.pingErrs = f.pingErrs[1:]
		return redis.NewStatusResult("", err)
	}
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

// commands returns the names of recorded Do and Scan calls, in order.
func (f *fakeClient) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = fmt.Sprint(c[0])
	}
	return out
}

// find returns the recorded calls for command.
func (f *fakeClient) find(command string) [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]any
	for _, c := range f.calls {
		if fmt.Sprint(c[0]) == command {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeClient) pipedCommands(command string) [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]any
	for _, c := range f.piped {
		if fmt.Sprint(c[0]) == command {
			out = append(out, c)
		}
	}
	return out
}

// fakePipe records queued commands. Methods the store doesn't use panic via
// the nil embedded interface.
type fakePipe struct {
	redis.Pipeliner
	client *fakeClient
}

func (p *fakePipe) record(args ...any) {
	p.client.mu.Lock()
	defer p.client.mu.Unlock()
	p.client.piped = append(p.client.piped, args)
}

func (p *fakePipe) HSet(_ context.Context, key string, values ...any) *redis.IntCmd {
	p.record(append([]any{"HSET", key}, values...)...)
	return redis.NewIntResult(int64(len(values)/2), nil)
}

func (p *fakePipe) HDel(_ context.Context, key string, fields ...string) *redis.IntCmd {
	args := []any{"HDEL", key}
	for _, f := range fields {
		args = append(args, f)
	}
	p.record(args...)
	return redis.NewIntResult(int64(len(fields)), nil)
}

func (p *fakePipe) Do(_ context.Context, args ...any) *redis.Cmd {
	p.record(args...)
	return redis.NewCmdResult("OK", nil)
}

// engineError mimics an error reply from the server.
type engineError string

func (e engineError) Error() string { return string(e) }

var errUnknownIndex = engineError("Unknown Index name")

// infoReply builds a RESP2 FT.INFO reply with a vector attribute of dim and
// seg0..seg(depth-1).
func infoReply(numDocs int64, dim, depth int) []any {
	attrs := []any{
		[]any{"identifier", "vector", "attribute", "vector", "type", "VECTOR",
			"algorithm", "HNSW", "data_type", "FLOAT32", "dim", int64(dim), "distance_metric", "COSINE"},
		[]any{"identifier", "filePath", "attribute", "filePath", "type", "TAG"},
	}
	for i := 0; i < depth; i++ {
		attrs = append(attrs, []any{"identifier", segmentField(i), "attribute", segmentField(i), "type", "TAG"})
	}
	return []any{
		"index_name", "idx",
		"attributes", attrs,
		"num_docs", fmt.Sprint(numDocs),
	}
}

func testConfig(mode string, dim int) *config.Config {
	cfg := config.NewConfig()
	cfg.Index.StorageMode = mode
	cfg.Index.VectorSize = dim
	cfg.Write.BatchSize = 2
	cfg.Write.Workers = 2
	return cfg
}

func newTestStore(t *testing.T, client *fakeClient, cfg *config.Config) *Store {
	t.Helper()
	s, err := New(client, t.TempDir(), cfg)
	require.NoError(t, err)
	return s
}
