package store

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/denis567denis/valkey-search/internal/config"
	vserrors "github.com/denis567denis/valkey-search/internal/errors"
)

// Client is the slice of the go-redis client the store uses.
// *redis.Client satisfies it.
type Client interface {
	Do(ctx context.Context, args ...any) *redis.Cmd
	Pipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
	Ping(ctx context.Context) *redis.StatusCmd
	Close() error
}

// NewRedisClient builds a RESP2 client. FT.* replies are parsed from RESP2
// arrays, which every supported engine version speaks.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	opts := &redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Protocol:     2,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if cfg.TLS {
		host, _, err := net.SplitHostPort(cfg.Addr)
		if err != nil {
			host = cfg.Addr
		}
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12, ServerName: host}
	}
	return redis.NewClient(opts)
}

// Connect pings the engine until it answers, giving up after retry is
// exhausted or ctx ends.
func Connect(ctx context.Context, client Client, retry vserrors.RetryConfig, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	err := vserrors.Retry(ctx, retry, func() error {
		return client.Ping(ctx).Err()
	}, func(attempt int, err error) {
		logger.Warn("search engine not reachable, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("delay", retry.InitialDelay),
			slog.String("error", err.Error()))
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return vserrors.New(vserrors.ErrCodeConnectionFailed, "connect to search engine", err)
	}
	return nil
}

// isTransportError reports failures of the connection itself, as opposed
// to error replies from the engine. Only these trip the circuit breaker.
func isTransportError(err error) bool {
	if err == nil || errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, redis.ErrClosed) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, context.DeadlineExceeded)
}

// classify wraps a failed command in the matching structured error.
func classify(command string, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, vserrors.ErrCircuitOpen):
		return err
	case errors.As(err, &netErr) && netErr.Timeout(), errors.Is(err, context.DeadlineExceeded):
		return vserrors.New(vserrors.ErrCodeNetworkTimeout, command+" timed out", err).WithDetail("command", command)
	case isTransportError(err):
		return vserrors.New(vserrors.ErrCodeConnectionFailed, command+" failed", err).WithDetail("command", command)
	default:
		return vserrors.CommandError(command, err)
	}
}

func defaultBreaker(cfg config.ConnectConfig) *vserrors.CircuitBreaker {
	failures, reset := cfg.BreakerFailures, cfg.BreakerReset
	if failures <= 0 {
		failures = 5
	}
	if reset <= 0 {
		reset = 30 * time.Second
	}
	return vserrors.NewCircuitBreaker("search-engine",
		vserrors.WithMaxFailures(failures),
		vserrors.WithResetTimeout(reset),
		vserrors.WithFailurePredicate(isTransportError),
	)
}
