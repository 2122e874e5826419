package redis

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

// tracerName is the OpenTelemetry instrumentation scope name for this package.
// It follows the Go module path convention for OTel instrumentation libraries.
const tracerName = "github.com/kestrelcloud/identity-core/pkg/clients/redis"

// Cmdable defines the interface for Redis command operations. This interface
// is satisfied by [*redis.Client] and by mock implementations for unit
// testing. It enables dependency injection via [NewFromClient].
//
// The interface is intentionally narrow, exposing only the operations the
// login attempt limiter and counter workloads need.
type Cmdable interface {
	// Set sets the string value of a key with an optional expiration.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd

	// Get returns the string value of a key.
	Get(ctx context.Context, key string) *redis.StringCmd

	// Del deletes one or more keys.
	Del(ctx context.Context, keys ...string) *redis.IntCmd

	// Exists returns the number of keys that exist from the specified keys.
	Exists(ctx context.Context, keys ...string) *redis.IntCmd

	// Expire sets an expiration on a key.
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd

	// TTL returns the remaining time to live of a key.
	TTL(ctx context.Context, key string) *redis.DurationCmd

	// Incr increments the integer value of a key by one.
	Incr(ctx context.Context, key string) *redis.IntCmd

	// Ping pings the Redis server.
	Ping(ctx context.Context) *redis.StatusCmd

	// Close closes the client connection.
	Close() error
}

// Compile-time interface compliance check. This ensures that *redis.Client
// satisfies the Cmdable interface at compile time rather than at runtime.
var _ Cmdable = (*redis.Client)(nil)

// Client is a Redis client with OpenTelemetry tracing and structured error
// handling. It wraps a [Cmdable] (typically [*redis.Client]) and adds
// cross-cutting concerns transparently to all Redis operations.
//
// A Client is safe for concurrent use by multiple goroutines. Create one
// Client per Redis instance and share it across the application.
type Client struct {
	cmdable Cmdable
	config  *Config
	tracer  trace.Tracer
	dbIndex int
}

// NewClient creates a new Redis client with connection pooling. It validates
// the configuration, creates a go-redis client with the appropriate options,
// and verifies connectivity with a ping.
//
// The caller must call [Client.Close] when the client is no longer needed
// to release connection resources.
//
// Error codes returned:
//   - [iderr.CodeValidation]: invalid configuration
//   - [iderr.CodeUnavailable]: cannot connect to Redis
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, iderr.Wrap(err, iderr.CodeValidation,
			"redis: invalid configuration")
	}

	var opts *redis.Options
	if cfg.URI != "" {
		var err error
		opts, err = redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, iderr.Wrap(err, iderr.CodeValidation,
				"redis: failed to parse connection URI")
		}
		// Apply pool settings from config to parsed options.
		opts.PoolSize = cfg.PoolSize
		opts.MinIdleConns = cfg.MinIdleConns
		opts.MaxRetries = cfg.MaxRetries
		if cfg.DialTimeout > 0 {
			opts.DialTimeout = cfg.DialTimeout
		}
		if cfg.ReadTimeout > 0 {
			opts.ReadTimeout = cfg.ReadTimeout
		}
		if cfg.WriteTimeout > 0 {
			opts.WriteTimeout = cfg.WriteTimeout
		}
		if opts.TLSConfig != nil {
			opts.TLSConfig.MinVersion = tls.VersionTLS12
		}
	} else {
		opts = &redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Password:     cfg.Password.Value(),
			DB:           cfg.DB,
			PoolSize:     cfg.PoolSize,
			MinIdleConns: cfg.MinIdleConns,
			MaxRetries:   cfg.MaxRetries,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		}
	}

	rdb := redis.NewClient(opts)

	// Verify connectivity before returning the client.
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, iderr.Wrap(err, iderr.CodeUnavailable,
			"redis: failed to connect to server")
	}

	dbIndex := cfg.DB
	if cfg.URI != "" {
		dbIndex = opts.DB
	}

	return &Client{
		cmdable: rdb,
		config:  &cfg,
		tracer:  otel.Tracer(tracerName),
		dbIndex: dbIndex,
	}, nil
}

// NewFromClient creates a Client with a pre-existing [Cmdable]. This
// constructor is intended for testing (e.g., a go-redis client bound to a
// miniredis instance) and for advanced use cases where a custom client
// implementation is needed.
//
// The cfg parameter is stored but not validated; pass nil for a zero-value
// config in tests.
func NewFromClient(cmdable Cmdable, cfg *Config) *Client {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Client{
		cmdable: cmdable,
		config:  cfg,
		tracer:  otel.Tracer(tracerName),
		dbIndex: cfg.DB,
	}
}

// Set sets the string value of a key with an optional expiration, with
// OpenTelemetry tracing.
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	ctx, span := c.startSpan(ctx, "Set", fmt.Sprintf("SET %s", key))
	err := c.cmdable.Set(ctx, key, value, expiration).Err()
	finishSpan(span, err)
	if err != nil {
		return wrapError(err, "redis: set failed")
	}
	return nil
}

// Get returns the string value of a key, with OpenTelemetry tracing.
// The returned error wraps [redis.Nil] when the key does not exist:
//
//	val, err := client.Get(ctx, "attempts:alice")
//	if errors.Is(err, redis.Nil) {
//	    // key does not exist
//	}
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	ctx, span := c.startSpan(ctx, "Get", fmt.Sprintf("GET %s", key))
	val, err := c.cmdable.Get(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return "", wrapError(err, "redis: get failed")
	}
	return val, nil
}

// Del deletes one or more keys and returns the number of keys that were
// removed, with OpenTelemetry tracing.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	ctx, span := c.startSpan(ctx, "Del", fmt.Sprintf("DEL %v", keys))
	val, err := c.cmdable.Del(ctx, keys...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: del failed")
	}
	return val, nil
}

// Exists returns the number of specified keys that exist, with
// OpenTelemetry tracing.
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	ctx, span := c.startSpan(ctx, "Exists", fmt.Sprintf("EXISTS %v", keys))
	val, err := c.cmdable.Exists(ctx, keys...).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: exists failed")
	}
	return val, nil
}

// Expire sets an expiration on a key and returns true if the timeout was
// set successfully, with OpenTelemetry tracing.
func (c *Client) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	ctx, span := c.startSpan(ctx, "Expire", fmt.Sprintf("EXPIRE %s %v", key, expiration))
	val, err := c.cmdable.Expire(ctx, key, expiration).Result()
	finishSpan(span, err)
	if err != nil {
		return false, wrapError(err, "redis: expire failed")
	}
	return val, nil
}

// TTL returns the remaining time to live of a key, with OpenTelemetry
// tracing. Returns -1 if the key exists but has no associated expiration,
// and -2 if the key does not exist.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ctx, span := c.startSpan(ctx, "TTL", fmt.Sprintf("TTL %s", key))
	val, err := c.cmdable.TTL(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: ttl failed")
	}
	return val, nil
}

// Incr increments the integer value of a key by one and returns the new
// value, with OpenTelemetry tracing. Missing keys are initialized to 0
// before the increment.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	ctx, span := c.startSpan(ctx, "Incr", fmt.Sprintf("INCR %s", key))
	val, err := c.cmdable.Incr(ctx, key).Result()
	finishSpan(span, err)
	if err != nil {
		return 0, wrapError(err, "redis: incr failed")
	}
	return val, nil
}

// Health verifies that the Redis connection is alive by executing a ping.
// It applies [DefaultHealthTimeout] if the provided context has no deadline.
//
// Returns nil if Redis is reachable, or a [*iderr.Error] with code
// [iderr.CodeUnavailable] if the ping fails.
func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.startSpan(ctx, "Health", "PING")

	// Apply a default timeout if the caller's context has no deadline.
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHealthTimeout)
		defer cancel()
	}

	err := c.cmdable.Ping(ctx).Err()
	finishSpan(span, err)
	if err != nil {
		return iderr.Wrap(err, iderr.CodeUnavailable,
			"redis: health check failed")
	}
	return nil
}

// Close releases all connection resources. After Close is called,
// the client must not be used. Close is safe to call multiple times.
func (c *Client) Close() error {
	return c.cmdable.Close()
}

// Client returns the underlying [Cmdable] interface for advanced use cases
// not covered by the Client's methods.
//
// The returned Cmdable should not be closed directly; use [Client.Close]
// instead.
func (c *Client) Client() Cmdable {
	return c.cmdable
}

// startSpan creates a new OpenTelemetry span with standard database semantic
// attributes. It follows the OpenTelemetry semantic conventions for database
// client spans: https://opentelemetry.io/docs/specs/semconv/database/
func (c *Client) startSpan(ctx context.Context, operationName, statement string) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, "redis."+operationName,
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("db.system", "redis"),
		attribute.Int("db.redis.database_index", c.dbIndex),
		attribute.String("db.statement", truncateStatement(statement)),
	)
	return ctx, span
}

// finishSpan records an error on the span (if any) and ends it. If err is
// nil, the span status is set to OK.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// wrapError converts a Redis error to a [*iderr.Error] with an appropriate
// error code. [context.DeadlineExceeded] is classified as
// [iderr.CodeTimeoutDatabase] (retryable); everything else, including
// [context.Canceled], as [iderr.CodeInternalDatabase], since retrying an
// intentionally canceled request is wasteful.
//
// [redis.Nil] is wrapped, not swallowed; callers can still detect missing
// keys with errors.Is(err, redis.Nil).
func wrapError(err error, message string) *iderr.Error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return iderr.Wrap(err, iderr.CodeTimeoutDatabase, message)
	}
	return iderr.Wrap(err, iderr.CodeInternalDatabase, message)
}
