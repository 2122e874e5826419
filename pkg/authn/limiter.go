package authn

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/kestrelcloud/identity-core/pkg/clients/redis"
	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

// DefaultMaxAttempts is the attempt ceiling applied when the limiter
// configuration leaves MaxAttempts unset.
const DefaultMaxAttempts = 10

// DefaultWindow is the counting window applied when the limiter
// configuration leaves Window unset.
const DefaultWindow = 5 * time.Minute

// attemptKeyPrefix namespaces the per-username attempt counters.
const attemptKeyPrefix = "authn:attempts:"

// LimiterConfig holds the login attempt limiter settings.
type LimiterConfig struct {
	// MaxAttempts is the number of credential exchanges allowed per
	// username within one window before further attempts are throttled.
	// Environment variable: AUTHN_MAX_ATTEMPTS
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts" env:"AUTHN_MAX_ATTEMPTS" envDefault:"10"`

	// Window is the rolling period attempts are counted over. The counter
	// expires Window after the first attempt in the period.
	// Environment variable: AUTHN_ATTEMPT_WINDOW
	Window time.Duration `json:"window" yaml:"window" env:"AUTHN_ATTEMPT_WINDOW" envDefault:"5m"`
}

// AttemptLimiter throttles repeated credential exchanges per username with
// a Redis counter. The first attempt in a window creates the counter and
// sets its expiry; once the count passes the ceiling, attempts are denied
// until the window rolls over.
//
// An AttemptLimiter is safe for concurrent use by multiple goroutines.
type AttemptLimiter struct {
	client *redisclient.Client
	cfg    LimiterConfig
}

// NewAttemptLimiter creates a limiter backed by the given Redis client.
// Zero config fields fall back to [DefaultMaxAttempts] and [DefaultWindow].
func NewAttemptLimiter(client *redisclient.Client, cfg LimiterConfig) *AttemptLimiter {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	return &AttemptLimiter{client: client, cfg: cfg}
}

// Enforce counts one attempt for the username and reports whether it is
// allowed to proceed.
//
// Error codes returned:
//   - [iderr.CodeThrottled]: the attempt ceiling is reached for this window
//   - [iderr.CodeInternalDatabase] / [iderr.CodeTimeoutDatabase]: the
//     counter store is unreachable; callers decide whether to fail open
func (l *AttemptLimiter) Enforce(ctx context.Context, username string) error {
	key := attemptKeyPrefix + username

	count, err := l.client.Incr(ctx, key)
	if err != nil {
		return err
	}
	if count == 1 {
		if _, err := l.client.Expire(ctx, key, l.cfg.Window); err != nil {
			return err
		}
	}

	if count > int64(l.cfg.MaxAttempts) {
		return iderr.Newf(iderr.CodeThrottled,
			"authn: too many login attempts for this account, retry later").
			WithDetail("max_attempts", l.cfg.MaxAttempts).
			WithDetail("window", fmt.Sprint(l.cfg.Window))
	}
	return nil
}

// Reset clears the attempt counter for a username. Called after a
// successful exchange so legitimate users do not accumulate attempts
// across sessions.
func (l *AttemptLimiter) Reset(ctx context.Context, username string) error {
	_, err := l.client.Del(ctx, attemptKeyPrefix+username)
	return err
}
