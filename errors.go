package tierrouter

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	ErrConfiguration       = errors.New("tierrouter: configuration error")
	ErrNoProviderAvailable = errors.New("tierrouter: no provider available")
	ErrInvalidTokenCount   = errors.New("tierrouter: invalid token count")
	ErrUnknownProvider     = errors.New("tierrouter: unknown provider")
	ErrUnknownTier         = errors.New("tierrouter: unknown tier")
	ErrInvalidRequest      = errors.New("tierrouter: invalid request")
	ErrAuthFailed          = errors.New("tierrouter: authentication failed")
	ErrRateLimited         = errors.New("tierrouter: rate limited by provider")
	ErrProviderUnavailable = errors.New("tierrouter: provider unavailable")
	ErrModelNotFound       = errors.New("tierrouter: model not found")
)

// ConfigError describes an invalid registry or config entry.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tierrouter: config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

func configErrorf(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NoProviderError is returned when no healthy provider is bound at the
// requested tier or any cheaper one.
type NoProviderError struct {
	Tiers     []Tier
	Providers []Provider
}

func (e *NoProviderError) Error() string {
	tiers := make([]string, len(e.Tiers))
	for i, t := range e.Tiers {
		tiers[i] = t.String()
	}
	provs := make([]string, len(e.Providers))
	for i, p := range e.Providers {
		provs[i] = string(p)
	}
	return fmt.Sprintf("tierrouter: no provider available: tiers=[%s] providers=[%s]",
		strings.Join(tiers, ","), strings.Join(provs, ","))
}

func (e *NoProviderError) Unwrap() error { return ErrNoProviderAvailable }

// TokenCountError reports negative token counts passed to the accountant.
type TokenCountError struct {
	Input  int64
	Output int64
}

func (e *TokenCountError) Error() string {
	return fmt.Sprintf("tierrouter: invalid token count: input=%d output=%d", e.Input, e.Output)
}

func (e *TokenCountError) Unwrap() error { return ErrInvalidTokenCount }

// InteractionError wraps a client failure with the decision that produced it,
// so callers can retry against another provider themselves.
type InteractionError struct {
	Err      error
	Decision RoutingDecision
	Attempts int
}

func (e *InteractionError) Error() string {
	return fmt.Sprintf("tierrouter: provider=%s model=%s tier=%s attempts=%d: %v",
		e.Decision.Provider, e.Decision.Binding.Model, e.Decision.Tier, e.Attempts, e.Err)
}

func (e *InteractionError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the error should not be retried with another provider.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}

// IsRetryable returns true if the error can be retried with another provider.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrAuthFailed) ||
		errors.Is(err, ErrModelNotFound)
}
