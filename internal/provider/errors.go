package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// maxBodyBytes bounds how much of an upstream response body is kept on an
// UpstreamError.
const maxBodyBytes = 512

// ConfigurationError reports a missing credential or setting. It is never
// worth retrying.
type ConfigurationError struct {
	Provider string
	Setting  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s is not configured", e.Provider, e.Setting)
}

// UpstreamError reports a non-success response from an embedding or chat
// backend.
type UpstreamError struct {
	Provider   string
	Op         string
	StatusCode int
	Body       string
}

func NewUpstreamError(provider, op string, status int, body []byte) *UpstreamError {
	if len(body) > maxBodyBytes {
		body = body[:maxBodyBytes]
	}
	return &UpstreamError{Provider: provider, Op: op, StatusCode: status, Body: string(body)}
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s error (status %d): %s", e.Provider, e.Op, e.StatusCode, e.Body)
}

// Retryable reports whether the status suggests a transient failure.
func (e *UpstreamError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

func IsConfigurationError(err error) bool {
	var cfgErr *ConfigurationError
	return errors.As(err, &cfgErr)
}

// IsRetryable separates transient failures from permanent ones. Transport
// errors (no status at all) count as transient; cancellation does not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsConfigurationError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.Retryable()
	}
	return true
}

// ErrorCode maps a provider failure to an API error code and HTTP status.
// Configuration problems are reported apart from upstream ones so callers
// know not to retry them.
func ErrorCode(err error) (code string, status int) {
	if IsConfigurationError(err) {
		return "CONFIGURATION_ERROR", http.StatusInternalServerError
	}
	return "UPSTREAM_ERROR", http.StatusBadGateway
}
