package adapter

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/bibbank/microcredit/internal/domain/valueobject"
)

// ClientConfig holds the connection settings of an external signal provider.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// Retries is the number of extra attempts on 5xx or transport errors.
	Retries      int
	RetryBackoff time.Duration
}

func newRestyClient(cfg ClientConfig) *resty.Client {
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(backoff).
		SetRetryMaxWaitTime(8 * backoff).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})
	if cfg.Timeout > 0 {
		c.SetTimeout(cfg.Timeout)
	}
	if cfg.APIKey != "" {
		c.SetHeader("X-API-Key", cfg.APIKey)
	}
	return c
}

// statusError maps a non-2xx provider response onto the domain sentinels.
func statusError(provider string, resp *resty.Response) error {
	switch code := resp.StatusCode(); {
	case code == http.StatusNotFound:
		return fmt.Errorf("%s: %w", provider, valueobject.ErrNotFound)
	case code >= http.StatusInternalServerError || code == http.StatusTooManyRequests:
		return fmt.Errorf("%s returned %d: %w", provider, code, valueobject.ErrUpstreamUnavailable)
	default:
		return fmt.Errorf("%s returned %d: %s", provider, code, resp.String())
	}
}
