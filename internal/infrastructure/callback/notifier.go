package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/acc-network/relay/internal/core/ports"
	"github.com/acc-network/relay/utils"
	log "github.com/sirupsen/logrus"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultRetryInterval = time.Second
)

type Config struct {
	Endpoint  string
	AccessKey string
	// Timeout bounds the whole delivery, retries included.
	Timeout       time.Duration
	RetryInterval time.Duration
}

type payload struct {
	AccessKey string             `json:"accessKey"`
	Type      ports.CallbackType `json:"type"`
	Code      int                `json:"code"`
	Message   string             `json:"message"`
	Data      any                `json:"data"`
}

// HTTPError is returned when the shop backend answers with a non 2xx status.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("callback failed with status %d: %s", e.StatusCode, e.Message)
}

type notifier struct {
	url       string
	accessKey string
	timeout   time.Duration
	interval  time.Duration
	client    *http.Client
}

// NewNotifier returns a notifier posting events to the shop backend. An empty
// endpoint yields a notifier that only logs.
func NewNotifier(cfg Config) (ports.Notifier, error) {
	if cfg.Endpoint == "" {
		return noop{}, nil
	}
	url, err := utils.ValidateEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid callback endpoint: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = defaultRetryInterval
	}
	return &notifier{
		url:       url,
		accessKey: cfg.AccessKey,
		timeout:   timeout,
		interval:  interval,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

func (n *notifier) Notify(ctx context.Context, event ports.CallbackEvent) error {
	body, err := json.Marshal(payload{
		AccessKey: n.accessKey,
		Type:      event.Type,
		Code:      event.Code,
		Message:   event.Message,
		Data:      event.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal callback: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	attempt := 0
	if err := utils.Retry(ctx, n.interval, func(ctx context.Context) (bool, error) {
		attempt++
		err := n.post(ctx, body)
		if err == nil {
			return true, nil
		}
		// The backend rejected the payload, sending it again won't help.
		if httpErr, ok := err.(*HTTPError); ok && httpErr.StatusCode < 500 {
			return false, err
		}
		log.WithError(err).Debugf("callback %s attempt %d failed, retrying", event.Type, attempt)
		return false, nil
	}); err != nil {
		return fmt.Errorf("failed to deliver %s callback after %d attempts: %w", event.Type, attempt, err)
	}
	return nil
}

func (n *notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 2000))
		return &HTTPError{StatusCode: res.StatusCode, Message: strings.TrimSpace(string(raw))}
	}
	return nil
}

type noop struct{}

func (noop) Notify(_ context.Context, event ports.CallbackEvent) error {
	log.Debugf("callback endpoint not configured, dropping %s event with code %d", event.Type, event.Code)
	return nil
}
