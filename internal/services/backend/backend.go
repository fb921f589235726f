// Package backend mirrors listing creations and executions to the marketplace
// backend over HTTP.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/anky/otc-indexer/internal/observability"
	"github.com/anky/otc-indexer/pkg/otc"
	"github.com/sirupsen/logrus"
)

const (
	DefaultBaseURL = "https://poiesis.anky.app"
	DefaultTimeout = 10 * time.Second

	SourceHeader = "X-Indexer-Source"
	Source       = "ponder-otc-indexer"

	ListingsPath   = "/otc/listings"
	ExecutionsPath = "/otc/executions"
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is an otc.Forwarder. Forward never returns an error and never
// retries: failures are logged and counted.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client

	log     *logrus.Entry
	metrics *observability.Metrics
}

var _ otc.Forwarder = (*Client)(nil)

func New(cfg Config, log *logrus.Logger, metrics *observability.Metrics) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		log:     log.WithField("component", "backend"),
		metrics: metrics,
	}

	if c.apiKey == "" {
		c.log.Info("INDEXER_API_KEY not set, listings and executions will not be sent to the backend")
	}

	return c
}

func pathFor(kind otc.NotificationKind) string {
	if kind == otc.NotificationExecution {
		return ExecutionsPath
	}
	return ListingsPath
}

func (c *Client) Forward(ctx context.Context, n otc.Notification) {
	path := pathFor(n.Kind)
	log := c.log.WithFields(logrus.Fields{"path": path, "id": n.Key()})

	if c.apiKey == "" {
		log.Debug("INDEXER_API_KEY not set, skipping backend sync")
		c.metrics.Notification(path, observability.OutcomeSkipped)
		return
	}

	body, err := json.Marshal(n.Payload())
	if err != nil {
		log.WithError(err).Error("failed to encode notification")
		c.metrics.Notification(path, observability.OutcomeFailed)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		log.WithError(err).Error("failed to build backend request")
		c.metrics.Notification(path, observability.OutcomeFailed)
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set(SourceHeader, Source)

	resp, err := c.client.Do(req)
	if err != nil {
		log.WithError(err).Warn("backend sync failed")
		c.metrics.Notification(path, observability.OutcomeFailed)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		log.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   string(msg),
		}).Warn("backend sync rejected")
		c.metrics.Notification(path, observability.OutcomeFailed)
		return
	}

	io.Copy(io.Discard, resp.Body)

	log.Debug("backend sync ok")
	c.metrics.Notification(path, observability.OutcomeSent)
}
