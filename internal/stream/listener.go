// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"github.com/pdiddy/bulknews/internal/auth"
	"github.com/pdiddy/bulknews/pkg/types"
)

// DefaultQuotaCheckInterval is the wait between stream status checks
// while consuming, when the config does not set one.
const DefaultQuotaCheckInterval = 5 * time.Second

// Handler processes one delivered article. Returning false stops a
// bounded Listen run early; ListenAsync ignores the return value.
type Handler func(article types.Article, subscriptionID string) bool

// Listener consumes articles from one stream subscription.
type Listener struct {
	client         *Client
	subscriptionID string
	log            zerolog.Logger

	// newTransport is swapped in tests to avoid a real Pub/Sub client.
	newTransport func(ctx context.Context) (transport, func(), error)
}

// transport abstracts the message source so tests can feed messages
// without Pub/Sub.
type transport interface {
	Receive(ctx context.Context, f func(ctx context.Context, m *pubsub.Message)) error
}

// NewListener returns a listener for the given subscription id.
func (c *Client) NewListener(subscriptionID string, log zerolog.Logger) (*Listener, error) {
	if subscriptionID == "" {
		return nil, fmt.Errorf("subscription id is required")
	}
	l := &Listener{
		client:         c,
		subscriptionID: subscriptionID,
		log:            log.With().Str("subscription", subscriptionID).Logger(),
	}
	l.newTransport = l.pubsubTransport
	return l, nil
}

// pubsubTransport fetches credentials and opens the Pub/Sub subscription.
func (l *Listener) pubsubTransport(ctx context.Context) (transport, func(), error) {
	creds, err := l.client.FetchCredentials(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching streaming credentials: %w", err)
	}

	psClient, err := pubsub.NewClient(ctx, creds.ProjectID, option.WithCredentialsJSON(creds.JSON))
	if err != nil {
		return nil, nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	sub := psClient.Subscription(l.subscriptionID)
	batch := l.client.cfg.BatchSize
	if batch <= 0 {
		batch = 10
	}
	sub.ReceiveSettings.MaxOutstandingMessages = batch

	return sub, func() { psClient.Close() }, nil
}

// Listen consumes up to maxMessages articles, invoking handler for each.
// It returns when the count is reached, when the handler returns false,
// or when ctx is cancelled. A quota watcher runs alongside and logs a
// warning when the stream reports DOC_COUNT_EXCEEDED.
func (l *Listener) Listen(ctx context.Context, handler Handler, maxMessages int) error {
	if maxMessages <= 0 {
		return fmt.Errorf("maximum messages must be positive")
	}
	return l.run(ctx, handler, int64(maxMessages))
}

// ListenAsync consumes articles until ctx is cancelled.
func (l *Listener) ListenAsync(ctx context.Context, handler Handler) error {
	return l.run(ctx, handler, 0)
}

func (l *Listener) run(ctx context.Context, handler Handler, limit int64) error {
	tr, cleanup, err := l.newTransport(ctx)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go l.watchQuota(cctx)

	l.log.Info().Msg("listening for articles")

	var consumed int64
	err = tr.Receive(cctx, func(_ context.Context, m *pubsub.Message) {
		article, err := decodeEnvelope(m.Data)
		if err != nil {
			l.log.Error().Err(err).Msg("dropping undecodable message")
			m.Nack()
			return
		}

		keep := handler(article, l.subscriptionID)
		m.Ack()
		l.log.Debug().Str("an", article.AN).Str("action", article.Action).Msg("article delivered")

		n := atomic.AddInt64(&consumed, 1)
		if !keep || (limit > 0 && n >= limit) {
			cancel()
		}
	})
	// Receive returns the cancellation used to stop a bounded run; that
	// is a clean exit, not a failure.
	if err != nil && cctx.Err() == nil {
		return fmt.Errorf("receiving messages: %w", err)
	}

	l.log.Info().Int64("consumed", atomic.LoadInt64(&consumed)).Msg("listener stopped")
	return nil
}

// watchQuota polls the stream status and warns once the account's
// document quota is exceeded. Delivery of already queued articles
// continues past that point, so consumption is not interrupted.
func (l *Listener) watchQuota(ctx context.Context) {
	streamID, err := StreamIDOfSubscription(l.subscriptionID)
	if err != nil {
		l.log.Warn().Err(err).Msg("quota watcher disabled")
		return
	}

	interval := l.client.cfg.QuotaCheckInterval
	if interval <= 0 {
		interval = DefaultQuotaCheckInterval
	}

	warned := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		s, err := l.client.Get(ctx, streamID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.log.Warn().Err(err).Msg("quota check failed")
			continue
		}
		if s.JobStatus != DocCountExceeded || warned {
			continue
		}
		warned = true

		event := l.log.Warn().Str("stream", streamID)
		if stats, err := auth.Statistics(ctx, l.client.httpClient, l.client.cfg.APIConfig); err == nil {
			event = event.Int("max_allowed_extracts", stats.MaxAllowedExtracts)
		}
		event.Msg("document quota exceeded; no new articles will be queued, queued articles still deliver")
	}
}

// decodeEnvelope unwraps the delivery envelope around one article.
func decodeEnvelope(data []byte) (types.Article, error) {
	var env struct {
		Data []struct {
			ID         string        `json:"id"`
			Attributes types.Article `json:"attributes"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return types.Article{}, fmt.Errorf("parsing message envelope: %w", err)
	}
	if len(env.Data) == 0 {
		return types.Article{}, fmt.Errorf("message envelope carries no article")
	}
	article := env.Data[0].Attributes
	if article.AN == "" {
		article.AN = env.Data[0].ID
	}
	return article, nil
}
