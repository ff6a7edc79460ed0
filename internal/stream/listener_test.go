// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bulknews/pkg/types"
)

const articleEnvelope = `{"data":[{"id":"DJDN000020210520eh5k0000l","attributes":{
	"an":"DJDN000020210520eh5k0000l",
	"action":"add",
	"document_type":"article",
	"source_code":"DJDN",
	"source_name":"Dow Jones Newswires",
	"title":"Example Headline",
	"publication_datetime":"2021-05-20T08:00:10.255Z"}}]}`

// fakeTransport feeds canned payloads to the receive callback until the
// context is cancelled.
type fakeTransport struct {
	payloads [][]byte
}

func (f *fakeTransport) Receive(ctx context.Context, fn func(ctx context.Context, m *pubsub.Message)) error {
	i := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fn(ctx, &pubsub.Message{Data: f.payloads[i%len(f.payloads)]})
		i++
	}
}

func fakeListener(t *testing.T, c *Client, payloads ...string) *Listener {
	t.Helper()
	l, err := c.NewListener("dj-synhub-stream-key-abc123-filtered-xyz", zerolog.Nop())
	require.NoError(t, err)

	var raw [][]byte
	for _, p := range payloads {
		raw = append(raw, []byte(p))
	}
	l.newTransport = func(context.Context) (transport, func(), error) {
		return &fakeTransport{payloads: raw}, nil, nil
	}
	return l
}

func TestDecodeEnvelope(t *testing.T) {
	article, err := decodeEnvelope([]byte(articleEnvelope))
	require.NoError(t, err)

	assert.Equal(t, "DJDN000020210520eh5k0000l", article.AN)
	assert.Equal(t, "add", article.Action)
	assert.Equal(t, "DJDN", article.SourceCode)
	assert.Equal(t, "Example Headline", article.Title)
}

func TestDecodeEnvelope_Errors(t *testing.T) {
	_, err := decodeEnvelope([]byte("not json"))
	assert.Error(t, err)

	_, err = decodeEnvelope([]byte(`{"data":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no article")
}

func TestListen_StopsAtMaximumMessages(t *testing.T) {
	c := testClient("http://example.invalid")
	l := fakeListener(t, c, articleEnvelope)

	var handled int64
	err := l.Listen(context.Background(), func(article types.Article, subID string) bool {
		assert.Equal(t, "DJDN000020210520eh5k0000l", article.AN)
		assert.Equal(t, "dj-synhub-stream-key-abc123-filtered-xyz", subID)
		atomic.AddInt64(&handled, 1)
		return true
	}, 3)

	require.NoError(t, err)
	assert.Equal(t, int64(3), atomic.LoadInt64(&handled))
}

func TestListen_HandlerDeclineStops(t *testing.T) {
	c := testClient("http://example.invalid")
	l := fakeListener(t, c, articleEnvelope)

	var handled int64
	err := l.Listen(context.Background(), func(types.Article, string) bool {
		return atomic.AddInt64(&handled, 1) < 2
	}, 100)

	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&handled))
}

func TestListen_RequiresPositiveMaximum(t *testing.T) {
	c := testClient("http://example.invalid")
	l := fakeListener(t, c, articleEnvelope)

	err := l.Listen(context.Background(), func(types.Article, string) bool { return true }, 0)
	assert.Error(t, err)
}

func TestListen_SkipsUndecodableMessages(t *testing.T) {
	c := testClient("http://example.invalid")
	l := fakeListener(t, c, "garbage", articleEnvelope)

	var handled int64
	err := l.Listen(context.Background(), func(types.Article, string) bool {
		atomic.AddInt64(&handled, 1)
		return true
	}, 2)

	require.NoError(t, err)
	assert.Equal(t, int64(2), atomic.LoadInt64(&handled))
}

func TestListenAsync_StopsOnCancel(t *testing.T) {
	c := testClient("http://example.invalid")
	l := fakeListener(t, c, articleEnvelope)

	ctx, cancel := context.WithCancel(context.Background())
	var handled int64
	go func() {
		// Let a few messages through, then stop the consumer.
		for atomic.LoadInt64(&handled) < 2 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	err := l.ListenAsync(ctx, func(types.Article, string) bool {
		atomic.AddInt64(&handled, 1)
		return true
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt64(&handled), int64(2))
}

func TestWatchQuota_WarnsOnceWhenExceeded(t *testing.T) {
	var statusCalls, accountCalls int64
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()

	mux.HandleFunc("/alpha/streams/dj-synhub-stream-key-abc123", func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&statusCalls, 1)
		fmt.Fprintf(w, streamJSON, "key", "DOC_COUNT_EXCEEDED")
	})
	mux.HandleFunc("/alpha/accounts/"+testKey, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&accountCalls, 1)
		fmt.Fprint(w, `{"data":{"attributes":{"max_allowed_extracts":100,"cnt_extractions":100}}}`)
	})

	c := NewClient(http.DefaultClient, types.StreamConfig{
		APIConfig:          types.APIConfig{Host: ts.URL, UserKey: testKey},
		QuotaCheckInterval: time.Millisecond,
	})
	l, err := c.NewListener("dj-synhub-stream-key-abc123-filtered-xyz", zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.watchQuota(ctx)
		close(done)
	}()

	// Give the watcher several poll cycles, then stop it.
	for atomic.LoadInt64(&statusCalls) < 3 {
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	// The account lookup happens only on the first exceeded observation.
	assert.Equal(t, int64(1), atomic.LoadInt64(&accountCalls))
}
