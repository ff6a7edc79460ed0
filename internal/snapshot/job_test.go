// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bulknews/internal/auth"
	"github.com/pdiddy/bulknews/pkg/types"
)

const testKey = "abcd1234abcd1234abcd1234abcd1234"

func testClient(host string) *Client {
	return NewClient(http.DefaultClient, types.SnapshotConfig{
		APIConfig: types.APIConfig{
			HTTPConfig: types.HTTPConfig{UserAgent: "bulknews-test"},
			Host:       host,
			UserKey:    testKey,
		},
		PollInterval: time.Millisecond,
	})
}

func TestSubmitExplain(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/alpha/extractions/documents/_explain", r.URL.Path)
		assert.Equal(t, testKey, r.Header.Get("user-key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		query := payload["query"].(map[string]any)
		assert.Equal(t, whereClause, query["where"])

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"abc-123-def","attributes":{"current_state":"JOB_STATE_PENDING"},"links":{"self":"http://example.invalid/job"}}}`)
	}))
	defer ts.Close()

	job, err := testClient(ts.URL).SubmitExplain(context.Background(), NewQuery(whereClause))
	require.NoError(t, err)

	assert.Equal(t, "abc-123-def", job.ID)
	assert.Equal(t, "def", job.ShortID)
	assert.Equal(t, types.KindExplain, job.Kind)
	assert.Equal(t, types.JobStatePending, job.State)
	assert.Equal(t, "http://example.invalid/job", job.Link)
	assert.False(t, job.SubmittedAt.IsZero())
}

func TestSubmit_InvalidQueryRejectedLocally(t *testing.T) {
	c := testClient("http://example.invalid")
	_, err := c.SubmitExplain(context.Background(), NewQuery(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "where")
}

func TestSubmit_ForbiddenMapsToInvalidKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	_, err := testClient(ts.URL).SubmitExtraction(context.Background(), NewQuery(whereClause))
	assert.ErrorIs(t, err, auth.ErrInvalidUserKey)
}

func TestSubmit_ErrorBodySurfaced(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errors":[{"title":"invalid where clause"}]}`)
	}))
	defer ts.Close()

	_, err := testClient(ts.URL).SubmitAnalytics(context.Background(), NewQuery(whereClause))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.Contains(t, err.Error(), "invalid where clause")
}

func TestSubmitUpdate_Endpoint(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/alpha/extractions/dj-synhub-extraction-" + testKey + "-tthb9cxch9/additions"
		assert.Equal(t, wantPath, r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"data":{"id":"dj-synhub-extraction-`+testKey+`-tthb9cxch9-additions-20260101000000","attributes":{"current_state":"JOB_STATE_PENDING"}}}`)
	}))
	defer ts.Close()

	job, err := testClient(ts.URL).SubmitUpdate(context.Background(), "tthb9cxch9", UpdateAdditions)
	require.NoError(t, err)
	assert.Equal(t, types.KindUpdate, job.Kind)
	assert.Equal(t, "tthb9cxch9-additions-20260101000000", job.ShortID)
	// Submit response had no self link; the client rebuilds one.
	assert.True(t, strings.HasSuffix(job.Link, "/alpha/extractions/documents/"+job.ID))
}

func TestSubmitUpdate_Validation(t *testing.T) {
	c := testClient("http://example.invalid")

	_, err := c.SubmitUpdate(context.Background(), "", UpdateAdditions)
	assert.Error(t, err)

	_, err = c.SubmitUpdate(context.Background(), "tthb9cxch9", "mutations")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "update type")
}

func TestWait_PollsUntilDone(t *testing.T) {
	var polls int32
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()

	mux.HandleFunc("/alpha/extractions/documents/_explain", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"data":{"id":"xyz","attributes":{"current_state":"JOB_STATE_PENDING"},"links":{"self":"%s/alpha/extractions/documents/xyz"}}}`, ts.URL)
	})
	mux.HandleFunc("/alpha/extractions/documents/xyz", func(w http.ResponseWriter, _ *http.Request) {
		switch atomic.AddInt32(&polls, 1) {
		case 1:
			fmt.Fprint(w, `{"data":{"id":"xyz","attributes":{"current_state":"JOB_STATE_RUNNING"}}}`)
		default:
			fmt.Fprint(w, `{"data":{"id":"xyz","attributes":{"current_state":"JOB_STATE_DONE","counts":106535}}}`)
		}
	})

	c := testClient(ts.URL)
	job, err := c.SubmitExplain(context.Background(), NewQuery(whereClause))
	require.NoError(t, err)

	var progress strings.Builder
	results, err := c.Wait(context.Background(), job, &progress)
	require.NoError(t, err)

	require.NotNil(t, results.Explain)
	assert.Equal(t, int64(106535), results.Explain.DocumentVolume)
	assert.Equal(t, types.JobStateDone, job.State)
	assert.False(t, job.CompletedAt.IsZero())
	assert.GreaterOrEqual(t, atomic.LoadInt32(&polls), int32(2))
	assert.Contains(t, progress.String(), "JOB_STATE_RUNNING")
}

func TestWait_FailedJob(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"id":"xyz","attributes":{"current_state":"JOB_STATE_FAILED"}}}`)
	}))
	defer ts.Close()

	c := testClient(ts.URL)
	job := &types.Job{ID: "xyz", Kind: types.KindExtraction, Link: ts.URL + "/job"}

	_, err := c.Wait(context.Background(), job, &strings.Builder{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed server-side")
}

func TestFetch_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := testClient(ts.URL)
	job := &types.Job{ID: "gone", Kind: types.KindExplain, Link: ts.URL + "/job"}

	_, err := c.Fetch(context.Background(), job)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestFetch_AnalyticsResults(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"id":"a1","attributes":{"current_state":"JOB_STATE_DONE","results":[
			{"publication_datetime":"2018-01","count":950516},
			{"publication_datetime":"2018-02","count":929795,"source_code":"DJDN"}]}}}`)
	}))
	defer ts.Close()

	c := testClient(ts.URL)
	job := &types.Job{ID: "a1", Kind: types.KindAnalytics, Link: ts.URL + "/job"}

	results, err := c.Fetch(context.Background(), job)
	require.NoError(t, err)
	require.Len(t, results.Analytics, 2)
	assert.Equal(t, "2018-01", results.Analytics[0].PublicationDatetime)
	assert.Equal(t, int64(950516), results.Analytics[0].Count)
	assert.Equal(t, "DJDN", results.Analytics[1].SourceCode)
}

func TestOpenExtraction(t *testing.T) {
	c := testClient("https://api.example.com")
	job := c.OpenExtraction("tthb9cxch9")

	assert.Equal(t, "dj-synhub-extraction-"+testKey+"-tthb9cxch9", job.ID)
	assert.Equal(t, "tthb9cxch9", job.ShortID)
	assert.Equal(t, "https://api.example.com/alpha/extractions/documents/dj-synhub-extraction-"+testKey+"-tthb9cxch9", job.Link)
}

func TestOpenUpdate_RejectsMalformedID(t *testing.T) {
	c := testClient("https://api.example.com")

	_, err := c.OpenUpdate("notanupdateid")
	require.Error(t, err)

	job, err := c.OpenUpdate("tthb9cxch9-deletes-20260101000000")
	require.NoError(t, err)
	assert.Equal(t, types.KindUpdate, job.Kind)
}

func TestWait_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"data":{"id":"xyz","attributes":{"current_state":"JOB_STATE_RUNNING"}}}`)
	}))
	defer ts.Close()

	c := NewClient(http.DefaultClient, types.SnapshotConfig{
		APIConfig:    types.APIConfig{Host: ts.URL, UserKey: testKey},
		PollInterval: time.Hour,
	})
	job := &types.Job{ID: "xyz", Kind: types.KindExplain, Link: ts.URL + "/job"}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Wait(ctx, job, &strings.Builder{})
	assert.ErrorIs(t, err, context.Canceled)
}
