//go:build !integration

package queue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPDispatcher_PostsDetached(t *testing.T) {
	type hit struct {
		secret string
		body   map[string]string
	}
	hits := make(chan hit, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		hits <- hit{secret: r.Header.Get(JobSecretHeader), body: body}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	log := zerolog.Nop()
	d := NewHTTPDispatcher(srv.URL, "s3cret", time.Second, &log)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, d.Dispatch(ctx, "job-9"))
	cancel() // the trigger must survive the caller's context

	select {
	case h := <-hits:
		assert.Equal(t, "s3cret", h.secret)
		assert.Equal(t, "job-9", h.body["jobId"])
	case <-time.After(2 * time.Second):
		t.Fatal("process endpoint was never called")
	}
}
