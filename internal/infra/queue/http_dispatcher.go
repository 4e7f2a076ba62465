package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"offer-ai-service/internal/domain/ports/adapter"
)

const JobSecretHeader = "x-job-secret"

var _ adapter.Dispatcher = (*HTTPDispatcher)(nil)

// HTTPDispatcher triggers processing by calling the process endpoint.
// The call runs in the background on a context detached from the request.
type HTTPDispatcher struct {
	url    string
	secret string
	client *http.Client
	log    *zerolog.Logger
}

func NewHTTPDispatcher(url, secret string, timeout time.Duration, log *zerolog.Logger) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	return &HTTPDispatcher{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, jobID string) error {
	body, err := json.Marshal(map[string]string{"jobId": jobID})
	if err != nil {
		return err
	}
	bg := context.WithoutCancel(ctx)
	go func() {
		if err := d.post(bg, body); err != nil {
			d.log.Warn().Err(err).Str("job_id", jobID).Msg("process trigger failed")
		}
	}()
	return nil
}

func (d *HTTPDispatcher) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(JobSecretHeader, d.secret)
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("process endpoint returned %d", resp.StatusCode)
	}
	return nil
}
