package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/sac2665/apex-transcriber-backend/internal/config"
	"github.com/sac2665/apex-transcriber-backend/internal/logger"
	"github.com/sac2665/apex-transcriber-backend/internal/types"
)

var (
	// ErrJobFailed means the remote job reached the failed terminal state
	// or finished without producing any segments.
	ErrJobFailed = errors.New("transcription job failed")
	// ErrPollDeadline means the job stayed non-terminal past the
	// configured attempt budget.
	ErrPollDeadline = errors.New("transcription polling deadline exceeded")
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Client submits asynchronous transcription jobs and polls them to a
// terminal state.
type Client struct {
	apiURL       string
	apiToken     string
	modelVersion string
	pollInterval time.Duration
	maxAttempts  int
}

func New(cfg *config.Config) *Client {
	return &Client{
		apiURL:       cfg.InferenceAPIURL,
		apiToken:     cfg.InferenceAPIToken,
		modelVersion: cfg.ModelVersion,
		pollInterval: cfg.PollInterval,
		maxAttempts:  cfg.MaxPollAttempts,
	}
}

type predictionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URLs   struct {
		Get string `json:"get"`
	} `json:"urls"`
	Output struct {
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	} `json:"output"`
	Error interface{} `json:"error"`
}

// Transcribe submits one job for the given audio reference and polls
// until it succeeds, fails, or runs out of attempts. On success the
// service's segments come back in service order with start/end
// truncated to whole seconds.
func (c *Client) Transcribe(ctx context.Context, ref types.AudioRef) ([]types.TranscriptSegment, error) {
	log := logger.New().WithField("module", "whisper")

	pred, err := c.submit(ctx, ref)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{"prediction_id": pred.ID, "status": pred.Status}).Info("job submitted")

	final, err := c.poll(ctx, pred, log)
	if err != nil {
		return nil, err
	}

	segments := make([]types.TranscriptSegment, 0, len(final.Output.Segments))
	for _, s := range final.Output.Segments {
		segments = append(segments, types.TranscriptSegment{
			Start: int(s.Start),
			End:   int(s.End),
			Text:  s.Text,
		})
	}
	if len(segments) == 0 {
		return nil, errors.Wrap(ErrJobFailed, "no segments in output")
	}
	log.WithField("segments", len(segments)).Info("transcription complete")
	return segments, nil
}

// submit pins the model version and passes the audio in whichever shape
// the transport produced: inline payload data or a fetchable URL. The
// two shapes are mutually exclusive.
func (c *Client) submit(ctx context.Context, ref types.AudioRef) (*predictionResponse, error) {
	var audio interface{}
	if ref.Data != "" {
		audio = map[string]string{"data": ref.Data}
	} else {
		audio = ref.URL
	}
	payload := map[string]interface{}{
		"version": c.modelVersion,
		"input":   map[string]interface{}{"audio": audio},
	}
	data, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "build submit request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.apiToken)

	var pred predictionResponse
	if err := doJSON(req, &pred); err != nil {
		return nil, errors.Wrap(err, "submit prediction")
	}
	if pred.URLs.Get == "" {
		return nil, errors.New("prediction response missing poll url")
	}
	return &pred, nil
}

// poll re-reads job status every pollInterval while it stays
// non-terminal. The attempt budget bounds the loop; exhausting it is
// ErrPollDeadline, a different failure from the job itself failing.
func (c *Client) poll(ctx context.Context, pred *predictionResponse, log *logrus.Entry) (*predictionResponse, error) {
	current := pred
	for attempt := 0; ; attempt++ {
		switch current.Status {
		case "succeeded":
			return current, nil
		case "failed", "canceled":
			return nil, errors.Wrapf(ErrJobFailed, "status %s: %v", current.Status, current.Error)
		}
		if attempt >= c.maxAttempts {
			return nil, errors.Wrapf(ErrPollDeadline, "still %s after %d attempts", current.Status, c.maxAttempts)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current.URLs.Get, nil)
		if err != nil {
			return nil, errors.Wrap(err, "build poll request")
		}
		req.Header.Set("Authorization", "Token "+c.apiToken)

		next := &predictionResponse{}
		if err := doJSON(req, next); err != nil {
			return nil, errors.Wrap(err, "poll prediction")
		}
		if next.URLs.Get == "" {
			next.URLs.Get = current.URLs.Get
		}
		log.WithFields(logrus.Fields{"prediction_id": next.ID, "status": next.Status, "attempt": attempt + 1}).Debug("polling transcription")
		current = next
	}
}

// doJSON issues the request with retry on transport errors and 5xx,
// decoding the body into target.
func doJSON(req *http.Request, target interface{}) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 20 * time.Second
	var lastErr error
	op := func() error {
		attempt := req
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				lastErr = err
				return backoff.Permanent(err)
			}
			attempt = req.Clone(req.Context())
			attempt.Body = body
		}
		resp, err := httpClient.Do(attempt)
		if err != nil {
			lastErr = err
			return err
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode >= 500 {
			lastErr = errors.Errorf("server error: %s", string(body))
			return lastErr
		}
		if resp.StatusCode >= 400 {
			lastErr = errors.Errorf("request rejected: %d %s", resp.StatusCode, string(body))
			return backoff.Permanent(lastErr)
		}
		if err := json.Unmarshal(body, target); err != nil {
			lastErr = errors.Errorf("json decode error: %v body=%s", err, string(body))
			return lastErr
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, req.Context())); err != nil {
		if lastErr != nil {
			return lastErr
		}
		return err
	}
	return nil
}
