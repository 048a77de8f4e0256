// README: Fleet provider HTTP client: bounded retries, api-key injection, response envelope.
package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const (
	pathChangeAvailability = "/v2/change_fleet_availability"
	pathUpdateTaskStatus   = "/v2/update_task_status"
	pathGetRelatedTasks    = "/v2/get_related_tasks"
)

// transportAttempts bounds retries for transport-level faults only;
// provider rejections are never retried.
const transportAttempts = 3

// ErrNoResponse is the sentinel for "provider unreachable": every attempt
// failed at the transport level. Callers must treat it as a soft failure,
// distinct from an explicit provider rejection.
var ErrNoResponse = errors.New("fleet provider did not respond")

// RejectionError is an explicit provider rejection: the provider answered
// with a non-OK status in its envelope.
type RejectionError struct {
	Status  int
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("fleet provider rejected request: status=%d message=%q", e.Status, e.Message)
}

// responseBody is the provider's uniform response envelope.
type responseBody struct {
	Message string          `json:"message"`
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data"`
}

// ok reports whether the envelope status maps to success. 200 is the only
// success code; 100, 101, 201 and 404 are known rejection codes and any
// other value is treated the same way.
func (r *responseBody) ok() bool {
	return r.Status == http.StatusOK
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        zerolog.Logger
}

func NewClient(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With().Str("component", "fleet").Logger(),
	}
}

// call POSTs body to path, injecting the api key, and returns the parsed
// envelope. Transport faults are retried up to transportAttempts times;
// after that ErrNoResponse is returned.
func (c *Client) call(ctx context.Context, path string, body map[string]any) (*responseBody, error) {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("fleet: join url: %w", err)
	}
	body["api_key"] = c.apiKey
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("fleet: marshal request: %w", err)
	}

	for attempt := 0; attempt < transportAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("fleet: build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.log.Error().Err(err).Int("attempt", attempt+1).Str("path", path).Msg("fleet request failed")
			if ctx.Err() != nil {
				break
			}
			continue
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			c.log.Error().Err(err).Int("attempt", attempt+1).Str("path", path).Msg("fleet response read failed")
			continue
		}

		var envelope responseBody
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("fleet: unmarshal response: %w", err)
		}
		return &envelope, nil
	}
	return nil, ErrNoResponse
}
