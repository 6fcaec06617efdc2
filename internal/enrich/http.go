package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-engine/internal/model"
	"github.com/sells-group/lead-engine/internal/resilience"
)

// maxResponseBytes limits how much of an enrichment response is read.
const maxResponseBytes = 1 << 20 // 1 MB

// HTTPOptions configures the HTTP enrichment client.
type HTTPOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// RequestsPerSecond caps the call rate to the enrichment service.
	// Zero disables client-side limiting.
	RequestsPerSecond float64

	Retry resilience.RetryConfig
}

// HTTPEnricher calls an external enrichment service over HTTP. It rate
// limits and retries transient failures; a non-transient failure surfaces
// as the per-lead error the orchestrator counts.
type HTTPEnricher struct {
	opts    HTTPOptions
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTP creates an HTTP enrichment client.
func NewHTTP(opts HTTPOptions) *HTTPEnricher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &HTTPEnricher{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: limiter,
	}
}

// enrichResponse is the wire shape returned by the enrichment service.
type enrichResponse struct {
	Success bool        `json:"success"`
	Lead    *model.Lead `json:"lead,omitempty"`
	Sources []string    `json:"sources,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Enrich posts the lead ID to the enrichment service and decodes the
// resulting snapshot.
func (e *HTTPEnricher) Enrich(ctx context.Context, leadID string) (*Result, error) {
	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "enrich: rate limit wait")
		}
	}

	retry := e.opts.Retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("enrichment", "enrich")
	}

	resp, err := resilience.Do(ctx, retry, func(ctx context.Context) (*enrichResponse, error) {
		return e.doRequest(ctx, leadID)
	})
	if err != nil {
		return nil, err
	}

	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "enrichment service reported failure"
		}
		return nil, eris.Errorf("enrich: %s", msg)
	}

	return &Result{Lead: resp.Lead, Sources: resp.Sources, Message: resp.Message}, nil
}

func (e *HTTPEnricher) doRequest(ctx context.Context, leadID string) (*enrichResponse, error) {
	body, err := json.Marshal(map[string]string{"lead_id": leadID})
	if err != nil {
		return nil, eris.Wrap(err, "enrich: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.opts.BaseURL+"/enrich", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if e.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.opts.APIKey)
	}

	httpResp, err := e.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: request")
	}
	defer httpResp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, eris.Wrap(err, "enrich: read response")
	}

	if httpResp.StatusCode >= 400 {
		err := eris.Errorf("enrich: service returned %d", httpResp.StatusCode)
		if resilience.IsTransientHTTPStatus(httpResp.StatusCode) {
			return nil, resilience.NewTransientError(err, httpResp.StatusCode)
		}
		return nil, err
	}

	var resp enrichResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, eris.Wrap(err, "enrich: decode response")
	}
	return &resp, nil
}
