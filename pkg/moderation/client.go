package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/wandern-app/echo-archiver/pkg/errors"
)

const (
	defaultTimeout              = 60 * time.Second
	responseBodyReadLimit int64 = 1024
)

var errAgentURLRequired = errors.New("moderation agent URL is required")

// Statuses returned in a Verdict. StatusError marks verdicts synthesized from
// a failed check, never an answer the agent actually gave.
const (
	StatusApproved = "approved"
	StatusFlagged  = "flagged"
	StatusError    = "error"
)

// Client calls the content moderation agent that gates permanent storage.
type Client struct {
	httpClient *http.Client
	agentURL   string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds the moderation client for the given agent endpoint.
func NewClient(agentURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(agentURL)
	if trimmed == "" {
		return nil, errAgentURLRequired
	}

	client := &Client{
		agentURL:   trimmed,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}

	return client, nil
}

// CheckRequest is the payload sent to the moderation agent.
type CheckRequest struct {
	Content     string  `json:"content"`
	ContentType string  `json:"content_type"`
	MediaURL    *string `json:"media_url"`
}

// Verdict is the typed moderation outcome. IsSafe is only ever true when the
// agent affirmatively approved the content.
type Verdict struct {
	IsSafe bool   `json:"is_safe"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Check performs one bounded moderation call and returns the agent's verdict.
// Transport and decode failures are returned as errors; callers that need the
// fail-closed policy should use CheckFailClosed.
func (c *Client) Check(ctx context.Context, req CheckRequest) (Verdict, error) {
	if c == nil {
		return Verdict{}, pkgerrors.New(pkgerrors.CodeUnconfigured, "moderation client not configured")
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return Verdict{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal moderation request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.agentURL, bytes.NewReader(payload))
	if err != nil {
		return Verdict{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build moderation request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Verdict{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute moderation request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return Verdict{}, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "moderation request failed")
	}

	var apiResp struct {
		IsSafe           bool   `json:"is_safe"`
		ModerationStatus string `json:"moderation_status"`
		FlagReason       string `json:"flag_reason"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return Verdict{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode moderation response")
	}

	return Verdict{
		IsSafe: apiResp.IsSafe,
		Status: apiResp.ModerationStatus,
		Reason: apiResp.FlagReason,
	}, nil
}

// CheckFailClosed wraps Check with the uploader's safety policy: when no
// verdict can be obtained the content is treated as unsafe. The absence of an
// answer is never approval.
func (c *Client) CheckFailClosed(ctx context.Context, req CheckRequest) Verdict {
	verdict, err := c.Check(ctx, req)
	if err != nil {
		return Verdict{
			IsSafe: false,
			Status: StatusError,
			Reason: fmt.Sprintf("Moderation check failed: %v", err),
		}
	}
	return verdict
}
