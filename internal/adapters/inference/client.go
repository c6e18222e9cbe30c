// Package inference is a client for OpenAI-compatible chat-completions endpoints
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	perr "repoharvest/internal/platform/errors"
	"repoharvest/internal/platform/logger"
)

const (
	defaultEndpoint = "https://api.deepseek.com/v1/chat/completions"
	defaultModel    = "deepseek-chat"
	defaultTimeout  = 60 * time.Second
	maxBody         = 1 << 20
)

// Options configures the Client
type Options struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration

	// JSONMode asks the endpoint for response_format json_object
	JSONMode bool
}

// Request is one prompt pair
type Request struct {
	System string
	User   string
}

// Completion is the model reply plus metered usage
type Completion struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	FinishReason string
}

// StatusError wraps a non-2xx response
type StatusError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

// Error interface
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("inference status %d", e.Status)
	}
	return fmt.Sprintf("inference status %d: %s", e.Status, e.Body)
}

// HTTPStatus interface
func (e *StatusError) HTTPStatus() int { return e.Status }

// AsStatus extracts a *StatusError from err
func AsStatus(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Client calls one chat-completions endpoint
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

// NewClient creates a new Client with defaults for unset options
func NewClient(o Options) *Client {
	if o.Endpoint == "" {
		o.Endpoint = defaultEndpoint
	}
	if o.Model == "" {
		o.Model = defaultModel
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("inference"),
	}
}

// Model returns the configured model name
func (c *Client) Model() string { return c.opts.Model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends one request. Errors are coded for retry classification:
// transport failures, timeouts, 408, 429 and 5xx are ErrorCodeUnavailable or
// ErrorCodeTooManyRequests; 401/403 are ErrorCodeUnauthorized/ErrorCodeForbidden;
// other 4xx are ErrorCodeRejected; an unusable body is ErrorCodeJSON.
func (c *Client) Complete(ctx context.Context, r Request) (Completion, error) {
	body, err := json.Marshal(c.payload(r))
	if err != nil {
		return Completion{}, perr.Wrap(err, perr.ErrorCodeJSON, "inference marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Completion{}, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "inference new request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.opts.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return Completion{}, ctx.Err()
		}
		return Completion{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "inference request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return Completion{}, perr.Wrap(err, perr.ErrorCodeUnavailable, "inference read body")
	}
	c.log.Debug().
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Int("bytes", len(b)).
		Msg("inference http response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Completion{}, classify(resp, b)
	}

	var cr chatResponse
	if err := json.Unmarshal(b, &cr); err != nil {
		return Completion{}, perr.Wrap(err, perr.ErrorCodeJSON, "inference decode response")
	}
	if len(cr.Choices) == 0 {
		return Completion{}, perr.New(perr.ErrorCodeJSON, "inference response has no choices")
	}
	model := cr.Model
	if model == "" {
		model = c.opts.Model
	}
	return Completion{
		Content:      cr.Choices[0].Message.Content,
		Model:        model,
		InputTokens:  cr.Usage.PromptTokens,
		OutputTokens: cr.Usage.CompletionTokens,
		FinishReason: cr.Choices[0].FinishReason,
	}, nil
}

func (c *Client) payload(r Request) chatRequest {
	msgs := make([]chatMessage, 0, 2)
	if s := strings.TrimSpace(r.System); s != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: s})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: r.User})
	out := chatRequest{
		Model:       c.opts.Model,
		Messages:    msgs,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
	}
	if c.opts.JSONMode {
		out.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return out
}

func classify(resp *http.Response, body []byte) error {
	tail := strings.TrimSpace(string(body))
	if len(tail) > 512 {
		tail = tail[:512]
	}
	se := &StatusError{Status: resp.StatusCode, Body: tail}
	if s := resp.Header.Get("Retry-After"); s != "" {
		if sec, err := strconv.Atoi(s); err == nil && sec > 0 {
			se.RetryAfter = time.Duration(sec) * time.Second
		}
	}
	switch st := resp.StatusCode; {
	case st == http.StatusTooManyRequests:
		return perr.Wrap(se, perr.ErrorCodeTooManyRequests, "inference rate limited")
	case st == http.StatusRequestTimeout || st >= 500:
		return perr.Wrap(se, perr.ErrorCodeUnavailable, "inference transient server error")
	case st == http.StatusUnauthorized:
		return perr.Wrap(se, perr.ErrorCodeUnauthorized, "inference rejected credentials")
	case st == http.StatusForbidden:
		return perr.Wrap(se, perr.ErrorCodeForbidden, "inference forbidden")
	default:
		return perr.Wrap(se, perr.ErrorCodeRejected, "inference rejected request")
	}
}
