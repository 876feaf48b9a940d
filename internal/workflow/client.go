package workflow

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

	"github.com/1026465274/coze-workflow-app/internal/domain"
)

// ErrNotConfigured is returned when the provider credentials are absent. This
// is an operator problem, not a user one.
var ErrNotConfigured = errors.New("coze api token or workflow id is not configured")

type Mode string

const (
	// ModeStream consumes the workflow run as a stream of typed events.
	ModeStream Mode = "stream"
	// ModeRun issues a single blocking run call.
	ModeRun Mode = "run"
)

type Config struct {
	Token         string
	WorkflowID    string
	BaseURL       string
	Mode          Mode
	RunTimeout    time.Duration
	StreamTimeout time.Duration
	HTTPClient    *http.Client
}

// Client invokes the Coze workflow API in streaming or single-shot mode and
// normalizes both response shapes into one result.
type Client struct {
	token         string
	workflowID    string
	baseURL       string
	mode          Mode
	runTimeout    time.Duration
	streamTimeout time.Duration
	httpClient    *http.Client
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.coze.cn"
	}
	if cfg.Mode != ModeRun {
		cfg.Mode = ModeStream
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 30 * time.Second
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = 2 * time.Minute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Client{
		token:         strings.TrimSpace(cfg.Token),
		workflowID:    strings.TrimSpace(cfg.WorkflowID),
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		mode:          cfg.Mode,
		runTimeout:    cfg.RunTimeout,
		streamTimeout: cfg.StreamTimeout,
		httpClient:    cfg.HTTPClient,
	}
}

func (c *Client) Available() bool {
	return c.token != "" && c.workflowID != ""
}

func (c *Client) WorkflowID() string {
	return c.workflowID
}

// Result is the normalized output of one workflow run, independent of the
// invocation mode.
type Result struct {
	// OutData is the display string for the end user.
	OutData string
	// Extracted is the first structured payload found in the response, if any.
	Extracted json.RawMessage
	// Raw preserves the provider response for diagnostics.
	Raw json.RawMessage
	// Method records which API mode produced the result.
	Method string
}

// Execute runs the workflow in the configured mode. onEvent, when non-nil, is
// invoked once per received stream chunk with the chunk's event name.
func (c *Client) Execute(ctx context.Context, input string, onEvent func(event string)) (*Result, error) {
	if !c.Available() {
		return nil, ErrNotConfigured
	}
	if c.mode == ModeRun {
		return c.Run(ctx, input)
	}
	return c.Stream(ctx, input, onEvent)
}

// Describe builds the result envelope recorded on the job.
func (c *Client) Describe(input string, result *Result) *domain.WorkflowInfo {
	return &domain.WorkflowInfo{
		Timestamp:    time.Now().UTC(),
		WorkflowID:   c.workflowID,
		InputLength:  len(input),
		ResponseData: result.Raw,
		APIMethod:    result.Method,
		Extracted:    result.Extracted,
	}
}

// Run issues a single blocking workflow call and parses the batch payload.
func (c *Client) Run(ctx context.Context, input string) (*Result, error) {
	if !c.Available() {
		return nil, ErrNotConfigured
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.runTimeout)
	defer cancel()

	body, err := c.call(timeoutCtx, "/v1/workflow/run", input, "application/json")
	if err != nil {
		return nil, err
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode workflow response: %w", err)
	}

	outData := firstStringField(payload, "data", "output", "result")
	if strings.TrimSpace(outData) == "" {
		outData = "workflow completed"
	}

	return &Result{
		OutData:   outData,
		Extracted: extractInfoJSON(outData),
		Raw:       json.RawMessage(body),
		Method:    "run",
	}, nil
}

func (c *Client) call(ctx context.Context, path, input, accept string) ([]byte, error) {
	payload, err := json.Marshal(map[string]any{
		"workflow_id": c.workflowID,
		"parameters": map[string]string{
			"input": strings.TrimSpace(input),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal workflow payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create workflow request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.token)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", accept)

	response, err := c.httpClient.Do(request)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("workflow api timeout: %w", err)
		}
		return nil, fmt.Errorf("workflow api transport error: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read workflow response: %w", err)
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, newHTTPError(response.StatusCode, body)
	}
	return body, nil
}

// firstStringField returns the first present key rendered as a string. Field
// naming varies across provider versions, so all known spellings are accepted.
func firstStringField(payload map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := payload[key]
		if !ok || len(raw) == 0 {
			continue
		}
		var asString string
		if err := json.Unmarshal(raw, &asString); err == nil {
			if strings.TrimSpace(asString) != "" {
				return asString
			}
			continue
		}
		return string(raw)
	}
	return ""
}

// extractInfoJSON pulls a structured infojson fragment out of a payload string
// when one is embedded; anything unparseable stays opaque.
func extractInfoJSON(value string) json.RawMessage {
	var embedded struct {
		InfoJSON json.RawMessage `json:"infojson"`
	}
	if err := json.Unmarshal([]byte(value), &embedded); err != nil {
		return nil
	}
	return embedded.InfoJSON
}

// HTTPError is a non-success response from the workflow provider.
type HTTPError struct {
	StatusCode int
	Message    string
}

func newHTTPError(statusCode int, body []byte) *HTTPError {
	message := strings.TrimSpace(string(body))
	if len(message) > 700 {
		message = message[:700]
	}
	return &HTTPError{StatusCode: statusCode, Message: message}
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("workflow api status %d: %s", e.StatusCode, e.Message)
}
