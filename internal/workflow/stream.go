package workflow

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Stream event names emitted by the workflow API.
const (
	eventMessage = "Message"
	eventError   = "Error"
	eventDone    = "Done"
)

// Stream invokes the workflow in streaming mode and consumes events until a
// terminating chunk. The first structured infojson found in a Message chunk
// becomes the canonical extracted result; chunks whose content is not valid
// JSON degrade to opaque display text instead of failing the run.
func (c *Client) Stream(ctx context.Context, input string, onEvent func(event string)) (*Result, error) {
	if !c.Available() {
		return nil, ErrNotConfigured
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.streamTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]any{
		"workflow_id": c.workflowID,
		"parameters": map[string]string{
			"input": strings.TrimSpace(input),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal workflow payload: %w", err)
	}

	request, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		c.baseURL+"/v1/workflow/stream_run",
		bytes.NewReader(payload),
	)
	if err != nil {
		return nil, fmt.Errorf("create workflow request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.token)
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", "text/event-stream")

	response, err := c.httpClient.Do(request)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("workflow api timeout: %w", err)
		}
		return nil, fmt.Errorf("workflow api transport error: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		body, _ := io.ReadAll(response.Body)
		return nil, newHTTPError(response.StatusCode, body)
	}

	return c.consumeStream(response.Body, onEvent)
}

type streamChunk struct {
	event string
	data  string
}

type messageContent struct {
	InfoJSON json.RawMessage `json:"infojson"`
	OutData  string          `json:"outData"`
}

func (c *Client) consumeStream(body io.Reader, onEvent func(event string)) (*Result, error) {
	var (
		infoJSON   json.RawMessage
		lastRaw    json.RawMessage
		outData    string
		opaqueText []string
	)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	chunk := streamChunk{}
	var dataLines []string

	dispatch := func() error {
		if chunk.event == "" && len(dataLines) == 0 {
			return nil
		}
		chunk.data = strings.Join(dataLines, "\n")
		defer func() {
			chunk = streamChunk{}
			dataLines = dataLines[:0]
		}()

		if onEvent != nil && chunk.event != "" {
			onEvent(chunk.event)
		}

		switch chunk.event {
		case eventError:
			return fmt.Errorf("workflow stream error: %s", streamErrorMessage(chunk.data))
		case eventDone:
			return errStreamDone
		case eventMessage:
			var envelope struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal([]byte(chunk.data), &envelope); err != nil || envelope.Content == "" {
				return nil
			}

			var content messageContent
			if err := json.Unmarshal([]byte(envelope.Content), &content); err != nil {
				// Not JSON; keep the fragment as display text.
				opaqueText = append(opaqueText, envelope.Content)
				return nil
			}
			if len(content.InfoJSON) > 0 {
				infoJSON = content.InfoJSON
			}
			if content.OutData != "" {
				outData = content.OutData
			}
			lastRaw = json.RawMessage(envelope.Content)
		}
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if err := dispatch(); err != nil {
				if errors.Is(err, errStreamDone) {
					break
				}
				return nil, err
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			chunk.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read workflow stream: %w", err)
	}
	// A stream ending without Done still counts as complete once drained.
	if err := dispatch(); err != nil && !errors.Is(err, errStreamDone) {
		return nil, err
	}

	if outData == "" {
		switch {
		case len(infoJSON) > 0:
			pretty, err := json.MarshalIndent(infoJSON, "", "  ")
			if err == nil {
				outData = string(pretty)
			} else {
				outData = string(infoJSON)
			}
		case len(opaqueText) > 0:
			outData = strings.Join(opaqueText, "\n")
		default:
			outData = "workflow completed"
		}
	}

	raw := lastRaw
	if len(infoJSON) > 0 {
		raw = infoJSON
	}

	return &Result{
		OutData:   outData,
		Extracted: infoJSON,
		Raw:       raw,
		Method:    "stream",
	}, nil
}

var errStreamDone = errors.New("stream done")

func streamErrorMessage(data string) string {
	var payload struct {
		ErrorMessage string `json:"error_message"`
		ErrorCode    int    `json:"error_code"`
	}
	if err := json.Unmarshal([]byte(data), &payload); err == nil && payload.ErrorMessage != "" {
		return payload.ErrorMessage
	}
	if strings.TrimSpace(data) != "" {
		return data
	}
	return "unknown stream error"
}
