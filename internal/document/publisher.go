package document

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

	"github.com/1026465274/coze-workflow-app/internal/blob"
	"github.com/1026465274/coze-workflow-app/internal/domain"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var ErrNotConfigured = errors.New("document webhook or blob storage is not configured")

type Config struct {
	// WebhookURL is the document-generation endpoint (a Google Apps Script
	// deployment in production).
	WebhookURL string
	// ExportBaseURL is the document host; <base>/d/<id>/export?format=docx
	// must yield the rendered file.
	ExportBaseURL string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Publisher turns a structured workflow payload into a downloadable document:
// generation webhook, export download, blob upload.
type Publisher struct {
	webhookURL    string
	exportBaseURL string
	timeout       time.Duration
	httpClient    *http.Client
	blobs         blob.Store
}

func NewPublisher(cfg Config, blobs blob.Store) *Publisher {
	if strings.TrimSpace(cfg.ExportBaseURL) == "" {
		cfg.ExportBaseURL = "https://docs.google.com/document"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Publisher{
		webhookURL:    strings.TrimSpace(cfg.WebhookURL),
		exportBaseURL: strings.TrimSuffix(cfg.ExportBaseURL, "/"),
		timeout:       cfg.Timeout,
		httpClient:    cfg.HTTPClient,
		blobs:         blobs,
	}
}

func (p *Publisher) Available() bool {
	return p.webhookURL != "" && p.blobs != nil
}

// Publish runs the full artifact pipeline. onStep, when non-nil, is invoked
// before each stage with a short description.
func (p *Publisher) Publish(
	ctx context.Context,
	payload json.RawMessage,
	fileName string,
	onStep func(step string),
) (*domain.DocumentResult, error) {
	if !p.Available() {
		return nil, ErrNotConfigured
	}

	step := func(name string) {
		if onStep != nil {
			onStep(name)
		}
	}

	step("calling document webhook")
	docID, err := p.CreateDocument(ctx, payload)
	if err != nil {
		return nil, err
	}

	step("preparing download link")
	return p.Convert(ctx, docID, fileName)
}

// CreateDocument posts the payload to the generation webhook and extracts the
// new document's id. The webhook's response schema is ambiguous across
// deployments, so several field names are accepted.
func (p *Publisher) CreateDocument(ctx context.Context, payload json.RawMessage) (string, error) {
	if p.webhookURL == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(map[string]any{
		"data":      payload,
		"source":    "coze-workflow",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("marshal webhook payload: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(timeoutCtx, http.MethodPost, p.webhookURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create webhook request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := p.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("document webhook transport error: %w", err)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(response.Body)
	if err != nil {
		return "", fmt.Errorf("read webhook response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", fmt.Errorf("document webhook status %d: %s", response.StatusCode, truncate(raw, 300))
	}

	docID := docIDFromResponse(raw)
	if docID == "" {
		return "", fmt.Errorf("document webhook response has no document id: %s", truncate(raw, 300))
	}
	return docID, nil
}

// Convert exports the document and uploads it, producing the final download
// metadata.
func (p *Publisher) Convert(ctx context.Context, docID, fileName string) (*domain.DocumentResult, error) {
	if p.blobs == nil {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(docID) == "" {
		return nil, errors.New("document id is required")
	}
	if strings.TrimSpace(fileName) == "" {
		fileName = fmt.Sprintf("document_%d.docx", time.Now().UnixMilli())
	}

	data, err := p.export(ctx, docID)
	if err != nil {
		return nil, err
	}

	downloadURL, err := p.blobs.Put(ctx, fileName, data, docxContentType)
	if err != nil {
		return nil, fmt.Errorf("upload document: %w", err)
	}

	return &domain.DocumentResult{
		DocID:       docID,
		DownloadURL: downloadURL,
		FileName:    fileName,
		FileSize:    int64(len(data)),
	}, nil
}

func (p *Publisher) export(ctx context.Context, docID string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	exportURL := fmt.Sprintf("%s/d/%s/export?format=docx", p.exportBaseURL, docID)
	request, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create export request: %w", err)
	}
	// The export endpoint rejects requests without a browser user agent.
	request.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	response, err := p.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("document export transport error: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, fmt.Errorf("document export status %d", response.StatusCode)
	}

	data, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("read exported document: %w", err)
	}
	return data, nil
}

// docIDFromResponse tolerates the field-name drift across webhook deployments.
func docIDFromResponse(raw []byte) string {
	var payload struct {
		DocID      string `json:"docId"`
		DocumentID string `json:"documentId"`
		ID         string `json:"id"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	for _, candidate := range []string{payload.DocID, payload.DocumentID, payload.ID} {
		if strings.TrimSpace(candidate) != "" {
			return strings.TrimSpace(candidate)
		}
	}
	return ""
}

func truncate(raw []byte, limit int) string {
	text := strings.TrimSpace(string(raw))
	if len(text) > limit {
		return text[:limit]
	}
	return text
}
