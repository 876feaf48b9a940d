package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/1026465274/coze-workflow-app/internal/document"
)

type generateDocumentRequest struct {
	WorkflowData json.RawMessage `json:"workflowData"`
}

type downloadRequest struct {
	DocID      string `json:"docId"`
	DocumentID string `json:"documentId"`
	FileName   string `json:"fileName"`
}

// GenerateDocument runs the full artifact pipeline synchronously for an
// arbitrary structured payload.
func (api *API) GenerateDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	if api.publisher == nil || !api.publisher.Available() {
		writeError(w, http.StatusInternalServerError, "Server configuration error", "document webhook or blob storage is not configured")
		return
	}

	var request generateDocumentRequest
	if err := decodeJSON(r, &request); err != nil || len(request.WorkflowData) == 0 {
		writeError(w, http.StatusBadRequest, "Invalid input", "please provide workflow data")
		return
	}

	docID, err := api.publisher.CreateDocument(r.Context(), request.WorkflowData)
	if err != nil {
		if api.logger != nil {
			api.logger.Printf("document webhook failed: %v", err)
		}
		writeError(w, http.StatusBadGateway, "Document webhook error", "document generation webhook call failed")
		return
	}

	fileName := fmt.Sprintf("workflow_document_%d.docx", time.Now().UnixMilli())
	result, err := api.publisher.Convert(r.Context(), docID, fileName)
	if err != nil {
		if api.logger != nil {
			api.logger.Printf("document conversion failed doc_id=%s err=%v", docID, err)
		}
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":   "Download API error",
			"message": "document conversion failed",
			"docId":   docID,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"docId":       result.DocID,
		"downloadUrl": result.DownloadURL,
		"fileName":    result.FileName,
		"fileSize":    result.FileSize,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// Download exports one already-generated document and uploads it to blob
// storage, returning the public link. Accepts docId or documentId; callers
// differ in which name they send.
func (api *API) Download(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, "POST")
		return
	}

	var request downloadRequest
	if err := decodeJSON(r, &request); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid input", "request body must be JSON")
		return
	}

	docID := strings.TrimSpace(request.DocID)
	if docID == "" {
		docID = strings.TrimSpace(request.DocumentID)
	}
	if docID == "" {
		writeError(w, http.StatusBadRequest, "Invalid input", "please provide a document id (docId or documentId)")
		return
	}

	if api.publisher == nil {
		writeError(w, http.StatusInternalServerError, "Server configuration error", "blob storage is not configured")
		return
	}

	result, err := api.publisher.Convert(r.Context(), docID, strings.TrimSpace(request.FileName))
	if err != nil {
		if errors.Is(err, document.ErrNotConfigured) {
			writeError(w, http.StatusInternalServerError, "Server configuration error", "blob storage is not configured")
			return
		}
		if api.logger != nil {
			api.logger.Printf("document download failed doc_id=%s err=%v", docID, err)
		}
		writeError(w, http.StatusInternalServerError, "Document processing error", "document processing failed, please retry later")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"downloadUrl": result.DownloadURL,
		"fileName":    result.FileName,
		"fileSize":    result.FileSize,
		"documentId":  result.DocID,
		"docId":       result.DocID,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}
