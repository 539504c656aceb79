package api

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/export"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/redact"
	"github.com/askdb/askdb/internal/storage"
)

type askRequest struct {
	Question   string `json:"question"`
	PreviewSQL bool   `json:"preview_sql"`
	Format     string `json:"format"`
	Archive    bool   `json:"archive"`
}

type askResponse struct {
	SQL        string         `json:"sql"`
	Provider   string         `json:"provider"`
	Model      string         `json:"model"`
	Columns    []string       `json:"columns"`
	Rows       [][]any        `json:"rows"`
	RowCount   int            `json:"row_count"`
	Truncated  bool           `json:"truncated"`
	Stats      map[string]any `json:"stats"`
	ArchiveKey string         `json:"archive_key,omitempty"`
}

func handleAsk(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Pipeline == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ASK_NOT_CONFIGURED", "ask pipeline is not configured", false, nil)
		return
	}

	var req askRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid ask request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}

	// Preview never executes, so the translate role suffices for it.
	if req.PreviewSQL {
		if err := requireAnyRole(r, "translate", "ask"); err != nil {
			writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
			return
		}
		result, err := deps.Pipeline.TranslateOnly(r.Context(), req.Question)
		if err != nil {
			writePipelineError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sql":      result.SQL,
			"provider": result.Provider,
			"model":    result.Model,
		})
		return
	}

	if err := requireRole(r, "ask"); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	responseFormat, isJSON, err := parseResponseFormat(req.Format)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_FORMAT", err.Error(), false, nil)
		return
	}
	if req.Archive && deps.Archive == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "ARCHIVE_UNAVAILABLE", "no archive store is configured", false, nil)
		return
	}

	outcome, err := deps.Pipeline.Ask(r.Context(), req.Question)
	if err != nil {
		writePipelineError(r.Context(), w, err)
		return
	}

	var archiveKey string
	var archived []byte
	archiveFormat := responseFormat
	if isJSON {
		archiveFormat = export.FormatCSV
	}
	if req.Archive {
		archived, err = export.Encode(archiveFormat, outcome.Result)
		if err != nil {
			writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", "failed to encode result", false, map[string]any{"details": err.Error()})
			return
		}
		archiveKey, err = archiveResult(r.Context(), deps.Archive, archiveFormat, archived)
		if err != nil {
			writeError(r.Context(), w, http.StatusBadGateway, "ARCHIVE_FAILED", "failed to store result", true, map[string]any{"details": redact.Error(err)})
			return
		}
		observability.IncrementExport(string(archiveFormat))
	}

	if isJSON {
		writeJSON(w, http.StatusOK, askResponse{
			SQL:        outcome.SQL,
			Provider:   outcome.Provider,
			Model:      outcome.Model,
			Columns:    outcome.Result.Columns,
			Rows:       outcome.Result.Rows,
			RowCount:   outcome.Result.RowCount(),
			Truncated:  outcome.Result.Truncated,
			Stats:      map[string]any{"duration_ms": outcome.Result.Duration.Milliseconds()},
			ArchiveKey: archiveKey,
		})
		return
	}

	encoded := archived
	if encoded == nil {
		encoded, err = export.Encode(responseFormat, outcome.Result)
		if err != nil {
			writeError(r.Context(), w, http.StatusInternalServerError, "EXPORT_FAILED", "failed to encode result", false, map[string]any{"details": err.Error()})
			return
		}
		observability.IncrementExport(string(responseFormat))
	}

	w.Header().Set("Content-Type", responseFormat.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "result."+responseFormat.Extension()))
	if archiveKey != "" {
		w.Header().Set("X-Archive-Key", archiveKey)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(encoded)
}

// parseResponseFormat accepts json (the envelope, default) alongside the
// export formats.
func parseResponseFormat(value string) (export.Format, bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" || normalized == "json" {
		return "", true, nil
	}
	format, err := export.ParseFormat(normalized)
	if err != nil {
		return "", false, fmt.Errorf("unsupported format %q, expected json, csv, or parquet", value)
	}
	return format, false, nil
}

func archiveResult(ctx context.Context, store storage.ObjectStore, format export.Format, data []byte) (string, error) {
	key, err := storage.BuildResultKey(resultID(ctx), format.Extension())
	if err != nil {
		return "", err
	}
	_, err = store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: format.ContentType()})
	if err != nil {
		return "", err
	}
	return key, nil
}

// resultID names the archived object after the request trace when there is
// one, so the stored file can be matched to its log line. The trace header
// is client-supplied, so anything that is not a plain hex id is ignored.
func resultID(ctx context.Context) string {
	if traceID := observability.TraceIDFromContext(ctx); isHexID(traceID) {
		return traceID
	}
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return strconv.FormatInt(time.Now().UnixNano(), 16)
	}
	return hex.EncodeToString(buf)
}

func isHexID(value string) bool {
	if len(value) < 8 || len(value) > 64 {
		return false
	}
	for _, r := range value {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
