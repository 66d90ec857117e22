package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/davidbz/sonargate/internal/diagnostics"
	"github.com/davidbz/sonargate/internal/domain"
	"github.com/davidbz/sonargate/internal/observability"
	"github.com/davidbz/sonargate/internal/validation"
)

const maxBodyBytes = 1 << 20

// EntryReader reads back a persisted copy of the diagnostic trail.
type EntryReader interface {
	Entries(ctx context.Context) ([]string, error)
}

// Handler handles HTTP requests.
type Handler struct {
	gateway *domain.GatewayService
	trail   *diagnostics.Logger
	mirror  EntryReader
}

// NewHandler creates a new HTTP handler (DI constructor). mirror may be nil.
func NewHandler(gateway *domain.GatewayService, trail *diagnostics.Logger, mirror EntryReader) *Handler {
	return &Handler{
		gateway: gateway,
		trail:   trail,
		mirror:  mirror,
	}
}

type errorBody struct {
	Error      string                  `json:"error"`
	Violations []validation.FieldError `json:"violations,omitempty"`
}

type diagnosticsBody struct {
	Initialized bool     `json:"initialized"`
	Debug       bool     `json:"debug"`
	Source      string   `json:"source"`
	Entries     []string `json:"entries"`
}

// HandleCompletion processes chat completion requests. The body is kept
// untyped so the strict contract sees every key the client sent.
func (h *Handler) HandleCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	h.trail.Trace(ctx, diagnostics.MsgToolCallReceived, nil)

	raw, err := decodeBody(w, r)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(ctx, w, status, errorBody{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	if wantsStream(raw) {
		h.handleStream(ctx, w, raw)
		return
	}

	response, err := h.gateway.Complete(ctx, raw)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, response)
	h.trail.Trace(ctx, diagnostics.MsgResponseFormatted, nil)
}

func (h *Handler) handleStream(ctx context.Context, w http.ResponseWriter, raw any) {
	logger := observability.FromContext(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	chunks, err := h.gateway.Stream(ctx, raw)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for chunk := range chunks {
		if chunk.Error != nil {
			logger.Error("stream chunk error", observability.Error(chunk.Error))
			h.trail.Error(ctx, diagnostics.MsgAPIError, chunk.Error)
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", chunk.Error.Error())
			flusher.Flush()
			return
		}

		data, _ := json.Marshal(chunk)
		fmt.Fprintf(w, "data: %s\n\n", string(data))
		flusher.Flush()

		if chunk.Done {
			logger.Info("stream completed")
			return
		}
	}
}

// HandleDiagnostics exposes (GET) or clears (DELETE) the in-memory trail.
// GET with source=mirror reads the Redis copy instead.
func (h *Handler) HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getDiagnostics(w, r)
	case http.MethodDelete:
		h.trail.Clear()
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) getDiagnostics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body := diagnosticsBody{
		Initialized: h.trail.IsInitialized(),
		Debug:       h.trail.IsDebugEnabled(),
		Source:      "memory",
		Entries:     nil,
	}

	switch source := r.URL.Query().Get("source"); source {
	case "", "memory":
		body.Entries = h.trail.Content()
	case "mirror":
		if h.mirror == nil {
			writeJSON(ctx, w, http.StatusNotFound, errorBody{Error: "diagnostic mirror not configured"})
			return
		}
		entries, err := h.mirror.Entries(ctx)
		if err != nil {
			observability.FromContext(ctx).Error("failed to read diagnostic mirror", observability.Error(err))
			writeJSON(ctx, w, http.StatusBadGateway, errorBody{Error: err.Error()})
			return
		}
		body.Source = source
		body.Entries = entries
	default:
		writeJSON(ctx, w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("unknown source %q", source)})
		return
	}

	writeJSON(ctx, w, http.StatusOK, body)
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var vErr *validation.ValidationError
	if errors.As(err, &vErr) {
		status := http.StatusBadRequest
		if vErr.Subject == "response" {
			status = http.StatusBadGateway
		}
		writeJSON(ctx, w, status, errorBody{Error: vErr.Error(), Violations: vErr.Violations})
		return
	}

	observability.FromContext(ctx).Error("completion failed", observability.Error(err))
	writeJSON(ctx, w, http.StatusBadGateway, errorBody{Error: err.Error()})
}

// decodeBody reads exactly one JSON value, keeping numbers as json.Number.
func decodeBody(w http.ResponseWriter, r *http.Request) (any, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	return raw, nil
}

func wantsStream(raw any) bool {
	obj, ok := raw.(map[string]any)
	if !ok {
		return false
	}
	stream, _ := obj["stream"].(bool)
	return stream
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Already written status, can't change it, just log.
		observability.FromContext(ctx).Error("failed to encode response", observability.Error(err))
	}
}
