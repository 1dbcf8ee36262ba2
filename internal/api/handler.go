package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/eugenenazirov/storeconf/internal/settings"
	"github.com/eugenenazirov/storeconf/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

const defaultMaxBodyBytes = 1 << 20

// Handler serves the resolved settings and validates candidate fragments.
type Handler struct {
	store storage.Storage

	clock        func() time.Time
	maxBodyBytes int64
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithMaxBodyBytes limits the size of fragments accepted for validation.
func WithMaxBodyBytes(limit int64) HandlerOption {
	return func(h *Handler) {
		h.maxBodyBytes = limit
	}
}

// NewHandler constructs a Handler serving the settings held by store.
func NewHandler(store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		store: store,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	snap, err := h.store.Current()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
		Sections:  snap.Settings.Sections(),
		Revision:  snap.Revision,
		LoadedAt:  snap.LoadedAt,
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	_ = r
	snap, err := h.store.Current()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	w.Header().Set("X-Settings-Revision", strconv.FormatUint(snap.Revision, 10))
	writeJSON(w, http.StatusOK, snap.Settings.Redacted())
}

func (h *Handler) handleValidateSettings(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Invalid request", "settings fragment is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to read request body")
		return
	}

	resolved, err := settings.Load(settings.Bytes("request", body))
	if err != nil {
		var cfgErr *settings.ConfigError
		var srcErr *settings.SourceError
		switch {
		case errors.As(err, &cfgErr):
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
				Error:   "Invalid settings",
				Details: cfgErr.Error(),
				Kind:    cfgErr.KindName(),
				Key:     cfgErr.Key,
				Path:    cfgErr.Path,
			})
		case errors.As(err, &srcErr):
			writeError(w, http.StatusBadRequest, "Invalid request", srcErr.Err.Error(), "send a YAML or JSON mapping with redis and/or objectstore sections")
		default:
			writeInternalError(w, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, validateResponse{
		Valid:    true,
		Sections: resolved.Sections(),
		Settings: resolved.Redacted(),
	})
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Sections  []string  `json:"sections"`
	Revision  uint64    `json:"revision"`
	LoadedAt  time.Time `json:"loadedAt"`
}

type validateResponse struct {
	Valid    bool           `json:"valid"`
	Sections []string       `json:"sections"`
	Settings map[string]any `json:"settings"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Key        string `json:"key,omitempty"`
	Path       string `json:"path,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
