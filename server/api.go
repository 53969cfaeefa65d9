package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/pailer/pailer-core/server/backend"
	"github.com/pailer/pailer-core/server/interval"
	"github.com/pailer/pailer-core/server/settings"
	"github.com/pailer/pailer-core/server/updatelog"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 64 << 10
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error          string `json:"error"`
	Key            string `json:"key,omitempty"`
	MinimumSeconds uint64 `json:"minimumSeconds,omitempty"`
}

// ServeHTTP handles HTTP requests for the daemon.
// The root URL is <listenAddr>/api/v1/.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) newRouter() *mux.Router {
	router := mux.NewRouter()

	router.Use(s.RequestLogging)
	router.Use(s.TokenAuthorizationRequired)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()

	apiRouter.HandleFunc("/config/{key}", s.handleGetConfigValue).Methods(http.MethodGet)
	apiRouter.HandleFunc("/config/{key}", s.handleSetConfigValue).Methods(http.MethodPut)

	apiRouter.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	apiRouter.HandleFunc("/settings/interval", s.handleSelectInterval).Methods(http.MethodPut)
	apiRouter.HandleFunc("/settings/interval/custom", s.handleSaveCustomInterval).Methods(http.MethodPut)
	apiRouter.HandleFunc("/settings/flags/{name}", s.handleSetFlag).Methods(http.MethodPut)
	apiRouter.HandleFunc("/settings/language", s.handleSetLanguage).Methods(http.MethodPut)

	apiRouter.HandleFunc("/interval/preview", s.handlePreviewInterval).Methods(http.MethodGet)

	apiRouter.HandleFunc("/autoupdate/status", s.handleAutoUpdateStatus).Methods(http.MethodGet)
	apiRouter.HandleFunc("/autoupdate/run", s.handleAutoUpdateRun).Methods(http.MethodPost)
	apiRouter.HandleFunc("/autoupdate/state", s.handleResetAutoUpdateState).Methods(http.MethodDelete)

	apiRouter.HandleFunc("/history", s.handleGetHistory).Methods(http.MethodGet)
	apiRouter.HandleFunc("/history", s.handleClearHistory).Methods(http.MethodDelete)
	apiRouter.HandleFunc("/history/{id}", s.handleRemoveHistoryEntry).Methods(http.MethodDelete)

	apiRouter.Handle("/events", s.events).Methods(http.MethodGet)

	return router
}

// RequestLogging tags each request with an ID and logs it at debug level.
func (s *Server) RequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		s.logger.Debug("API request", "method", r.Method, "path", r.URL.Path, "requestId", requestID)
		next.ServeHTTP(w, r)
	})
}

// TokenAuthorizationRequired rejects requests without the configured API token. The token is read
// from a bearer Authorization header, or from the token query parameter for websocket clients.
func (s *Server) TokenAuthorizationRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		expected := s.getConfiguration().APIToken
		if expected == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
			http.Error(w, "Not authorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleGetConfigValue reads a backend config value. Keys the settings store manages are read from
// its snapshot.
func (s *Server) handleGetConfigValue(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	if settings.IsManaged(settings.Key(key)) {
		value, err := s.settings.Value(settings.Key(key))
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"key": key, "value": value})
		return
	}

	value, err := s.config.GetConfigValue(r.Context(), key)
	if err != nil {
		s.writeError(w, errors.Wrap(err, "failed to get config value"))
		return
	}
	if value == nil {
		value = json.RawMessage("null")
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"key": key, "value": value})
}

// handleSetConfigValue writes a backend config value. Keys the settings store manages go through
// the store, which applies the minimum interval for the current debug setting and mirrors the
// result to the backend.
func (s *Server) handleSetConfigValue(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, errors.Wrap(err, "failed to read request body"))
		return
	}

	if settings.IsManaged(settings.Key(key)) {
		if err := s.settings.SetValue(r.Context(), settings.Key(key), body); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := backend.ValidateConfigValue(key, body); err != nil {
		s.writeErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	if err := s.config.SetConfigValue(r.Context(), key, body); err != nil {
		s.writeError(w, errors.Wrap(err, "failed to set config value"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type settingsResponse struct {
	State          string                  `json:"state"`
	Settings       settings.Settings       `json:"settings"`
	Descriptions   map[settings.Key]string `json:"descriptions"`
	IntervalEditor settings.IntervalEditor `json:"intervalEditor"`
	Presets        []string                `json:"presets"`
	Units          []interval.Unit         `json:"units"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.settings.Get()
	if err != nil {
		s.writeError(w, err)
		return
	}

	editor, err := s.settings.IntervalEditor()
	if err != nil {
		s.writeError(w, err)
		return
	}

	descriptions := make(map[settings.Key]string)
	for _, key := range settings.AllKeys() {
		descriptions[key] = settings.KeyDescription(key)
	}

	s.writeJSON(w, http.StatusOK, settingsResponse{
		State:          s.settings.State().String(),
		Settings:       current,
		Descriptions:   descriptions,
		IntervalEditor: editor,
		Presets:        interval.Presets(),
		Units:          interval.Units(),
	})
}

type selectIntervalRequest struct {
	Descriptor string `json:"descriptor"`
}

func (s *Server) handleSelectInterval(w http.ResponseWriter, r *http.Request) {
	var req selectIntervalRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	descriptor, err := s.settings.SelectInterval(r.Context(), req.Descriptor)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeInterval(w, descriptor)
}

type customIntervalRequest struct {
	Quantity string `json:"quantity"`
	Unit     string `json:"unit"`
}

func (s *Server) handleSaveCustomInterval(w http.ResponseWriter, r *http.Request) {
	var req customIntervalRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	descriptor, err := s.settings.SaveCustomInterval(r.Context(), req.Quantity, req.Unit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeInterval(w, descriptor)
}

// writeInterval responds with the saved descriptor and its refreshed editor state.
func (s *Server) writeInterval(w http.ResponseWriter, descriptor string) {
	editor, err := s.settings.IntervalEditor()
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"descriptor":     descriptor,
		"intervalEditor": editor,
	})
}

type flagRequest struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) handleSetFlag(w http.ResponseWriter, r *http.Request) {
	key := settings.Key(mux.Vars(r)["name"])

	var req flagRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.settings.SetFlag(r.Context(), key, req.Enabled); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"key": key, "enabled": req.Enabled})
}

type languageRequest struct {
	Language string `json:"language"`
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var req languageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	if err := s.settings.SetLanguage(r.Context(), req.Language); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"language": req.Language})
}

type previewResponse struct {
	Descriptor string `json:"descriptor"`
	Canonical  string `json:"canonical"`
	Off        bool   `json:"off"`
	Seconds    uint64 `json:"seconds,omitempty"`
	Label      string `json:"label"`
}

// handlePreviewInterval describes a descriptor without saving it.
func (s *Server) handlePreviewInterval(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	descriptor := query.Get("descriptor")
	labels := interval.LabelsFor(query.Get("lang"))

	if interval.IsOff(descriptor) {
		s.writeJSON(w, http.StatusOK, previewResponse{Descriptor: descriptor, Canonical: interval.Off, Off: true, Label: interval.Off})
		return
	}

	seconds, err := interval.ParseSeconds(descriptor)
	if err != nil {
		s.writeError(w, err)
		return
	}

	canonical, err := interval.Canonical(descriptor)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, previewResponse{
		Descriptor: descriptor,
		Canonical:  canonical,
		Seconds:    seconds,
		Label:      interval.FormatHuman(seconds, labels),
	})
}

func (s *Server) handleAutoUpdateStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.autoUpdater.Status(r.Context())
	if err != nil {
		s.writeError(w, errors.Wrap(err, "failed to get auto-update status"))
		return
	}

	s.writeJSON(w, http.StatusOK, status)
}

// handleAutoUpdateRun starts an update in the background. Progress is reported on the event stream.
func (s *Server) handleAutoUpdateRun(w http.ResponseWriter, r *http.Request) {
	if s.autoUpdater.InProgress() {
		s.writeError(w, backend.ErrRunInProgress)
		return
	}

	go func() {
		if err := s.autoUpdater.RunNow(context.Background()); err != nil {
			s.logger.Warn("Manual auto-update run not started", "error", err.Error())
		}
	}()

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{"started": true})
}

func (s *Server) handleResetAutoUpdateState(w http.ResponseWriter, r *http.Request) {
	if err := s.autoUpdater.ResetState(); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	if operationType := query.Get("type"); operationType != "" {
		s.writeJSON(w, http.StatusOK, s.history.ByType(updatelog.OperationType(operationType)))
		return
	}

	if query.Get("all") == "true" {
		s.writeJSON(w, http.StatusOK, s.history.All())
		return
	}

	limit := 0
	if value := query.Get("limit"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			s.writeErrorStatus(w, http.StatusBadRequest, errors.Errorf("invalid limit %q", value))
			return
		}
		limit = parsed
	}

	s.writeJSON(w, http.StatusOK, s.history.Recent(limit))
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Clear(); err != nil {
		s.writeError(w, errors.Wrap(err, "failed to clear update history"))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Remove(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// decodeBody decodes a JSON request body into v, writing a 400 response on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		s.writeErrorStatus(w, http.StatusBadRequest, errors.Wrap(err, "invalid request body"))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("Failed to write response", "error", err.Error())
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeErrorStatus(w, statusForError(err), err)
}

func (s *Server) writeErrorStatus(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("API request failed", "status", status, "error", err.Error())
	}

	resp := errorResponse{Error: err.Error()}

	var belowMinimum *interval.BelowMinimumError
	if errors.As(err, &belowMinimum) {
		resp.MinimumSeconds = belowMinimum.Minimum
	}

	var persistErr *settings.PersistError
	if errors.As(err, &persistErr) {
		resp.Key = string(persistErr.Key)
	}

	s.writeJSON(w, status, resp)
}

// statusForError maps domain errors to HTTP status codes.
func statusForError(err error) int {
	var persistErr *settings.PersistError

	switch {
	case errors.Is(err, settings.ErrNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, settings.ErrSaveInProgress),
		errors.Is(err, settings.ErrAlreadyLoading),
		errors.Is(err, backend.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, updatelog.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.As(err, &persistErr):
		return http.StatusInternalServerError
	case errors.Is(err, interval.ErrUnrecognizedDescriptor),
		errors.Is(err, interval.ErrBelowMinimum),
		errors.Is(err, interval.ErrNonIntegerQuantity),
		errors.Is(err, interval.ErrUnknownUnit),
		errors.Is(err, interval.ErrOverflow),
		errors.Is(err, settings.ErrUnknownKey),
		errors.Is(err, settings.ErrInvalidValue):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
