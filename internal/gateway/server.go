// Package gateway exposes the conversation engine to messaging front-ends
// over an authenticated JSON HTTP API.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/foldergate/foldergate/internal/engine"
	"github.com/foldergate/foldergate/internal/events"
	"github.com/foldergate/foldergate/internal/logging"
	"github.com/foldergate/foldergate/internal/metrics"
)

const (
	// multipartMemory is how much of a multipart upload is held in memory
	// before spilling to temp files.
	multipartMemory = 32 << 20

	// maxJSONBody caps message and action request bodies.
	maxJSONBody = 64 << 10
)

// Conversation is the engine as the gateway drives it.
type Conversation interface {
	HandleText(ctx context.Context, userID, text string) engine.Response
	HandleAction(ctx context.Context, userID, token string) engine.Response
	HandleFile(ctx context.Context, userID string, r io.Reader, name string) engine.Response
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// Server is the gateway HTTP server.
type Server struct {
	conv          Conversation
	auth          *Auth
	broadcaster   *events.Broadcaster
	maxUploadSize int64
}

// NewServer creates a gateway server.
func NewServer(conv Conversation, auth *Auth, broadcaster *events.Broadcaster, maxUploadSize int64) *Server {
	return &Server{
		conv:          conv,
		auth:          auth,
		broadcaster:   broadcaster,
		maxUploadSize: maxUploadSize,
	}
}

// Handler returns the HTTP handler with auth, logging and metrics
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	protected := http.NewServeMux()
	protected.HandleFunc("POST /api/v1/messages", s.handleMessage)
	protected.HandleFunc("POST /api/v1/actions", s.handleAction)
	protected.HandleFunc("POST /api/v1/files", s.handleFile)
	protected.HandleFunc("GET /api/v1/audit", s.handleAudit)
	protected.HandleFunc("GET /api/v1/audit/recent", s.handleAuditRecent)
	mux.Handle("/api/v1/", s.auth.Middleware(protected))

	return metrics.Middleware(logging.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type messageRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		sendError(w, http.StatusBadRequest, "user_id required")
		return
	}
	sendJSON(w, http.StatusOK, s.conv.HandleText(r.Context(), req.UserID, req.Text))
}

type actionRequest struct {
	UserID string `json:"user_id"`
	Action string `json:"action"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		sendError(w, http.StatusBadRequest, "user_id required")
		return
	}
	sendJSON(w, http.StatusOK, s.conv.HandleAction(r.Context(), req.UserID, req.Action))
}

// handleFile accepts multipart fields user_id and file, plus an optional
// name overriding the uploaded file name.
func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	tooLarge := func() {
		sendError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file exceeds maximum size of %d bytes", s.maxUploadSize))
	}
	if r.ContentLength > s.maxUploadSize {
		tooLarge()
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			tooLarge()
			return
		}
		sendError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	userID := r.FormValue("user_id")
	if userID == "" {
		sendError(w, http.StatusBadRequest, "user_id required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		sendError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	sendJSON(w, http.StatusOK, s.conv.HandleFile(r.Context(), userID, file, name))
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	client := ""
	if c := GetClaims(r.Context()); c != nil {
		client = c.Client
	}
	logging.WithContext(r.Context()).Info("audit stream opened", zap.String("client", client))

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleAuditRecent(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, s.broadcaster.Recent())
}

// decodeJSON reads a capped JSON body into v, replying with an error and
// returning false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return true
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		sendError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", maxJSONBody))
		return false
	}
	sendError(w, http.StatusBadRequest, "invalid request body")
	return false
}

func sendJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, code int, message string) {
	sendJSON(w, code, ErrorResponse{Error: message, Code: code})
}
