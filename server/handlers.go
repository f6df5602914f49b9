package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/meikuraledutech/chat"
	"github.com/meikuraledutech/chat/auth"
	"github.com/meikuraledutech/chat/logging"
	"github.com/meikuraledutech/chat/orchestrator"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type createSessionRequest struct {
	Title *string `json:"title"`
}

type chatRequest struct {
	Message      string   `json:"message"`
	SessionID    string   `json:"session_id"`
	Image        *string  `json:"image"`
	ContextFiles []string `json:"context_files"`
}

type undoRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Chatbot Backend is running!"})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.auth.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "User created successfully",
		"username": user.Username,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Login successful",
		"username": user.Username,
		"user_id":  user.ID,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	title := ""
	if req.Title != nil {
		title = *req.Title
	}

	sess, err := s.history.CreateSession(r.Context(), title)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"id": sess.ID, "title": sess.Title})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.history.ListSessions(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.history.DeleteSession(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Session deleted"})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.history.ListMessages(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	turn := orchestrator.Turn{
		SessionID:    req.SessionID,
		Text:         req.Message,
		ContextFiles: req.ContextFiles,
	}
	if req.Image != nil {
		turn.Image = *req.Image
	}

	res, err := s.orch.HandleTurn(r.Context(), turn)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"response": res.Reply})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	var req undoRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	n, err := s.history.UndoLastTurn(r.Context(), req.SessionID)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	if n == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": "Nothing to undo"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Undo successful", "deleted_count": n})
}

// handleUpload stores the multipart field "file" under the uploads dir using
// only the base name of the client's file name.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "A multipart field named file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(filepath.Clean("/" + header.Filename))
	if name == "/" || name == "." {
		writeError(w, http.StatusBadRequest, "Invalid file name")
		return
	}

	path, err := s.saveUpload(name, file)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"filename": name, "path": path})
}

func (s *Server) saveUpload(name string, src io.Reader) (string, error) {
	dir, err := filepath.Abs(s.cfg.UploadsDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}

	path := filepath.Join(dir, name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("write upload: %w", err)
	}
	return path, dst.Close()
}

// fail maps an error onto a status code and a client-safe message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
	}
	writeError(w, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrInvalidSessionID):
		return http.StatusBadRequest, "Invalid session id"
	case errors.Is(err, auth.ErrInvalidInput):
		return http.StatusBadRequest, "Username and password are required"
	case errors.Is(err, chat.ErrUsernameTaken):
		return http.StatusBadRequest, "Username already exists"
	case errors.Is(err, chat.ErrSessionNotFound):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, chat.ErrMessageNotFound):
		return http.StatusNotFound, "Message not found"
	case errors.Is(err, chat.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError uses the {"detail": ...} shape the web client reads.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
