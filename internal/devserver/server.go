// Package devserver is a reference implementation of the remote
// endpoints the client talks to, with canned answers and citation
// lists. It lets the client be exercised end to end without the real
// retrieval backend. Everything lives in memory and is lost on
// restart.
package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/raglet/raglet/internal/auth"
	"github.com/raglet/raglet/internal/log"
)

const maxBodyBytes = 1 << 20 // 1MB request bodies are plenty for chat

// Config contains configuration for creating the dev server.
type Config struct {
	Logger     log.Logger
	JWTSecret  []byte             // Required: 32+ bytes
	TokenTTL   time.Duration      // 0 = 30 minutes
	RateBurst  int                // Rate limiter burst size per IP (0 = default 60)
	TrustProxy bool               // Trust X-Real-IP/X-Forwarded-For headers
	Accounts   map[string]Account // nil = DefaultAccounts()
	Now        func() time.Time   // nil = time.Now; injectable for tests
}

// Server serves the chat protocol over HTTP.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a dev server with all routes configured.
func NewServer(cfg Config) (*Server, error) {
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	accounts := cfg.Accounts
	if accounts == nil {
		accounts = DefaultAccounts()
	}

	issuer := newTokenIssuer(cfg.JWTSecret, ttl)
	h := &handlers{
		logger:   logger,
		accounts: accounts,
		issuer:   issuer,
		store:    newStore(cfg.Now),
		now:      cfg.Now,
	}
	if h.now == nil {
		h.now = time.Now
	}

	protected := http.NewServeMux()
	protected.HandleFunc("GET /conversations", h.listConversations)
	protected.HandleFunc("POST /conversations", h.createConversation)
	protected.HandleFunc("GET /conversations/{id}/history", h.history)
	protected.HandleFunc("POST /conversations/{id}/send", h.send)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newThrottle(1.0, burst)

	// Middleware stack (outermost first):
	//   Recovery → RequestID → Logging → Throttle → Auth → Routes
	// RequestID must be before Logging so request_id is available in
	// log attributes. Login sits outside the auth layer.
	var secured http.Handler = protected
	secured = authMiddleware(issuer, logger)(secured)

	inner := http.NewServeMux()
	inner.HandleFunc("POST /login", h.login)
	inner.Handle("/conversations", secured)
	inner.Handle("/conversations/", secured)

	var handler http.Handler = inner
	handler = throttleMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probe sits outside the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, logger)
	})
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

type handlers struct {
	logger   log.Logger
	accounts map[string]Account
	issuer   *tokenIssuer
	store    *store
	answers  answerer
	now      func() time.Time
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Role     string `json:"role"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}

	account, ok := h.accounts[req.Username]
	if !ok || account.Password != req.Password {
		writeError(w, http.StatusUnauthorized, "Invalid username or password", h.logger)
		return
	}

	token, err := h.issuer.mint(req.Username, account.UserID, account.Role, h.now())
	if err != nil {
		h.logger.Error("minting token", "error", err, "user", req.Username)
		writeError(w, http.StatusInternalServerError, "could not issue token", h.logger)
		return
	}

	wireRole := string(account.Role)
	if account.Role == auth.RoleRestricted {
		wireRole = "ruser"
	}
	h.logger.Info("login", "user", req.Username, "role", wireRole)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		Role:     wireRole,
		UserID:   account.UserID,
		Username: req.Username,
	}, h.logger)
}

// modeAllowed reports whether the caller's role may touch the mode.
// The restricted role only sees the public document set.
func modeAllowed(role, mode string) bool {
	if mode != "public" && mode != "dual" {
		return false
	}
	if role == "ruser" && mode == "dual" {
		return false
	}
	return true
}

func (h *handlers) listConversations(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", h.logger)
		return
	}
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "public"
	}
	if !modeAllowed(caller.Role, mode) {
		writeError(w, http.StatusBadRequest, "mode not available for this account", h.logger)
		return
	}

	convs := h.store.list(caller.Username, mode)
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs}, h.logger)
}

type createRequest struct {
	Mode string `json:"mode"`
}

func (h *handlers) createConversation(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", h.logger)
		return
	}

	var req createRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if req.Mode == "" {
		req.Mode = "public"
	}
	if !modeAllowed(caller.Role, req.Mode) {
		writeError(w, http.StatusBadRequest, "mode not available for this account", h.logger)
		return
	}

	conv := h.store.create(caller.Username, req.Mode)
	h.logger.Info("conversation created", "user", caller.Username, "id", conv.ID, "mode", conv.Mode)
	writeJSON(w, http.StatusOK, conv, h.logger)
}

// conversationID parses the {id} path value.
func conversationID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

func (h *handlers) history(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", h.logger)
		return
	}
	id, err := conversationID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id", h.logger)
		return
	}

	conv, ok := h.store.get(caller.Username, id)
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found", h.logger)
		return
	}
	history := conv.history
	if history == nil {
		history = []message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": history}, h.logger)
}

type sendRequest struct {
	Text string `json:"text"`
}

type sendResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

func (h *handlers) send(w http.ResponseWriter, r *http.Request) {
	caller, ok := identityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", h.logger)
		return
	}
	id, err := conversationID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id", h.logger)
		return
	}

	var req sendRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text must not be empty", h.logger)
		return
	}

	conv, ok := h.store.get(caller.Username, id)
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found", h.logger)
		return
	}

	answer, sources := h.answers.respond(req.Text, conv.Mode)
	if !h.store.appendExchange(caller.Username, id, req.Text, answer) {
		writeError(w, http.StatusNotFound, "conversation not found", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, sendResponse{Answer: answer, Sources: sources}, h.logger)
}
