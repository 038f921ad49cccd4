// internal/httpserver/server.go
//
// HTTP server wiring for the Grab backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", POST /api/auth/login, GET /api/leaderboard.
//   - Game endpoints (require auth): create/list/get/join/start/stop under /api/games.
//   - WebSocket entry point: GET /ws authenticates and hands off to the hub.
//   - JWT signing and parsing, username validation, in-memory sessions.
//
// Notes:
//   - Login is username-only. A name maps to one player id for the life
//     of the process; it can be relogged freely unless that player is
//     sitting in an unfinished game.
//   - Browsers cannot set headers on WebSocket dials, so /ws accepts the
//     token as a query parameter as well as a bearer header.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/grab-game/internal/archive"
	"github.com/grab-game/internal/game"
	"github.com/grab-game/internal/registry"
	"github.com/grab-game/internal/ws"
)

// Server bundles the router, the game registry, player sessions, the
// optional archive store and the WebSocket hub.
type Server struct {
	r        *chi.Mux
	registry *registry.Registry
	sessions *Sessions
	archive  *archive.Store
	hub      *ws.Hub
}

// New constructs a Server, installs middleware, and registers routes.
func New(reg *registry.Registry, arch *archive.Store, hub *ws.Hub) *Server {
	s := &Server{
		r:        chi.NewRouter(),
		registry: reg,
		sessions: NewSessions(),
		archive:  arch,
		hub:      hub,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(corsFromEnv())

	// --- public endpoints ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"service":"grab","endpoints":["/health","/api/auth/login","/api/games","/api/leaderboard","/ws"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// --- API ---
	s.r.Route("/api", func(api chi.Router) {
		api.Use(jsonContentType)

		api.Post("/auth/login", s.handleLogin)
		api.Get("/leaderboard", s.handleLeaderboard)

		api.Group(func(priv chi.Router) {
			priv.Use(s.requireAuth())
			priv.Post("/games", s.handleCreateGame)
			priv.Get("/games", s.handleListGames)
			priv.Get("/games/{id}", s.handleGetGame)
			priv.Post("/games/{id}/join", s.handleJoinGame)
			priv.Post("/games/{id}/start", s.handleStartGame)
			priv.Delete("/games/{id}", s.handleStopGame)
		})
	})

	// --- websocket ---
	s.r.Get("/ws", s.handleWS)

	// JSON 404 for anything unmatched.
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(fmt.Sprintf(`{"error":"not found","path":%q}`, r.URL.Path)))
	})

	return s
}

// Router exposes the mux so main can mount it into an http.Server and
// tests can drive it with httptest.
func (s *Server) Router() chi.Router { return s.r }

// ------ middleware ------

// jsonContentType sets a JSON content type for every /api response.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// corsFromEnv builds the CORS middleware from CORS_ORIGINS, a
// comma-separated list of allowed origins. Defaults to "*".
func corsFromEnv() func(http.Handler) http.Handler {
	origins := strings.Split(getEnv("CORS_ORIGINS", "*"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
}

// ctxPlayerKey is the context key for the authenticated player.
type ctxPlayerKey struct{}

type authPlayer struct {
	PlayerID string
	Username string
}

// requireAuth validates the bearer token and checks that the session it
// names is still known to this process.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearerToken(r)
			if tokenStr == "" {
				httpError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			p, err := s.parseJWT(tokenStr)
			if err != nil {
				httpError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			if _, ok := s.sessions.Get(p.PlayerID); !ok {
				httpError(w, http.StatusUnauthorized, "session expired")
				return
			}
			next.ServeHTTP(w, r.WithContext(contextWithPlayer(r.Context(), p)))
		})
	}
}

// ------ auth ------

type loginReq struct {
	Username string `json:"username"`
}

type loginRes struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// handleLogin issues a JWT for a username. A known name is reissued to
// the same player id; an unknown name mints a fresh one.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body loginReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		httpError(w, http.StatusBadRequest, "invalid json")
		return
	}
	username := strings.TrimSpace(body.Username)
	if err := validateUsername(username); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	if existing, ok := s.sessions.Lookup(username); ok {
		// The name belongs to a known player. Hand it back only if
		// that player is not sitting in a live game.
		if _, busy := s.registry.GameFor(existing.PlayerID); busy {
			httpError(w, http.StatusConflict, "username is taken")
			return
		}
		s.issueToken(w, existing)
		return
	}

	sess := &Session{
		PlayerID:  uuid.NewString(),
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	s.sessions.Put(sess)
	log.Info().Str("player_id", sess.PlayerID).Str("username", sess.Username).Msg("player logged in")
	s.issueToken(w, sess)
}

func (s *Server) issueToken(w http.ResponseWriter, sess *Session) {
	token, err := s.signJWT(sess.PlayerID, sess.Username)
	if err != nil {
		log.Error().Err(err).Msg("sign jwt")
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, loginRes{
		PlayerID: sess.PlayerID,
		Username: sess.Username,
		Token:    token,
	})
}

func validateUsername(u string) error {
	if len(u) < 1 || len(u) > 50 {
		return errors.New("username must be 1-50 characters")
	}
	for _, r := range u {
		ok := r == '_' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9')
		if !ok {
			return errors.New("username may only contain letters, numbers and underscores")
		}
	}
	return nil
}

// ------ games ------

type createGameReq struct {
	MaxPlayers       *int `json:"max_players"`
	TimeLimitSeconds *int `json:"time_limit_seconds"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	p := playerFrom(r.Context())

	// An empty body takes every default.
	var body createGameReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		httpError(w, http.StatusBadRequest, "invalid json")
		return
	}

	maxPlayers := 4
	if body.MaxPlayers != nil {
		maxPlayers = *body.MaxPlayers
	}
	if maxPlayers < 1 || maxPlayers > 8 {
		httpError(w, http.StatusBadRequest, "max_players must be between 1 and 8")
		return
	}

	limitSec := 300
	if body.TimeLimitSeconds != nil {
		limitSec = *body.TimeLimitSeconds
	}
	if limitSec != 0 && (limitSec < 30 || limitSec > 3600) {
		httpError(w, http.StatusBadRequest, "time_limit_seconds must be 0 or between 30 and 3600")
		return
	}

	g, err := s.registry.Create(p.PlayerID, p.Username, maxPlayers, time.Duration(limitSec)*time.Second)
	if err != nil {
		s.gameError(w, err)
		return
	}
	log.Info().Str("game_id", g.ID()).Str("creator", p.Username).Msg("game created")
	writeJSON(w, http.StatusCreated, g.Snapshot())
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	g, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.gameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Snapshot())
}

func (s *Server) handleJoinGame(w http.ResponseWriter, r *http.Request) {
	p := playerFrom(r.Context())
	g, err := s.registry.Join(chi.URLParam(r, "id"), p.PlayerID, p.Username)
	if err != nil {
		s.gameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Snapshot())
}

func (s *Server) handleStartGame(w http.ResponseWriter, r *http.Request) {
	p := playerFrom(r.Context())
	g, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.gameError(w, err)
		return
	}
	if err := g.Start(p.PlayerID); err != nil {
		s.gameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Snapshot())
}

func (s *Server) handleStopGame(w http.ResponseWriter, r *http.Request) {
	p := playerFrom(r.Context())
	g, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.gameError(w, err)
		return
	}
	if err := g.Stop(p.PlayerID); err != nil {
		s.gameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g.Snapshot())
}

// gameError maps registry and game errors onto HTTP statuses.
func (s *Server) gameError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrGameNotFound):
		httpError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, game.ErrNotCreator):
		httpError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, registry.ErrPlayerBusy),
		errors.Is(err, game.ErrGameNotWaiting),
		errors.Is(err, game.ErrGameFull),
		errors.Is(err, game.ErrAlreadyJoined),
		errors.Is(err, game.ErrTooFewPlayers),
		errors.Is(err, game.ErrGameFinished):
		httpError(w, http.StatusConflict, err.Error())
	default:
		log.Error().Err(err).Msg("game operation failed")
		httpError(w, http.StatusInternalServerError, "internal error")
	}
}

// ------ leaderboard ------

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if !s.archive.Enabled() {
		httpError(w, http.StatusServiceUnavailable, "leaderboard unavailable")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			httpError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	rows, err := s.archive.Leaderboard(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard query")
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// ------ websocket ------

// handleWS authenticates the upgrade request and hands the connection
// to the hub.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		tokenStr = bearerToken(r)
	}
	if tokenStr == "" {
		httpError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	p, err := s.parseJWT(tokenStr)
	if err != nil {
		httpError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	if _, ok := s.sessions.Get(p.PlayerID); !ok {
		httpError(w, http.StatusUnauthorized, "session expired")
		return
	}
	s.hub.ServeWS(w, r, p.PlayerID, p.Username)
}

// ------ jwt ------

func (s *Server) signJWT(playerID, username string) (string, error) {
	secret := getEnv("JWT_SECRET", "dev_secret_change_me")
	hours := 24
	if v := os.Getenv("JWT_EXPIRES_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			hours = n
		}
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      playerID,
		"username": username,
		"exp":      time.Now().Add(time.Duration(hours) * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	})
	return t.SignedString([]byte(secret))
}

func (s *Server) parseJWT(tokenStr string) (*authPlayer, error) {
	secret := getEnv("JWT_SECRET", "dev_secret_change_me")
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	sub, _ := claims["sub"].(string)
	username, _ := claims["username"].(string)
	if sub == "" || username == "" {
		return nil, errors.New("missing claims")
	}
	return &authPlayer{PlayerID: sub, Username: username}, nil
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

func contextWithPlayer(ctx context.Context, p *authPlayer) context.Context {
	return context.WithValue(ctx, ctxPlayerKey{}, p)
}

func playerFrom(ctx context.Context) *authPlayer {
	p, _ := ctx.Value(ctxPlayerKey{}).(*authPlayer)
	return p
}

// ------ util ------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// getEnv returns the env var or a default.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
