package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/digkill/TGVoiceBot/internal/catalog"
	"github.com/digkill/TGVoiceBot/internal/ledger"
	"github.com/digkill/TGVoiceBot/internal/models"
	"github.com/digkill/TGVoiceBot/internal/repository"
	"github.com/digkill/TGVoiceBot/internal/service"
)

const generationsLimit = 50

type Broadcaster interface {
	Broadcast(ctx context.Context, text string) (int, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Server struct {
	addr        string
	username    string
	password    string
	log         *slog.Logger
	users       *service.UserService
	generations *repository.GenerationRepository
	uploads     ledger.Ledger
	catalog     *catalog.Catalog
	broadcaster Broadcaster
	db          Pinger
	router      *chi.Mux
}

type Deps struct {
	Users       *service.UserService
	Generations *repository.GenerationRepository
	Uploads     ledger.Ledger
	Catalog     *catalog.Catalog
	Broadcaster Broadcaster
	DB          Pinger
}

func NewServer(addr, username, password string, log *slog.Logger, deps Deps) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	s := &Server{
		addr:        addr,
		username:    username,
		password:    password,
		log:         log,
		users:       deps.Users,
		generations: deps.Generations,
		uploads:     deps.Uploads,
		catalog:     deps.Catalog,
		broadcaster: deps.Broadcaster,
		db:          deps.DB,
		router:      r,
	}
	r.Get("/healthz", s.handleHealth)
	r.Group(func(protected chi.Router) {
		protected.Use(s.basicAuthMiddleware())
		protected.Post("/broadcast", s.handleBroadcast)
		protected.Get("/catalog", s.handleCatalog)
		protected.Route("/users/{chatID}", func(r chi.Router) {
			r.Get("/", s.handleGetUser)
			r.Post("/credits", s.handleAdjustCredits)
			r.Get("/uploads", s.handleUploads)
			r.Get("/generations", s.handleGenerations)
		})
	})
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.log.Error("admin shutdown error", "err", err)
		}
	}()

	s.log.Info("admin panel listening", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin listen: %w", err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.log.Error("health check", "err", err)
			s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type broadcastRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleBroadcast(w http.ResponseWriter, r *http.Request) {
	var req broadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}

	ids, err := s.users.ListChatIDs(r.Context())
	if err != nil {
		s.internalError(w, err)
		return
	}
	sent, err := s.broadcaster.Broadcast(r.Context(), req.Message)
	if err != nil {
		s.internalError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"sent":  sent,
		"total": len(ids),
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	entries := make([]models.CatalogEntry, 0, s.catalog.Len())
	for _, item := range s.catalog.ListByCategory(catalog.DefaultCategoryOrder) {
		if !item.Header {
			entries = append(entries, item.Entry)
		}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatID(w, r)
	if !ok {
		return
	}
	user, err := s.users.Get(r.Context(), chatID)
	if err != nil {
		s.userError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

type creditsRequest struct {
	Delta *int `json:"delta"`
}

func (s *Server) handleAdjustCredits(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatID(w, r)
	if !ok {
		return
	}
	var req creditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Delta == nil {
		http.Error(w, "delta required", http.StatusBadRequest)
		return
	}

	user, err := s.users.AdjustCredits(r.Context(), chatID, *req.Delta)
	if err != nil {
		s.userError(w, err)
		return
	}
	s.log.Info("credits adjusted", "chat_id", chatID, "delta", *req.Delta, "credits", user.Credits)
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatID(w, r)
	if !ok {
		return
	}
	urls, err := s.uploads.List(r.Context(), chatID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if urls == nil {
		urls = []string{}
	}
	s.writeJSON(w, http.StatusOK, urls)
}

func (s *Server) handleGenerations(w http.ResponseWriter, r *http.Request) {
	chatID, ok := s.chatID(w, r)
	if !ok {
		return
	}
	list, err := s.generations.ListByChatID(r.Context(), chatID, generationsLimit)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if list == nil {
		list = []models.Generation{}
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) basicAuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok || s.username == "" || !equal(user, s.username) || !equal(pass, s.password) {
				w.Header().Set("WWW-Authenticate", `Basic realm="voicebot"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) chatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := parseID(chi.URLParam(r, "chatID"))
	if err != nil {
		http.Error(w, "invalid chat id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) userError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrUserNotFound) {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	s.internalError(w, err)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("admin handler error", "err", err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func parseID(value string) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(value), 10, 64)
}
