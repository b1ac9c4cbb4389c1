package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"zeni/internal/config"
	"zeni/internal/economy"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	cfg  config.APIConfig
	log  *slog.Logger
	econ *economy.Service
	mux  *chi.Mux
}

func New(cfg config.APIConfig, logger *slog.Logger, econ *economy.Service) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:  cfg,
		log:  logger,
		econ: econ,
		mux:  chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.adminAuth)

		r.Get("/balances/{user_id}", s.handleBalance)
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/loans/{user_id}", s.handleLoans)
		r.Get("/hedges/{user_id}", s.handleHedge)
		r.Get("/lottery/draw", s.handleDrawStatus)
		r.Get("/market/price", s.handleMarketPrice)

		r.Post("/admin/balances/{user_id}", s.handleSetBalance)
		r.Post("/admin/hedges/{user_id}/adjust", s.handleAdjustHedge)
		r.Post("/admin/jobs/accrue", s.handleRunAccrual)
		r.Post("/admin/jobs/rotate", s.handleRunRotation)
	})
}

func (s *Server) adminAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if bearerToken(r.Header.Get("Authorization")) != s.cfg.AdminToken {
			writeError(w, http.StatusUnauthorized, "missing or invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.GetBalance(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	out, err := s.econ.Leaderboard(r.Context(), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": out})
}

func (s *Server) handleLoans(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.Loans(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"loans": out})
}

func (s *Server) handleHedge(w http.ResponseWriter, r *http.Request) {
	contract, owed, err := s.econ.HedgeStatus(r.Context(), chi.URLParam(r, "user_id"), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"contract": contract, "owed": owed})
}

func (s *Server) handleDrawStatus(w http.ResponseWriter, r *http.Request) {
	out, err := s.econ.DrawStatus(r.Context(), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMarketPrice(w http.ResponseWriter, r *http.Request) {
	price, err := s.econ.MarketPrice(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"price": price})
}

func (s *Server) handleSetBalance(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Field string `json:"field"`
		Value int64  `json:"value"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	userID := chi.URLParam(r, "user_id")
	if err := s.econ.SetBalance(r.Context(), userID, in.Field, in.Value); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.econ.GetBalance(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdjustHedge(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Delta int64 `json:"delta"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	accumulated, err := s.econ.AdjustHedge(r.Context(), chi.URLParam(r, "user_id"), in.Delta)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accumulated": accumulated})
}

func (s *Server) handleRunAccrual(w http.ResponseWriter, r *http.Request) {
	count, err := s.econ.AccrueLoansDaily(r.Context(), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accrued": count})
}

func (s *Server) handleRunRotation(w http.ResponseWriter, r *http.Request) {
	if err := s.econ.RotateDraw(r.Context(), time.Now()); err != nil {
		writeDomainError(w, err)
		return
	}
	out, err := s.econ.DrawStatus(r.Context(), time.Now())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, economy.ErrValidation), errors.Is(err, economy.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, economy.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, economy.ErrConflict), errors.Is(err, economy.ErrTxConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
