package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
)

// AccessAdmin is satisfied by usecase.AccessUseCase.
type AccessAdmin interface {
	ForceGrant(ctx context.Context, actorID, userID int64) (bool, error)
	Grant(ctx context.Context, userID int64) (*model.AccessGrant, error)
}

// AuditReader is satisfied by the ledger audit repositories.
type AuditReader interface {
	ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.AuditEvent, error)
	ListByUser(ctx context.Context, tx repository.Tx, userID int64, limit int) ([]*model.AuditEvent, error)
}

type Server struct {
	access AccessAdmin
	audit  AuditReader
	auth   *Authenticator
	log    *zerolog.Logger
}

func NewServer(access AccessAdmin, audit AuditReader, auth *Authenticator, logger *zerolog.Logger) *Server {
	l := logger.With().Str("component", "admin_api").Logger()
	return &Server{access: access, audit: audit, auth: auth, log: &l}
}

// RegisterAPIV1 mounts the admin routes under /api/v1/admin.
func RegisterAPIV1(r chi.Router, s *Server) {
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(s.auth.Middleware)
		r.Post("/grants/{userID}", s.forceGrant)
		r.Get("/access/{userID}", s.getAccess)
		r.Get("/users/{userID}/audit", s.userAudit)
		r.Get("/payments/{paymentID}/audit", s.paymentAudit)
	})
}

// ----- DTOs -----

type Access struct {
	UserID    int64      `json:"user_id"`
	HasAccess bool       `json:"has_access"`
	Source    string     `json:"source,omitempty"`
	PaymentID string     `json:"payment_id,omitempty"`
	GrantedAt *time.Time `json:"granted_at,omitempty"`
}

type GrantResult struct {
	UserID  int64 `json:"user_id"`
	Created bool  `json:"created"`
}

type AuditEvent struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	UserID    int64     `json:"user_id"`
	PaymentID string    `json:"payment_id,omitempty"`
	Source    string    `json:"source,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type auditList struct {
	Items []AuditEvent `json:"items"`
}

func toAuditList(evs []*model.AuditEvent) auditList {
	out := auditList{Items: make([]AuditEvent, 0, len(evs))}
	for _, e := range evs {
		out.Items = append(out.Items, AuditEvent{
			ID:        e.ID,
			Kind:      e.Kind,
			UserID:    e.UserID,
			PaymentID: e.PaymentID,
			Source:    e.Source,
			From:      e.From,
			To:        e.To,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		})
	}
	return out
}

// ----- handlers -----

func (s *Server) forceGrant(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	actor, _ := ActorFromContext(r.Context())
	created, err := s.access.ForceGrant(r.Context(), actor, userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, GrantResult{UserID: userID, Created: created})
}

func (s *Server) getAccess(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	g, err := s.access.Grant(r.Context(), userID)
	if errors.Is(err, domain.ErrNotFound) {
		writeJSON(w, http.StatusOK, Access{UserID: userID})
		return
	}
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	at := g.GrantedAt
	writeJSON(w, http.StatusOK, Access{
		UserID:    userID,
		HasAccess: true,
		Source:    string(g.Source),
		PaymentID: g.PaymentID,
		GrantedAt: &at,
	})
}

func (s *Server) userAudit(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}
	evs, err := s.audit.ListByUser(r.Context(), repository.NoTX, userID, limit)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditList(evs))
}

func (s *Server) paymentAudit(w http.ResponseWriter, r *http.Request) {
	evs, err := s.audit.ListByPayment(r.Context(), repository.NoTX, chi.URLParam(r, "paymentID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if len(evs) == 0 {
		writeError(w, http.StatusNotFound, "payment not found")
		return
	}
	writeJSON(w, http.StatusOK, toAuditList(evs))
}

// ----- helpers -----

func userParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid user id")
		return 0, false
	}
	return id, true
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		s.log.Error().Err(err).Msg("admin api failure")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
