//go:build !integration

package apiv1_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
	apiv1 "github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/api/apiv1"
)

const testSecret = "0123456789abcdef-test"

type mockAccess struct {
	grants map[int64]*model.AccessGrant
	admins map[int64]bool
	actors []int64
}

func (m *mockAccess) ForceGrant(ctx context.Context, actorID, userID int64) (bool, error) {
	m.actors = append(m.actors, actorID)
	if !m.admins[actorID] {
		return false, domain.ErrForbidden
	}
	if _, ok := m.grants[userID]; ok {
		return false, nil
	}
	m.grants[userID] = &model.AccessGrant{UserID: userID, Source: model.GrantSourceAdmin, GrantedAt: time.Unix(100, 0).UTC()}
	return true, nil
}

func (m *mockAccess) Grant(ctx context.Context, userID int64) (*model.AccessGrant, error) {
	g, ok := m.grants[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return g, nil
}

type mockAudit struct {
	events []*model.AuditEvent
}

func (m *mockAudit) ListByPayment(ctx context.Context, tx repository.Tx, paymentID string) ([]*model.AuditEvent, error) {
	var out []*model.AuditEvent
	for _, e := range m.events {
		if e.PaymentID == paymentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockAudit) ListByUser(ctx context.Context, tx repository.Tx, userID int64, limit int) ([]*model.AuditEvent, error) {
	var out []*model.AuditEvent
	for _, e := range m.events {
		if e.UserID == userID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func newRouter(t *testing.T) (*chi.Mux, *mockAccess, *apiv1.Authenticator) {
	t.Helper()
	l := zerolog.New(io.Discard)
	auth, err := apiv1.NewAuthenticator(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("expected no error, but got: %v", err)
	}
	access := &mockAccess{grants: map[int64]*model.AccessGrant{}, admins: map[int64]bool{1: true}}
	audit := &mockAudit{events: []*model.AuditEvent{
		model.NewAuditEvent(model.AuditPaymentCreated, 42, "mp-1", time.Unix(10, 0)),
		model.NewAuditEvent(model.AuditAccessGranted, 42, "mp-1", time.Unix(20, 0)),
	}}
	r := chi.NewRouter()
	apiv1.RegisterAPIV1(r, apiv1.NewServer(access, audit, auth, &l))
	return r, access, auth
}

func do(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAdminAPI_Auth(t *testing.T) {
	r, _, auth := newRouter(t)

	t.Run("should reject requests without a token", func(t *testing.T) {
		if rec := do(t, r, http.MethodGet, "/api/v1/admin/access/42", ""); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("should reject tokens signed with another secret", func(t *testing.T) {
		other, _ := apiv1.NewAuthenticator("another-secret-0123456", time.Hour)
		tok, _ := other.Mint(1)
		if rec := do(t, r, http.MethodGet, "/api/v1/admin/access/42", tok); rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("should accept a minted token", func(t *testing.T) {
		tok, err := auth.Mint(1)
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if rec := do(t, r, http.MethodGet, "/api/v1/admin/access/42", tok); rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("should refuse a short secret", func(t *testing.T) {
		if _, err := apiv1.NewAuthenticator("short", time.Hour); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestAdminAPI_Grants(t *testing.T) {
	t.Run("should force-grant as the token subject", func(t *testing.T) {
		// --- Arrange ---
		r, access, auth := newRouter(t)
		tok, _ := auth.Mint(1)

		// --- Act ---
		first := do(t, r, http.MethodPost, "/api/v1/admin/grants/42", tok)
		second := do(t, r, http.MethodPost, "/api/v1/admin/grants/42", tok)

		// --- Assert ---
		if first.Code != http.StatusCreated || second.Code != http.StatusOK {
			t.Fatalf("expected 201 then 200, got %d then %d", first.Code, second.Code)
		}
		var res apiv1.GrantResult
		_ = json.Unmarshal(second.Body.Bytes(), &res)
		if res.UserID != 42 || res.Created {
			t.Errorf("unexpected result: %+v", res)
		}
		if len(access.actors) != 2 || access.actors[0] != 1 {
			t.Errorf("expected actor 1, got %v", access.actors)
		}
	})

	t.Run("should map a denied actor to 403", func(t *testing.T) {
		r, _, auth := newRouter(t)
		tok, _ := auth.Mint(99)

		if rec := do(t, r, http.MethodPost, "/api/v1/admin/grants/42", tok); rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("should validate the user id", func(t *testing.T) {
		r, _, auth := newRouter(t)
		tok, _ := auth.Mint(1)

		if rec := do(t, r, http.MethodPost, "/api/v1/admin/grants/abc", tok); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("should report access after a grant", func(t *testing.T) {
		r, _, auth := newRouter(t)
		tok, _ := auth.Mint(1)

		var before apiv1.Access
		_ = json.Unmarshal(do(t, r, http.MethodGet, "/api/v1/admin/access/42", tok).Body.Bytes(), &before)
		do(t, r, http.MethodPost, "/api/v1/admin/grants/42", tok)
		var after apiv1.Access
		_ = json.Unmarshal(do(t, r, http.MethodGet, "/api/v1/admin/access/42", tok).Body.Bytes(), &after)

		if before.HasAccess {
			t.Error("expected no access before the grant")
		}
		if !after.HasAccess || after.Source != "admin" || after.GrantedAt == nil {
			t.Errorf("unexpected access: %+v", after)
		}
	})
}

func TestAdminAPI_Audit(t *testing.T) {
	r, _, auth := newRouter(t)
	tok, _ := auth.Mint(1)

	t.Run("should list a payment trail in order", func(t *testing.T) {
		rec := do(t, r, http.MethodGet, "/api/v1/admin/payments/mp-1/audit", tok)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var body struct {
			Items []apiv1.AuditEvent `json:"items"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		if len(body.Items) != 2 || body.Items[0].Kind != model.AuditPaymentCreated {
			t.Errorf("unexpected trail: %+v", body.Items)
		}
	})

	t.Run("should 404 an unknown payment", func(t *testing.T) {
		if rec := do(t, r, http.MethodGet, "/api/v1/admin/payments/nope/audit", tok); rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("should bound the user audit limit", func(t *testing.T) {
		if rec := do(t, r, http.MethodGet, "/api/v1/admin/users/42/audit?limit=0", tok); rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		rec := do(t, r, http.MethodGet, "/api/v1/admin/users/42/audit?limit=1", tok)
		var body struct {
			Items []apiv1.AuditEvent `json:"items"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &body)
		if len(body.Items) != 1 {
			t.Errorf("expected one event, got %d", len(body.Items))
		}
	})
}
