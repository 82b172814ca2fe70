//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/db/memory"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/usecase"
)

func newPromptFixture(gen *MockPromptGenerator) (usecase.PromptUseCase, *memory.Store) {
	store := memory.New()
	catalog := staticCatalog{
		{Slug: "copywriting", Title: "Copy de vendas", Category: "marketing", Body: "Escreva uma copy..."},
		{Slug: "resumo", Title: "Resumo de artigo", Category: "estudos", Body: "Resuma o texto..."},
	}
	var uc usecase.PromptUseCase
	if gen == nil {
		uc = usecase.NewPromptUseCase(catalog, store.Grants(), nil, newTestLogger())
	} else {
		uc = usecase.NewPromptUseCase(catalog, store.Grants(), gen, newTestLogger())
	}
	return uc, store
}

func grantAccess(t *testing.T, store *memory.Store, userID int64) {
	t.Helper()
	if _, err := store.Grants().Grant(context.Background(), nil, &model.AccessGrant{UserID: userID, Source: model.GrantSourceAdmin, GrantedAt: t0}); err != nil {
		t.Fatalf("grant: %v", err)
	}
}

func TestPromptUseCase_Catalog(t *testing.T) {
	ctx := context.Background()

	t.Run("should gate the catalog behind access", func(t *testing.T) {
		uc, _ := newPromptFixture(nil)

		if _, err := uc.List(ctx, testUserID); !errors.Is(err, domain.ErrNoAccess) {
			t.Errorf("expected ErrNoAccess from List, got %v", err)
		}
		if _, err := uc.Get(ctx, testUserID, "resumo"); !errors.Is(err, domain.ErrNoAccess) {
			t.Errorf("expected ErrNoAccess from Get, got %v", err)
		}
	})

	t.Run("should serve prompts once access exists", func(t *testing.T) {
		uc, store := newPromptFixture(nil)
		grantAccess(t, store, testUserID)

		list, err := uc.List(ctx, testUserID)
		if err != nil || len(list) != 2 {
			t.Fatalf("expected two prompts, got %d (%v)", len(list), err)
		}
		p, err := uc.Get(ctx, testUserID, " Resumo ")
		if err != nil || p.Title != "Resumo de artigo" {
			t.Errorf("expected resumo prompt, got %+v (%v)", p, err)
		}
		if _, err := uc.Get(ctx, testUserID, "nope"); !errors.Is(err, domain.ErrPromptNotFound) {
			t.Errorf("expected ErrPromptNotFound, got %v", err)
		}
	})
}

func TestPromptUseCase_Generate(t *testing.T) {
	ctx := context.Background()

	t.Run("should report generation as disabled without a provider", func(t *testing.T) {
		uc, store := newPromptFixture(nil)
		grantAccess(t, store, testUserID)

		if uc.GenerationEnabled() {
			t.Error("expected generation to be disabled")
		}
		if _, err := uc.Generate(ctx, testUserID, "marketing"); !errors.Is(err, domain.ErrPromptsDisabled) {
			t.Errorf("expected ErrPromptsDisabled, got %v", err)
		}
	})

	t.Run("should validate the topic before calling the provider", func(t *testing.T) {
		gen := &MockPromptGenerator{}
		uc, store := newPromptFixture(gen)
		grantAccess(t, store, testUserID)

		if _, err := uc.Generate(ctx, testUserID, "   "); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
		long := strings.Repeat("á", usecase.MaxTopicRunes+1)
		if _, err := uc.Generate(ctx, testUserID, long); !errors.Is(err, domain.ErrTopicTooLong) {
			t.Errorf("expected ErrTopicTooLong, got %v", err)
		}
		if len(gen.Topics) != 0 {
			t.Errorf("expected no provider call, got %v", gen.Topics)
		}
	})

	t.Run("should generate for users with access only", func(t *testing.T) {
		gen := &MockPromptGenerator{}
		uc, store := newPromptFixture(gen)

		if _, err := uc.Generate(ctx, testUserID, "finanças"); !errors.Is(err, domain.ErrNoAccess) {
			t.Fatalf("expected ErrNoAccess, got %v", err)
		}
		grantAccess(t, store, testUserID)
		out, err := uc.Generate(ctx, testUserID, " finanças ")
		if err != nil {
			t.Fatalf("expected no error, but got: %v", err)
		}
		if !strings.Contains(out, "finanças") || len(gen.Topics) != 1 || gen.Topics[0] != "finanças" {
			t.Errorf("unexpected generation %q with topics %v", out, gen.Topics)
		}
	})
}
