//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/model"
	"github.com/PrompForgeAI2/bot-telegram-prompts/internal/domain/ports/repository"
	red "github.com/PrompForgeAI2/bot-telegram-prompts/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

type mockInnerAccessRepo struct {
	GrantFunc      func(ctx context.Context, tx repository.Tx, g *model.AccessGrant) (bool, error)
	HasAccessFunc  func(ctx context.Context, tx repository.Tx, userID int64) (bool, error)
	FindByUserFunc func(ctx context.Context, tx repository.Tx, userID int64) (*model.AccessGrant, error)
	hasAccessCalls int
}

func (m *mockInnerAccessRepo) Grant(ctx context.Context, tx repository.Tx, g *model.AccessGrant) (bool, error) {
	return m.GrantFunc(ctx, tx, g)
}
func (m *mockInnerAccessRepo) HasAccess(ctx context.Context, tx repository.Tx, userID int64) (bool, error) {
	m.hasAccessCalls++
	return m.HasAccessFunc(ctx, tx, userID)
}
func (m *mockInnerAccessRepo) FindByUser(ctx context.Context, tx repository.Tx, userID int64) (*model.AccessGrant, error) {
	return m.FindByUserFunc(ctx, tx, userID)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return m.SetFunc(ctx, key, value, expiration)
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	return m.DelFunc(ctx, keys...)
}
func (m *mockRedisClient) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	return m.IncrFunc(ctx, key)
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return m.ExpireFunc(ctx, key, expiration)
}
func (m *mockRedisClient) Close() error {
	return m.CloseFunc()
}
