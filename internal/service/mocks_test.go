package service

import (
	"context"
	"fmt"
	"ocf/verifybot/db"
	"ocf/verifybot/internal/platform"
	"ocf/verifybot/internal/store"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) SendDirectMessage(ctx context.Context, userID, content string) error {
	args := m.Called(ctx, userID, content)
	return args.Error(0)
}

func (m *mockClient) Member(ctx context.Context, realmID, userID string) (*platform.Member, error) {
	args := m.Called(ctx, realmID, userID)
	mem, _ := args.Get(0).(*platform.Member)
	return mem, args.Error(1)
}

func (m *mockClient) AddRole(ctx context.Context, realmID, userID, roleID string) error {
	args := m.Called(ctx, realmID, userID, roleID)
	return args.Error(0)
}

func (m *mockClient) PostNotice(ctx context.Context, channelID string, n platform.Notice) error {
	args := m.Called(ctx, channelID, n)
	return args.Error(0)
}

type recordingSink struct {
	mu      sync.Mutex
	notices []LinkNotice
	err     error
}

func (s *recordingSink) Announce(_ context.Context, n LinkNotice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.notices = append(s.notices, n)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.notices)
}

type recordingNotifier struct {
	name string
	err  error

	mu      sync.Mutex
	notices []LinkNotice
}

func (n *recordingNotifier) Name() string { return n.name }

func (n *recordingNotifier) Notify(_ context.Context, l LinkNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.notices = append(n.notices, l)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.notices)
}

func newStoreForTest(t *testing.T) (*store.TokenStore, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := db.Open("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	return store.NewTokenStore(gdb, time.Second), gdb
}
