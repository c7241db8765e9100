package service

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/templui/authapi/internal/db"
	"github.com/templui/authapi/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

type memStorage struct {
	mu        sync.Mutex
	files     map[string][]byte
	types     map[string]string
	saveErr   error
	deleteErr error
}

func newMemStorage() *memStorage {
	return &memStorage{files: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStorage) Save(_ context.Context, name, contentType string, r io.Reader) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.files[name] = data
	m.types[name] = contentType
	return nil
}

func (m *memStorage) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.files, name)
	return nil
}

func (m *memStorage) URL(name string) string {
	return "/static/profile_pics/" + name
}

func (m *memStorage) contentType(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.types[name]
}

func (m *memStorage) names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type fakeMailer struct {
	mu    sync.Mutex
	sent  bool
	err   error
	calls int
	to    string
	link  string
}

func (f *fakeMailer) SendResetLink(_ context.Context, to, link string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.to = to
	f.link = link
	return f.sent, f.err
}

type testEnv struct {
	svc     *AccountService
	users   repository.UserRepository
	tokens  *TokenService
	storage *memStorage
	mailer  *fakeMailer
	clock   *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Init("sqlite", filepath.Join(t.TempDir(), "test.db")+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))

	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }

	users := repository.NewUserRepository(database)
	tokens := NewTokenService("test-secret", "authapi-test", 30*time.Minute)
	tokens.now = now
	storage := newMemStorage()
	mailer := &fakeMailer{sent: true}

	svc := NewAccountService(users, NewBcryptHasher(bcrypt.MinCost), tokens, NewAvatarService(storage), mailer, "http://localhost:5173/", time.Hour)
	svc.now = now

	return &testEnv{svc: svc, users: users, tokens: tokens, storage: storage, mailer: mailer, clock: &clock}
}

func (e *testEnv) advance(d time.Duration) {
	*e.clock = e.clock.Add(d)
}

func avatar(name, content string) *AvatarUpload {
	return &AvatarUpload{Filename: name, Content: bytes.NewBufferString(content)}
}

func ptr[T any](v T) *T {
	return &v
}
