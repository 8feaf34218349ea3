package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/playconnect/apiserver/internal/mq"
	"github.com/playconnect/apiserver/internal/services"
	"github.com/playconnect/apiserver/internal/storage"
	"github.com/playconnect/apiserver/internal/store"
	"github.com/playconnect/apiserver/types"
)

const testJWTSecret = "test-secret"
const testTokenTTL = time.Hour

// fakeUserRepo is an in-memory stand-in for the SQL repository. It
// mirrors the store's contract: lowercased unique emails, COALESCE
// update semantics, and search results without email or hash.
type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]types.User)}
}

func (f *fakeUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicateEmail
		}
	}
	f.nextID++
	user.ID = f.nextID
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, id int, update types.ProfileUpdate) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	if update.Position != nil {
		user.Position = *update.Position
	}
	if update.Age != nil {
		user.Age = update.Age
	}
	if update.Height != nil {
		user.Height = update.Height
	}
	if update.Weight != nil {
		user.Weight = update.Weight
	}
	if update.DominantFoot != nil {
		user.DominantFoot = *update.DominantFoot
	}
	if update.Team != nil {
		user.Team = *update.Team
	}
	if update.Location != nil {
		user.Location = *update.Location
	}
	if update.Skills != nil {
		user.Skills = *update.Skills
	}
	if update.Bio != nil {
		user.Bio = *update.Bio
	}
	user.UpdatedAt = time.Now()
	f.users[id] = user
	return user, nil
}

func (f *fakeUserRepo) SetProfileImage(ctx context.Context, id int, key string) (types.User, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, "", store.ErrNotFound
	}
	previous := user.ProfileImage
	user.ProfileImage = key
	user.UpdatedAt = time.Now()
	f.users[id] = user
	return user, previous, nil
}

func (f *fakeUserRepo) Search(ctx context.Context, filter types.PlayerFilter) ([]types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var players []types.User
	for _, user := range f.users {
		if user.Role != types.RolePlayer {
			continue
		}
		if filter.Position != "" && user.Position != filter.Position {
			continue
		}
		if filter.MinAge != nil && (user.Age == nil || *user.Age < *filter.MinAge) {
			continue
		}
		if filter.MaxAge != nil && (user.Age == nil || *user.Age > *filter.MaxAge) {
			continue
		}
		if filter.Skill != "" && filter.MinRating != nil {
			rating := user.Skills.Rating(filter.Skill)
			if rating == nil || *rating < *filter.MinRating {
				continue
			}
		}
		user.Email = ""
		user.PasswordHash = ""
		players = append(players, user)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].ID < players[j].ID })
	if len(players) > 50 {
		players = players[:50]
	}
	return players, nil
}

func (f *fakeUserRepo) delete(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, id)
}

func (f *fakeUserRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.users)
}

// fakeBroker records published messages.
type fakeBroker struct {
	mu        sync.Mutex
	published []mq.Message
}

func (f *fakeBroker) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, mq.Message{Data: data, Attributes: attrs})
	return fmt.Sprintf("msg-%d", len(f.published)), nil
}

func (f *fakeBroker) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	return nil
}

func (f *fakeBroker) Close() error { return nil }

func (f *fakeBroker) eventTypes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, msg := range f.published {
		names = append(names, msg.Attributes["type"])
	}
	return names
}

// fakeObjectStorage keeps uploaded objects in memory.
type fakeObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: make(map[string][]byte)}
}

func (f *fakeObjectStorage) EnsureBucket(ctx context.Context) error { return nil }

func (f *fakeObjectStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeObjectStorage) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

func (f *fakeObjectStorage) Bucket() string { return "test-bucket" }

// testEnv wires the handlers onto a router the same way the server
// does, backed by the fakes above.
type testEnv struct {
	router  *chi.Mux
	repo    *fakeUserRepo
	broker  *fakeBroker
	objects *fakeObjectStorage
}

func newTestEnv(t *testing.T, withStorage bool) *testEnv {
	t.Helper()

	repo := newFakeUserRepo()
	broker := &fakeBroker{}

	var imageStorage *storage.Storage
	var objects *fakeObjectStorage
	if withStorage {
		objects = newFakeObjectStorage()
		imageStorage = storage.NewStorage(objects)
	}

	userService := services.NewUserService(repo)
	playerService := services.NewPlayerService(repo, imageStorage, mq.New(broker))
	authHandler := NewAuthHandler(userService, playerService, testJWTSecret, testTokenTTL)

	router := chi.NewRouter()
	router.Route("/api/auth", func(r chi.Router) {
		AuthRouter(r, authHandler)
	})
	router.Route("/api/players", func(r chi.Router) {
		PlayerRouter(r, playerService, authHandler.RequireAuth)
	})

	return &testEnv{
		router:  router,
		repo:    repo,
		broker:  broker,
		objects: objects,
	}
}

func (e *testEnv) doJSON(t *testing.T, method, path, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) register(t *testing.T, name, email, password, role string) (types.User, string) {
	t.Helper()

	rec := e.doJSON(t, http.MethodPost, "/api/auth/register", "", RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     role,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status %d: %s", rec.Code, rec.Body.String())
	}

	var parsed AuthResponse
	if err := json.NewDecoder(rec.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode register response: %v", err)
	}
	if parsed.Token == "" {
		t.Fatal("register response missing token")
	}
	return parsed.User, parsed.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var parsed map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &parsed); err != nil {
		t.Fatalf("decode response body %q: %v", rec.Body.String(), err)
	}
	return parsed
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
