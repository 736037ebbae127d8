package di

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/querycache"
	"github.com/goliatone/go-query-cache/querykey"
	"github.com/goliatone/go-query-cache/repositorycache"
	"github.com/uptrace/bun"
)

// User represents a test model for integration tests
type User struct {
	ID       string `json:"id" bun:"id,pk" msgpack:"id"`
	Name     string `json:"name" bun:"name" msgpack:"name"`
	Email    string `json:"email" bun:"email" msgpack:"email"`
	CreateTs int64  `json:"create_ts" bun:"create_ts" msgpack:"create_ts"`
}

// mockUserRepository provides a fake repository implementation for testing
type mockUserRepository struct {
	mu        sync.RWMutex
	users     map[string]User
	callCount map[string]int // Track method calls to verify caching behavior
}

func newMockUserRepository(users ...User) *mockUserRepository {
	m := &mockUserRepository{
		users:     make(map[string]User),
		callCount: make(map[string]int),
	}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *mockUserRepository) trackCall(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount[method]++
}

func (m *mockUserRepository) getCallCount(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount[method]
}

func (m *mockUserRepository) all() []User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	users := make([]User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (m *mockUserRepository) put(users ...User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range users {
		m.users[u.ID] = u
	}
}

func (m *mockUserRepository) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (User, error) {
	m.trackCall("GetByID")
	m.mu.RLock()
	user, exists := m.users[id]
	m.mu.RUnlock()
	if !exists {
		return User{}, errors.New("user not found")
	}
	return user, nil
}

func (m *mockUserRepository) Get(ctx context.Context, criteria ...repository.SelectCriteria) (User, error) {
	m.trackCall("Get")
	users := m.all()
	if len(users) == 0 {
		return User{}, errors.New("user not found")
	}
	return users[0], nil
}

func (m *mockUserRepository) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]User, int, error) {
	m.trackCall("List")
	users := m.all()
	return users, len(users), nil
}

func (m *mockUserRepository) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	m.trackCall("Count")
	return len(m.all()), nil
}

func (m *mockUserRepository) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (User, error) {
	m.trackCall("GetByIdentifier")
	for _, u := range m.all() {
		if u.Email == identifier {
			return u, nil
		}
	}
	return User{}, errors.New("user not found")
}

func (m *mockUserRepository) Create(ctx context.Context, user User, criteria ...repository.InsertCriteria) (User, error) {
	m.trackCall("Create")
	m.put(user)
	return user, nil
}

func (m *mockUserRepository) Update(ctx context.Context, user User, criteria ...repository.UpdateCriteria) (User, error) {
	m.trackCall("Update")
	m.put(user)
	return user, nil
}

func (m *mockUserRepository) Delete(ctx context.Context, user User) error {
	m.trackCall("Delete")
	m.mu.Lock()
	delete(m.users, user.ID)
	m.mu.Unlock()
	return nil
}

func (m *mockUserRepository) CreateTx(ctx context.Context, tx bun.IDB, record User, criteria ...repository.InsertCriteria) (User, error) {
	return m.Create(ctx, record)
}
func (m *mockUserRepository) CreateMany(ctx context.Context, records []User, criteria ...repository.InsertCriteria) ([]User, error) {
	m.trackCall("CreateMany")
	m.put(records...)
	return records, nil
}
func (m *mockUserRepository) CreateManyTx(ctx context.Context, tx bun.IDB, records []User, criteria ...repository.InsertCriteria) ([]User, error) {
	return m.CreateMany(ctx, records)
}
func (m *mockUserRepository) GetOrCreate(ctx context.Context, record User) (User, error) {
	return m.Create(ctx, record)
}
func (m *mockUserRepository) GetOrCreateTx(ctx context.Context, tx bun.IDB, record User) (User, error) {
	return m.Create(ctx, record)
}
func (m *mockUserRepository) UpdateTx(ctx context.Context, tx bun.IDB, record User, criteria ...repository.UpdateCriteria) (User, error) {
	return m.Update(ctx, record)
}
func (m *mockUserRepository) UpdateMany(ctx context.Context, records []User, criteria ...repository.UpdateCriteria) ([]User, error) {
	m.trackCall("UpdateMany")
	m.put(records...)
	return records, nil
}
func (m *mockUserRepository) UpdateManyTx(ctx context.Context, tx bun.IDB, records []User, criteria ...repository.UpdateCriteria) ([]User, error) {
	return m.UpdateMany(ctx, records)
}
func (m *mockUserRepository) Upsert(ctx context.Context, record User, criteria ...repository.UpdateCriteria) (User, error) {
	return m.Update(ctx, record)
}
func (m *mockUserRepository) UpsertTx(ctx context.Context, tx bun.IDB, record User, criteria ...repository.UpdateCriteria) (User, error) {
	return m.Update(ctx, record)
}
func (m *mockUserRepository) UpsertMany(ctx context.Context, records []User, criteria ...repository.UpdateCriteria) ([]User, error) {
	return m.UpdateMany(ctx, records)
}
func (m *mockUserRepository) UpsertManyTx(ctx context.Context, tx bun.IDB, records []User, criteria ...repository.UpdateCriteria) ([]User, error) {
	return m.UpdateMany(ctx, records)
}
func (m *mockUserRepository) DeleteTx(ctx context.Context, tx bun.IDB, record User) error {
	return m.Delete(ctx, record)
}
func (m *mockUserRepository) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	m.trackCall("DeleteMany")
	m.mu.Lock()
	m.users = make(map[string]User)
	m.mu.Unlock()
	return nil
}
func (m *mockUserRepository) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return m.DeleteMany(ctx)
}
func (m *mockUserRepository) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	return m.DeleteMany(ctx)
}
func (m *mockUserRepository) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return m.DeleteMany(ctx)
}
func (m *mockUserRepository) ForceDelete(ctx context.Context, record User) error {
	return m.Delete(ctx, record)
}
func (m *mockUserRepository) ForceDeleteTx(ctx context.Context, tx bun.IDB, record User) error {
	return m.Delete(ctx, record)
}
func (m *mockUserRepository) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (User, error) {
	return m.Get(ctx)
}
func (m *mockUserRepository) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (User, error) {
	return m.GetByID(ctx, id)
}
func (m *mockUserRepository) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]User, int, error) {
	return m.List(ctx)
}
func (m *mockUserRepository) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return m.Count(ctx)
}
func (m *mockUserRepository) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (User, error) {
	return m.GetByIdentifier(ctx, identifier)
}
func (m *mockUserRepository) Raw(ctx context.Context, sql string, args ...any) ([]User, error) {
	return m.all(), nil
}
func (m *mockUserRepository) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]User, error) {
	return m.all(), nil
}
func (m *mockUserRepository) Handlers() repository.ModelHandlers[User] {
	return repository.ModelHandlers[User]{}
}

func testUser() User {
	return User{ID: "test-123", Name: "Test User", Email: "test@example.com", CreateTs: time.Now().Unix()}
}

func redisConfig(t *testing.T) cache.Config {
	t.Helper()
	mr := miniredis.RunT(t)

	config := cache.DefaultConfig()
	config.Backend = cache.BackendRedis
	config.Redis = &cache.RedisConfig{Addr: mr.Addr(), Namespace: "it:"}
	return config
}

func TestEndToEndCachedRepositoryFlow(t *testing.T) {
	backends := map[string]func(t *testing.T) cache.Config{
		"memory": func(*testing.T) cache.Config {
			return cache.Config{
				Capacity:             100,
				NumShards:            4,
				TTL:                  time.Minute,
				EvictionPercentage:   10,
				MissingRecordStorage: true,
			}
		},
		"redis": redisConfig,
	}

	for name, config := range backends {
		t.Run(name, func(t *testing.T) {
			container := newTestContainer(t, config(t))
			ctx := context.Background()

			user := testUser()
			mockRepo := newMockUserRepository(user)
			cachedRepo := NewCachedRepository[User](container, mockRepo)

			for i := 0; i < 2; i++ {
				got, err := cachedRepo.GetByID(ctx, user.ID)
				if err != nil {
					t.Fatalf("GetByID failed: %v", err)
				}
				if got != user {
					t.Errorf("GetByID returned %+v, expected %+v", got, user)
				}

				users, total, err := cachedRepo.List(ctx)
				if err != nil {
					t.Fatalf("List failed: %v", err)
				}
				if len(users) != 1 || total != 1 || users[0] != user {
					t.Errorf("List returned %v/%d", users, total)
				}

				count, err := cachedRepo.Count(ctx)
				if err != nil {
					t.Fatalf("Count failed: %v", err)
				}
				if count != 1 {
					t.Errorf("Count returned %d, expected 1", count)
				}
			}

			for _, method := range []string{"GetByID", "List", "Count"} {
				if n := mockRepo.getCallCount(method); n != 1 {
					t.Errorf("Expected base %s to be called once, got %d calls", method, n)
				}
			}

			renamed := user
			renamed.Name = "Renamed"
			if _, err := cachedRepo.Update(ctx, renamed); err != nil {
				t.Fatalf("Update failed: %v", err)
			}

			got, err := cachedRepo.GetByID(ctx, user.ID)
			if err != nil {
				t.Fatalf("GetByID after update failed: %v", err)
			}
			if got.Name != "Renamed" {
				t.Errorf("Expected updated name, got %q", got.Name)
			}
			if n := mockRepo.getCallCount("GetByID"); n != 2 {
				t.Errorf("Expected GetByID to be refetched after update, got %d calls", n)
			}
		})
	}
}

func TestObserveRepositoryReads(t *testing.T) {
	container := newTestContainer(t, cache.DefaultConfig())
	ctx := context.Background()

	user := testUser()
	repo := NewCachedRepository[User](container, newMockUserRepository(user))

	var (
		mu     sync.Mutex
		events []querycache.EventType
	)
	key := querykey.Key{"user", "GetByID", user.ID, []repository.SelectCriteria(nil)}
	stop, err := container.Queries().Observe(key, func(e querycache.Event) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e.Type)
		return nil
	})
	if err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	defer stop()

	if _, err := repo.GetByID(ctx, user.ID); err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if err := repo.Delete(ctx, user); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	container.Sync()

	mu.Lock()
	defer mu.Unlock()
	if len(events) == 0 {
		t.Fatal("Expected the observer to be notified")
	}
	if last := events[len(events)-1]; last != querycache.EventInvalidated {
		t.Errorf("Expected last event %s, got %s (all: %v)", querycache.EventInvalidated, last, events)
	}
}

func TestDifferentRepositoryTypes(t *testing.T) {
	type Product struct {
		ID   string
		Code string
	}

	container := newTestContainer(t, cache.DefaultConfig())
	ctx := context.Background()

	users := NewCachedRepository[User](container, newMockUserRepository(testUser()))
	products := NewCachedRepository[Product](container, nil, repositorycache.WithNamespace("product"))

	if users.Namespace() == products.Namespace() {
		t.Fatalf("Expected distinct namespaces, both are %q", users.Namespace())
	}

	if _, err := users.Count(ctx); err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	entries, err := container.Queries().FindAll(querykey.Key{"product"})
	if err != nil {
		t.Fatalf("FindAll failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no product entries, got %d", len(entries))
	}
}

func TestConcurrentAccess(t *testing.T) {
	container := newTestContainer(t, cache.DefaultConfig())
	ctx := context.Background()

	users := make([]User, 10)
	for i := range users {
		users[i] = User{ID: string(rune('a' + i)), Name: "user"}
	}
	mockRepo := newMockUserRepository(users...)
	repo := NewCachedRepository[User](container, mockRepo)

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for g := 0; g < 20; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				want := users[(g+i)%len(users)]
				got, err := repo.GetByID(ctx, want.ID)
				if err != nil {
					errs <- err
					return
				}
				if got != want {
					errs <- errors.New("unexpected user " + got.ID)
					return
				}
			}
		}(g)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
	if n := container.Queries().Len(); n != len(users) {
		t.Errorf("Expected %d entries, got %d", len(users), n)
	}
}

func BenchmarkCachedVsBaseRepository(b *testing.B) {
	container, err := NewContainerWithDefaults()
	if err != nil {
		b.Fatalf("NewContainerWithDefaults() failed: %v", err)
	}
	defer container.Close()

	ctx := context.Background()
	user := testUser()
	base := newMockUserRepository(user)
	cached := NewCachedRepository[User](container, base)

	b.Run("base", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = base.GetByID(ctx, user.ID)
		}
	})

	b.Run("cached", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			_, _ = cached.GetByID(ctx, user.ID)
		}
	})
}
