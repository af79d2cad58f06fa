package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"hotel_listing/internal/app"
	"hotel_listing/internal/domain"
	"hotel_listing/internal/storage/memory"
)

// ---- fixtures ----

var (
	merchant = domain.Identity{ID: 100, Role: domain.RoleMerchant}
	stranger = domain.Identity{ID: 200, Role: domain.RoleMerchant}
	admin    = domain.Identity{ID: 1, Role: domain.RoleAdmin}
)

type env struct {
	store    *memory.Store
	cache    *fakeCache
	engine   *app.LifecycleEngine
	listings *app.ListingService
	rooms    *app.RoomService
	queries  *app.QueryService
}

func newEnv() *env {
	st := memory.New()
	c := &fakeCache{}
	e := app.NewLifecycleEngine(st, c)
	return &env{
		store:    st,
		cache:    c,
		engine:   e,
		listings: app.NewListingService(st, c, e),
		rooms:    app.NewRoomService(st, st, c),
		queries:  app.NewQueryService(st, st, c, 0, app.DefaultPaging),
	}
}

func validListing(name string) app.ListingInput {
	return app.ListingInput{
		NameZh:      name,
		NameEn:      name,
		Address:     "1 Lake Rd",
		City:        "Hangzhou",
		StarLevel:   4,
		Phone:       "0571-000000",
		Description: "Lakeside rooms a short walk from the ferry pier.",
		Images:      []app.ImageInput{{URL: "https://img/1.jpg", Sort: 0, IsCover: true}},
	}
}

// createIn creates a listing owned by merchant and walks it to status.
func (e *env) createIn(t *testing.T, status domain.Status) domain.Listing {
	t.Helper()
	ctx := context.Background()
	l, err := e.listings.CreateListing(ctx, merchant, validListing("West Lake Inn"))
	require.NoError(t, err)

	steps := map[domain.Status][]struct {
		a     domain.Action
		actor domain.Identity
	}{
		domain.StatusDraft:    nil,
		domain.StatusPending:  {{domain.ActionSubmit, merchant}},
		domain.StatusApproved: {{domain.ActionSubmit, merchant}, {domain.ActionApprove, admin}},
		domain.StatusRejected: {{domain.ActionSubmit, merchant}, {domain.ActionReject, admin}},
		domain.StatusOffline:  {{domain.ActionSubmit, merchant}, {domain.ActionApprove, admin}, {domain.ActionTakeOffline, admin}},
	}
	for _, s := range steps[status] {
		l, err = e.engine.Execute(ctx, l.ID, s.a, s.actor, "setup")
		require.NoError(t, err)
	}
	require.Equal(t, status, l.Status)
	return l
}

func (e *env) statusOf(t *testing.T, id int64) domain.Status {
	t.Helper()
	l, err := e.store.GetListing(context.Background(), id)
	require.NoError(t, err)
	return l.Status
}

// ---- fakes ----

// fakeCache stores JSON so cached values never alias caller memory.
type fakeCache struct {
	store map[string][]byte
	ttls  map[string]int
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string][]byte{}
		c.ttls = map[string]int{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	c.ttls[key] = ttlSec
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

// downCache fails every call, like redis being unreachable.
type downCache struct{}

func (downCache) Get(context.Context, string, any) (bool, error) { return false, errors.New("connection refused") }
func (downCache) Set(context.Context, string, any, int) error { return errors.New("connection refused") }
func (downCache) Del(context.Context, string) error { return errors.New("connection refused") }

func ptr[T any](v T) *T { return &v }
