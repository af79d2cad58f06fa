//go:build integration || !unit

package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel_listing/internal/adapters/auth"
	server "hotel_listing/internal/adapters/http_server"
	"hotel_listing/internal/adapters/observability"
	redisad "hotel_listing/internal/adapters/redis"
	"hotel_listing/internal/app"
	"hotel_listing/internal/domain"
	"hotel_listing/internal/storage/memory"
)

const secret = "e2e-secret"

// ---------- wiring: same graph as cmd/api, with memory storage and miniredis ----------
type stack struct {
	t      *testing.T
	srv    *httptest.Server
	redis  *miniredis.Miniredis
	signer *auth.Verifier
}

func newStack(t *testing.T) *stack {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redisad.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = cache.Close() })

	st := memory.New()
	engine := app.NewLifecycleEngine(st, cache)
	h := &server.Handlers{
		Q: app.NewQueryService(st, st, cache, time.Minute, app.DefaultPaging),
		L: app.NewListingService(st, cache, engine),
		R: app.NewRoomService(st, st, cache),
	}
	v := auth.NewVerifier(secret, "hotel-e2e")
	s := server.New(v, server.Options{})
	s.Mount("/metrics", observability.MetricsHandler(observability.InitRegistry()))
	s.MountHandlers(h)

	ts := httptest.NewServer(s.Mux())
	t.Cleanup(ts.Close)
	return &stack{t: t, srv: ts, redis: mr, signer: v}
}

func (s *stack) token(id int64, role domain.Role) string {
	s.t.Helper()
	tok, err := s.signer.Sign(domain.Identity{ID: id, Role: role}, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *stack) call(method, path, token string, body any, out any) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(s.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// ---------- tests ----------

func TestE2E_RejectEditResubmit(t *testing.T) {
	s := newStack(t)
	merchant := s.token(100, domain.RoleMerchant)
	admin := s.token(1, domain.RoleAdmin)

	var l domain.Listing
	require.Equal(t, http.StatusCreated, s.call(http.MethodPost, "/v1/merchant/hotels", merchant, map[string]any{
		"nameZh": "西湖酒店", "nameEn": "West Lake Hotel", "address": "1 Lake Rd", "city": "Hangzhou",
		"starLevel": 4, "phone": "0571-000000", "description": "Faces the lake",
		"images":      []map[string]any{{"url": "https://img/cover.jpg", "isCover": true}},
		"nearbySpots": []map[string]any{{"type": "SCENIC", "name": "Broken Bridge", "distance": "300m"}},
	}, &l))
	hotel := fmt.Sprintf("/v1/merchant/hotels/%d", l.ID)

	require.Equal(t, http.StatusOK, s.call(http.MethodPost, hotel+"/submit", merchant, nil, &l))
	assert.Equal(t, domain.StatusPending, l.Status)

	// pending listings show up in the review queue
	var queue domain.ListingPage
	require.Equal(t, http.StatusOK, s.call(http.MethodGet, "/v1/admin/reviews?status=PENDING", admin, nil, &queue))
	assert.Equal(t, int64(1), queue.Total)

	const reason = "photos too low resolution"
	require.Equal(t, http.StatusOK, s.call(http.MethodPost, "/v1/admin/reviews/action", admin,
		map[string]any{"hotelId": l.ID, "action": "REJECT", "reason": reason}, &l))
	assert.Equal(t, domain.StatusRejected, l.Status)

	var logs []domain.AuditEntry
	require.Equal(t, http.StatusOK, s.call(http.MethodGet, fmt.Sprintf("/v1/hotels/%d/logs", l.ID), merchant, nil, &logs))
	require.Len(t, logs, 2)
	assert.Equal(t, domain.StatusRejected, logs[0].ToStatus)
	require.NotNil(t, logs[0].Reason)
	assert.Equal(t, reason, *logs[0].Reason)

	// rejected listings are editable again
	require.Equal(t, http.StatusOK, s.call(http.MethodPut, hotel, merchant, map[string]any{
		"images": []map[string]any{{"url": "https://img/cover-hd.jpg", "isCover": true}},
	}, &l))
	require.Len(t, l.Images, 1)
	assert.Equal(t, "https://img/cover-hd.jpg", l.Images[0].URL)
	assert.Len(t, l.NearbySpots, 1, "untouched collections survive a partial update")

	require.Equal(t, http.StatusOK, s.call(http.MethodPost, hotel+"/submit", merchant, nil, &l))
	require.Equal(t, http.StatusOK, s.call(http.MethodPost, "/v1/admin/reviews/action", admin,
		map[string]any{"hotelId": l.ID, "action": "APPROVE"}, &l))
	assert.Equal(t, domain.StatusApproved, l.Status)

	var page domain.ListingPage
	require.Equal(t, http.StatusOK, s.call(http.MethodGet, "/v1/hotels?keyword=west+lake", "", nil, &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, l.ID, page.Items[0].ID)
}

func TestE2E_CachedDetailFollowsLifecycle(t *testing.T) {
	s := newStack(t)
	merchant := s.token(100, domain.RoleMerchant)
	admin := s.token(1, domain.RoleAdmin)

	var l domain.Listing
	require.Equal(t, http.StatusCreated, s.call(http.MethodPost, "/v1/merchant/hotels", merchant, map[string]any{
		"nameZh": "湖畔", "nameEn": "Lakeside", "address": "2 Lake Rd", "city": "Hangzhou", "starLevel": 3,
		"phone": "0571-111111", "description": "Quiet rooms",
	}, &l))
	require.Equal(t, http.StatusCreated, s.call(http.MethodPost, "/v1/merchant/rooms", merchant, map[string]any{
		"hotelId": l.ID, "name": "Std", "bedType": "TWIN", "maxGuests": 2, "basePrice": 299,
	}, nil))
	require.Equal(t, http.StatusOK, s.call(http.MethodPost, fmt.Sprintf("/v1/merchant/hotels/%d/submit", l.ID), merchant, nil, nil))
	require.Equal(t, http.StatusOK, s.call(http.MethodPost, "/v1/admin/reviews/action", admin,
		map[string]any{"hotelId": l.ID, "action": "APPROVE"}, nil))

	detail := fmt.Sprintf("/v1/hotels/%d", l.ID)
	var got domain.Listing
	require.Equal(t, http.StatusOK, s.call(http.MethodGet, detail, "", nil, &got))
	require.NotNil(t, got.MinPrice)
	assert.Equal(t, 299.0, *got.MinPrice)
	assert.True(t, s.redis.Exists(fmt.Sprintf("listing:%d", l.ID)), "detail is cached after a read")

	// a room change drops the cached detail
	var rt domain.RoomType
	require.Equal(t, http.StatusCreated, s.call(http.MethodPost, "/v1/merchant/rooms", merchant, map[string]any{
		"hotelId": l.ID, "name": "Budget", "bedType": "SINGLE", "maxGuests": 1, "basePrice": 199,
	}, &rt))
	assert.False(t, s.redis.Exists(fmt.Sprintf("listing:%d", l.ID)))
	require.Equal(t, http.StatusOK, s.call(http.MethodGet, detail, "", nil, &got))
	assert.Equal(t, 199.0, *got.MinPrice)

	// taking it offline hides it from the public right away
	require.Equal(t, http.StatusOK, s.call(http.MethodPost, "/v1/admin/reviews/action", admin,
		map[string]any{"hotelId": l.ID, "action": "OFFLINE"}, nil))
	assert.Equal(t, http.StatusNotFound, s.call(http.MethodGet, detail, "", nil, nil))

	var page domain.ListingPage
	require.Equal(t, http.StatusOK, s.call(http.MethodGet, "/v1/hotels", "", nil, &page))
	assert.Zero(t, page.Total)

	// and straight back online without another review
	require.Equal(t, http.StatusOK, s.call(http.MethodPost, "/v1/admin/reviews/action", admin,
		map[string]any{"hotelId": l.ID, "action": "ONLINE"}, &got))
	assert.Equal(t, domain.StatusApproved, got.Status)
}

func TestE2E_AuthAndMetrics(t *testing.T) {
	s := newStack(t)

	assert.Equal(t, http.StatusUnauthorized, s.call(http.MethodGet, "/v1/merchant/hotels", "", nil, nil))

	expired, err := s.signer.Sign(domain.Identity{ID: 100, Role: domain.RoleMerchant}, -time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.call(http.MethodGet, "/v1/merchant/hotels", expired, nil, nil))

	forged, err := auth.NewVerifier("other-secret", "hotel-e2e").Sign(domain.Identity{ID: 1, Role: domain.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, s.call(http.MethodGet, "/v1/admin/reviews", forged, nil, nil))

	assert.Equal(t, http.StatusForbidden, s.call(http.MethodGet, "/v1/admin/reviews", s.token(100, domain.RoleMerchant), nil, nil))

	resp, err := http.Get(s.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(buf.String(), "hotel_http_requests_total"))
}
