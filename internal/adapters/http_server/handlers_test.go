package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel_listing/internal/app"
	"hotel_listing/internal/domain"
	"hotel_listing/internal/storage/memory"
)

type testServer struct {
	t     *testing.T
	h     http.Handler
	store *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	st := memory.New()
	engine := app.NewLifecycleEngine(st, nil)
	h := &Handlers{
		Q: app.NewQueryService(st, st, nil, 0, app.DefaultPaging),
		L: app.NewListingService(st, nil, engine),
		R: app.NewRoomService(st, st, nil),
	}
	verifier := stubVerifier{
		"merchant": {ID: 100, Role: domain.RoleMerchant},
		"other":    {ID: 200, Role: domain.RoleMerchant},
		"admin":    {ID: 1, Role: domain.RoleAdmin},
	}
	srv := New(verifier, Options{})
	srv.MountHandlers(h)
	return &testServer{t: t, h: srv.Mux(), store: st}
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func hotelBody(name string) map[string]any {
	return map[string]any{
		"nameZh": name, "nameEn": name, "address": "1 Lake Rd", "city": "Hangzhou",
		"starLevel": 4, "phone": "0571-000000", "description": "Lakeside rooms",
		"images": []map[string]any{{"url": "https://img/1.jpg", "sort": 0, "isCover": true}},
	}
}

func (s *testServer) createHotel(name string) domain.Listing {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/v1/merchant/hotels", "merchant", hotelBody(name))
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[domain.Listing](s.t, rec)
}

func (s *testServer) review(id int64, action, reason string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/v1/admin/reviews/action", "admin",
		map[string]any{"hotelId": id, "action": action, "reason": reason})
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestCreateHotel_RequiresAuthAndValidBody(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/v1/merchant/hotels", "", hotelBody("x")).Code)

	bad := hotelBody("x")
	bad["starLevel"] = 7
	rec := s.do(http.MethodPost, "/v1/merchant/hotels", "merchant", bad)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "starLevel", decode[problem](t, rec).Field)

	req := httptest.NewRequest(http.MethodPost, "/v1/merchant/hotels", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer merchant")
	raw := httptest.NewRecorder()
	s.h.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	l := s.createHotel("West Lake Inn")
	assert.Equal(t, domain.StatusDraft, l.Status)
	assert.Equal(t, int64(100), l.OwnerID)
}

func TestGetHotel_VisibilityAndETag(t *testing.T) {
	s := newTestServer(t)
	l := s.createHotel("West Lake Inn")
	path := "/v1/hotels/" + strconv.FormatInt(l.ID, 10)

	// drafts are hidden from the public and other merchants
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, path, "other", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, path, "merchant", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, path, "admin", nil).Code)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/merchant/hotels/"+strconv.FormatInt(l.ID, 10)+"/submit", "merchant", nil).Code)
	require.Equal(t, http.StatusOK, s.review(l.ID, "APPROVE", "").Code)

	rec := s.do(http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, domain.StatusApproved, decode[domain.Listing](t, rec).Status)

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("If-None-Match", etag)
	cached := httptest.NewRecorder()
	s.h.ServeHTTP(cached, req)
	assert.Equal(t, http.StatusNotModified, cached.Code)

	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, "/v1/hotels/abc", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/hotels/999", "", nil).Code)
}

func TestReviewAction_ErrorsAndRoles(t *testing.T) {
	s := newTestServer(t)
	l := s.createHotel("West Lake Inn")

	// approving a draft is rejected with the current status
	rec := s.review(l.ID, "APPROVE", "")
	require.Equal(t, http.StatusConflict, rec.Code)
	p := decode[problem](t, rec)
	assert.Equal(t, "DRAFT", p.CurrentStatus)
	assert.Equal(t, "APPROVE", p.Action)

	rec = s.review(l.ID, "SUBMIT", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.review(0, "APPROVE", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/admin/reviews/action", "merchant", map[string]any{"hotelId": l.ID, "action": "APPROVE"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	submit := "/v1/merchant/hotels/" + strconv.FormatInt(l.ID, 10) + "/submit"
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodPost, submit, "other", nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, submit, "merchant", nil).Code)

	rec = s.review(l.ID, "REJECT", "  ")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "reason", decode[problem](t, rec).Field)

	rec = s.review(l.ID, "REJECT", "missing photos")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusRejected, decode[domain.Listing](t, rec).Status)

	logs := s.do(http.MethodGet, "/v1/hotels/"+strconv.FormatInt(l.ID, 10)+"/logs", "merchant", nil)
	require.Equal(t, http.StatusOK, logs.Code)
	entries := decode[[]domain.AuditEntry](t, logs)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[0].Reason)
	assert.Equal(t, "missing photos", *entries[0].Reason)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/v1/hotels/"+strconv.FormatInt(l.ID, 10)+"/logs", "other", nil).Code)
}

func TestUpdateHotel_LockedWhilePending(t *testing.T) {
	s := newTestServer(t)
	l := s.createHotel("West Lake Inn")
	id := strconv.FormatInt(l.ID, 10)

	rec := s.do(http.MethodPut, "/v1/merchant/hotels/"+id, "merchant", map[string]any{"city": "Suzhou"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Suzhou", decode[domain.Listing](t, rec).City)

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/merchant/hotels/"+id+"/submit", "merchant", nil).Code)

	rec = s.do(http.MethodPut, "/v1/merchant/hotels/"+id, "merchant", map[string]any{"city": "Ningbo"})
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "PENDING", decode[problem](t, rec).CurrentStatus)

	assert.Equal(t, http.StatusConflict, s.do(http.MethodDelete, "/v1/merchant/hotels/"+id, "merchant", nil).Code)
}

func TestRoomsAndPriceRules(t *testing.T) {
	s := newTestServer(t)
	l := s.createHotel("West Lake Inn")

	room := func(name string, price float64) domain.RoomType {
		rec := s.do(http.MethodPost, "/v1/merchant/rooms", "merchant", map[string]any{
			"hotelId": l.ID, "name": name, "bedType": "KING", "maxGuests": 2, "basePrice": price, "stock": 3,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		return decode[domain.RoomType](t, rec)
	}
	deluxe := room("Deluxe", 480)
	std := room("Standard", 299)

	rec := s.do(http.MethodPost, "/v1/merchant/rooms", "other", map[string]any{
		"hotelId": l.ID, "name": "X", "bedType": "KING", "maxGuests": 2, "basePrice": 1,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	detail := decode[domain.Listing](t, s.do(http.MethodGet, "/v1/hotels/"+strconv.FormatInt(l.ID, 10), "merchant", nil))
	require.NotNil(t, detail.MinPrice)
	assert.Equal(t, 299.0, *detail.MinPrice)

	rooms := decode[[]domain.RoomType](t, s.do(http.MethodGet, "/v1/hotels/"+strconv.FormatInt(l.ID, 10)+"/rooms", "merchant", nil))
	require.Len(t, rooms, 2)
	assert.Equal(t, std.ID, rooms[0].ID)

	rec = s.do(http.MethodPost, "/v1/merchant/price-rules", "merchant", map[string]any{
		"roomTypeId": deluxe.ID, "type": "WEEKEND", "startDate": "2026-06-07", "endDate": "2026-06-06", "price": 520,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "endDate", decode[problem](t, rec).Field)

	rec = s.do(http.MethodPost, "/v1/merchant/price-rules", "merchant", map[string]any{
		"roomTypeId": deluxe.ID, "type": "WEEKEND", "startDate": "2026-06-06", "endDate": "2026-06-07", "price": 520,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rule := decode[domain.PriceRule](t, rec)

	rules := decode[[]domain.PriceRule](t, s.do(http.MethodGet, "/v1/rooms/"+strconv.FormatInt(deluxe.ID, 10)+"/price-rules", "merchant", nil))
	require.Len(t, rules, 1)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/v1/merchant/price-rules/"+strconv.FormatInt(rule.ID, 10), "merchant", nil).Code)
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/v1/merchant/rooms/"+strconv.FormatInt(std.ID, 10), "merchant", nil).Code)

	detail = decode[domain.Listing](t, s.do(http.MethodGet, "/v1/hotels/"+strconv.FormatInt(l.ID, 10), "merchant", nil))
	require.NotNil(t, detail.MinPrice)
	assert.Equal(t, 480.0, *detail.MinPrice)

	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/rooms/"+strconv.FormatInt(std.ID, 10), "", nil).Code)
}

func TestRoomRoutes_FollowListingVisibility(t *testing.T) {
	s := newTestServer(t)
	l := s.createHotel("West Lake Inn")
	rec := s.do(http.MethodPost, "/v1/merchant/rooms", "merchant", map[string]any{
		"hotelId": l.ID, "name": "Deluxe", "bedType": "KING", "maxGuests": 2, "basePrice": 480,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rt := decode[domain.RoomType](t, rec)
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/merchant/price-rules", "merchant", map[string]any{
		"roomTypeId": rt.ID, "type": "WEEKEND", "startDate": "2026-06-06", "endDate": "2026-06-07", "price": 520,
	}).Code)

	paths := []string{
		"/v1/hotels/" + strconv.FormatInt(l.ID, 10) + "/rooms",
		"/v1/rooms/" + strconv.FormatInt(rt.ID, 10),
		"/v1/rooms/" + strconv.FormatInt(rt.ID, 10) + "/price-rules",
	}
	expect := func(token string, code int) {
		t.Helper()
		for _, p := range paths {
			assert.Equal(t, code, s.do(http.MethodGet, p, token, nil).Code, "%s as %q", p, token)
		}
	}

	// draft: hidden from the public and other merchants
	expect("", http.StatusNotFound)
	expect("other", http.StatusNotFound)
	expect("merchant", http.StatusOK)
	expect("admin", http.StatusOK)

	id := strconv.FormatInt(l.ID, 10)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/merchant/hotels/"+id+"/submit", "merchant", nil).Code)
	require.Equal(t, http.StatusOK, s.review(l.ID, "APPROVE", "").Code)
	expect("", http.StatusOK)

	require.Equal(t, http.StatusOK, s.review(l.ID, "OFFLINE", "").Code)
	expect("", http.StatusNotFound)
	expect("merchant", http.StatusOK)
}

func TestSearchViews(t *testing.T) {
	s := newTestServer(t)
	approved := s.createHotel("Lakeside")
	s.createHotel("Draft Only")
	id := strconv.FormatInt(approved.ID, 10)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/merchant/hotels/"+id+"/submit", "merchant", nil).Code)
	require.Equal(t, http.StatusOK, s.review(approved.ID, "APPROVE", "").Code)

	// public search ignores the status filter and only ever returns approved listings
	page := decode[domain.ListingPage](t, s.do(http.MethodGet, "/v1/hotels?status=DRAFT&pageSize=5", "", nil))
	require.Len(t, page.Items, 1)
	assert.Equal(t, approved.ID, page.Items[0].ID)
	assert.Equal(t, 5, page.PageSize)
	assert.Equal(t, int64(1), page.TotalPages)

	mine := decode[domain.ListingPage](t, s.do(http.MethodGet, "/v1/merchant/hotels?status=DRAFT", "merchant", nil))
	assert.Equal(t, int64(1), mine.Total)

	assert.Equal(t, int64(0), decode[domain.ListingPage](t, s.do(http.MethodGet, "/v1/merchant/hotels", "other", nil)).Total)

	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/v1/admin/reviews", "merchant", nil).Code)
	queue := decode[domain.ListingPage](t, s.do(http.MethodGet, "/v1/admin/reviews?keyword=lake", "admin", nil))
	assert.Equal(t, int64(1), queue.Total)
}

func TestBanners(t *testing.T) {
	s := newTestServer(t)
	l := s.createHotel("Lakeside")
	s.store.AddBanner("https://img/b2.jpg", 2, true, l.ID)
	s.store.AddBanner("https://img/b1.jpg", 1, true, 0)
	s.store.AddBanner("https://img/off.jpg", 0, false, 0)

	banners := decode[[]domain.Banner](t, s.do(http.MethodGet, "/v1/banners", "", nil))
	require.Len(t, banners, 2)
	assert.Equal(t, "https://img/b1.jpg", banners[0].ImageURL)
	require.NotNil(t, banners[1].Listing)
	assert.Equal(t, l.ID, banners[1].Listing.ID)
}
