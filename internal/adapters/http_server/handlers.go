// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"hotel_listing/internal/app"
	"hotel_listing/internal/domain"
)

type Handlers struct {
	Q *app.QueryService
	L *app.ListingService
	R *app.RoomService
}

type reviewActionRequest struct {
	ListingID int64  `json:"hotelId"`
	Action    string `json:"action"`
	Reason    string `json:"reason"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	// public catalogue
	s.mux.Group(func(r chi.Router) {
		r.Use(OptionalAuth(s.verifier))
		r.Get("/v1/hotels", h.searchHotels)
		r.Get("/v1/hotels/{id}", h.getHotel)
		r.Get("/v1/hotels/{id}/rooms", h.listRooms)
		r.Get("/v1/rooms/{id}", h.getRoom)
		r.Get("/v1/rooms/{id}/price-rules", h.listPriceRules)
		r.Get("/v1/banners", h.listBanners)
	})

	// authenticated
	s.mux.Group(func(r chi.Router) {
		r.Use(Authenticate(s.verifier))
		r.Get("/v1/hotels/{id}/logs", h.listAuditLog)

		r.Route("/v1/merchant", func(r chi.Router) {
			r.Get("/hotels", h.myHotels)
			r.Post("/hotels", h.createHotel)
			r.Put("/hotels/{id}", h.updateHotel)
			r.Delete("/hotels/{id}", h.deleteHotel)
			r.Post("/hotels/{id}/submit", h.submitHotel)

			r.Post("/rooms", h.createRoom)
			r.Put("/rooms/{id}", h.updateRoom)
			r.Delete("/rooms/{id}", h.deleteRoom)

			r.Post("/price-rules", h.createPriceRule)
			r.Put("/price-rules/{id}", h.updatePriceRule)
			r.Delete("/price-rules/{id}", h.deletePriceRule)
		})

		r.Route("/v1/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/reviews", h.reviewQueue)
			r.Post("/reviews/action", h.reviewAction)
		})
	})
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached answers a GET with an ETag, short-circuiting to 304 when the client already has it.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("route", routePattern(r)).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		badRequest(w, "malformed JSON body: %v", err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeProblem(w, http.StatusBadRequest, "Invalid ID", "id must be a positive number")
		return 0, false
	}
	return id, true
}

func caller(r *http.Request) domain.Identity {
	id, _ := domain.IdentityFrom(r.Context())
	return id
}

func searchParams(r *http.Request) app.SearchParams {
	q := r.URL.Query()
	return app.SearchParams{
		Keyword:   q.Get("keyword"),
		City:      q.Get("city"),
		StarLevel: q.Get("starLevel"),
		MinPrice:  q.Get("minPrice"),
		MaxPrice:  q.Get("maxPrice"),
		Status:    q.Get("status"),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
		Page:      q.Get("page"),
		PageSize:  q.Get("pageSize"),
	}
}

/********** public **********/

func (h *Handlers) searchHotels(w http.ResponseWriter, r *http.Request) {
	page, err := h.Q.SearchListings(r.Context(), domain.PublicSearch(), nil, searchParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) getHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, err := h.Q.GetListing(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !visible(r, l) {
		writeError(w, r, &domain.NotFoundError{Entity: "listing", ID: id})
		return
	}
	writeCached(w, r, l)
}

// visible reports whether the caller may read l.
// Unpublished listings are only visible to their owner and to admins.
func visible(r *http.Request, l domain.Listing) bool {
	if l.Status == domain.StatusApproved {
		return true
	}
	who, authed := domain.IdentityFrom(r.Context())
	return authed && (who.IsAdmin() || who.ID == l.OwnerID)
}

// requireVisible writes hidden (a 404) when the caller may not read the listing.
func (h *Handlers) requireVisible(w http.ResponseWriter, r *http.Request, listingID int64, hidden error) bool {
	l, err := h.Q.GetListing(r.Context(), listingID)
	if err != nil {
		writeError(w, r, err)
		return false
	}
	if !visible(r, l) {
		writeError(w, r, hidden)
		return false
	}
	return true
}

func (h *Handlers) listRooms(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if !h.requireVisible(w, r, id, &domain.NotFoundError{Entity: "listing", ID: id}) {
		return
	}
	rooms, err := h.R.ListRoomTypes(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, rooms)
}

func (h *Handlers) getRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rt, err := h.R.GetRoomType(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !h.requireVisible(w, r, rt.ListingID, &domain.NotFoundError{Entity: "room type", ID: id}) {
		return
	}
	writeCached(w, r, rt)
}

func (h *Handlers) listPriceRules(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rt, err := h.R.GetRoomType(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !h.requireVisible(w, r, rt.ListingID, &domain.NotFoundError{Entity: "room type", ID: id}) {
		return
	}
	rules, err := h.R.ListPriceRules(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, rules)
}

func (h *Handlers) listBanners(w http.ResponseWriter, r *http.Request) {
	banners, err := h.Q.ListBanners(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, banners)
}

/********** merchant **********/

func (h *Handlers) myHotels(w http.ResponseWriter, r *http.Request) {
	who := caller(r)
	page, err := h.Q.SearchListings(r.Context(), domain.OwnerListings(who.ID), &who, searchParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) createHotel(w http.ResponseWriter, r *http.Request) {
	var in app.ListingInput
	if !decodeBody(w, r, &in) {
		return
	}
	l, err := h.L.CreateListing(r.Context(), caller(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (h *Handlers) updateHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch app.ListingPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	l, err := h.L.UpdateListing(r.Context(), id, caller(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) deleteHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.L.DeleteListing(r.Context(), id, caller(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) submitHotel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, err := h.L.Submit(r.Context(), id, caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (h *Handlers) listAuditLog(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	entries, err := h.Q.ListAuditLog(r.Context(), id, caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handlers) createRoom(w http.ResponseWriter, r *http.Request) {
	var in app.RoomTypeInput
	if !decodeBody(w, r, &in) {
		return
	}
	rt, err := h.R.CreateRoomType(r.Context(), caller(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rt)
}

func (h *Handlers) updateRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch app.RoomTypePatch
	if !decodeBody(w, r, &patch) {
		return
	}
	rt, err := h.R.UpdateRoomType(r.Context(), id, caller(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

func (h *Handlers) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.R.DeleteRoomType(r.Context(), id, caller(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) createPriceRule(w http.ResponseWriter, r *http.Request) {
	var in app.PriceRuleInput
	if !decodeBody(w, r, &in) {
		return
	}
	pr, err := h.R.CreatePriceRule(r.Context(), caller(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pr)
}

func (h *Handlers) updatePriceRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var patch app.PriceRulePatch
	if !decodeBody(w, r, &patch) {
		return
	}
	pr, err := h.R.UpdatePriceRule(r.Context(), id, caller(r), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pr)
}

func (h *Handlers) deletePriceRule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.R.DeletePriceRule(r.Context(), id, caller(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

/********** admin **********/

func (h *Handlers) reviewQueue(w http.ResponseWriter, r *http.Request) {
	who := caller(r)
	page, err := h.Q.SearchListings(r.Context(), domain.ReviewQueue(), &who, searchParams(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) reviewAction(w http.ResponseWriter, r *http.Request) {
	var req reviewActionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ListingID <= 0 {
		writeError(w, r, &domain.ValidationError{Field: "hotelId", Reason: "is required"})
		return
	}
	l, err := h.L.Review(r.Context(), req.ListingID, req.Action, caller(r), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}
