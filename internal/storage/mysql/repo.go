package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"hotel_listing/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}
func f64Ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}
func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type scanner interface {
	Scan(dest ...any) error
}

// Repo implements domain.ListingRepository and domain.RoomRepository on MySQL.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// lockStatus reads and row-locks the listing's status inside tx.
func lockStatus(ctx context.Context, tx *sql.Tx, id int64) (domain.Status, error) {
	var st string
	if err := tx.QueryRowContext(ctx, lockStatusSQL, id).Scan(&st); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", &domain.NotFoundError{Entity: "listing", ID: id}
		}
		return "", err
	}
	return domain.Status(st), nil
}

// -----------------------------------------------------------------------------
// LISTINGS: writes
// -----------------------------------------------------------------------------

func (r *Repo) CreateListing(ctx context.Context, l domain.Listing) (int64, error) {
	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, insertListingSQL,
			l.OwnerID, l.NameZh, l.NameEn, l.Address, l.City, l.StarLevel, l.Phone, l.Description, string(l.Status))
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		if err := insertImages(ctx, tx, id, l.Images); err != nil {
			return err
		}
		if err := insertSpots(ctx, tx, id, l.NearbySpots); err != nil {
			return err
		}
		return insertPromotions(ctx, tx, id, l.Promotions)
	})
	return id, err
}

func (r *Repo) UpdateListing(ctx context.Context, l domain.Listing, opts domain.UpdateOptions) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		st, err := lockStatus(ctx, tx, l.ID)
		if err != nil {
			return err
		}
		if len(opts.Expect) > 0 && !slices.Contains(opts.Expect, st) {
			return &domain.StatusConflictError{Current: st}
		}
		if _, err := tx.ExecContext(ctx, updateListingSQL,
			l.NameZh, l.NameEn, l.Address, l.City, l.StarLevel, l.Phone, l.Description, l.ID); err != nil {
			return err
		}
		if opts.ReplaceImages {
			if _, err := tx.ExecContext(ctx, deleteImagesSQL, l.ID); err != nil {
				return err
			}
			if err := insertImages(ctx, tx, l.ID, l.Images); err != nil {
				return err
			}
		}
		if opts.ReplaceSpots {
			if _, err := tx.ExecContext(ctx, deleteSpotsSQL, l.ID); err != nil {
				return err
			}
			if err := insertSpots(ctx, tx, l.ID, l.NearbySpots); err != nil {
				return err
			}
		}
		if opts.ReplacePromotions {
			if _, err := tx.ExecContext(ctx, deletePromotionsSQL, l.ID); err != nil {
				return err
			}
			if err := insertPromotions(ctx, tx, l.ID, l.Promotions); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repo) ApplyTransition(ctx context.Context, id int64, from, to domain.Status, entry domain.AuditEntry) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, transitionSQL, string(to), id, string(from))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var cur string
			if err := tx.QueryRowContext(ctx, selectStatusSQL, id).Scan(&cur); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return &domain.NotFoundError{Entity: "listing", ID: id}
				}
				return err
			}
			return &domain.StatusConflictError{Current: domain.Status(cur)}
		}
		_, err = tx.ExecContext(ctx, insertReviewLogSQL,
			id, entry.ReviewerID, string(entry.FromStatus), string(entry.ToStatus), valStr(entry.Reason), entry.CreatedAt)
		return err
	})
}

func (r *Repo) DeleteListing(ctx context.Context, id int64, from domain.Status) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		st, err := lockStatus(ctx, tx, id)
		if err != nil {
			return err
		}
		if st != from {
			return &domain.StatusConflictError{Current: st}
		}
		for _, q := range deleteListingChildrenSQL {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return err
			}
		}
		_, err = tx.ExecContext(ctx, deleteListingSQL, id)
		return err
	})
}

// multi-row inserts for child collections

func insertImages(ctx context.Context, tx *sql.Tx, listingID int64, imgs []domain.Image) error {
	if len(imgs) == 0 {
		return nil
	}
	values := make([]string, 0, len(imgs))
	args := make([]any, 0, len(imgs)*4)
	for _, img := range imgs {
		values = append(values, "(?,?,?,?)")
		args = append(args, listingID, img.URL, img.Sort, img.IsCover)
	}
	_, err := tx.ExecContext(ctx, insertImagesPrefix+strings.Join(values, ","), args...)
	return err
}

func insertSpots(ctx context.Context, tx *sql.Tx, listingID int64, spots []domain.NearbySpot) error {
	if len(spots) == 0 {
		return nil
	}
	values := make([]string, 0, len(spots))
	args := make([]any, 0, len(spots)*4)
	for _, s := range spots {
		values = append(values, "(?,?,?,?)")
		args = append(args, listingID, string(s.Type), s.Name, s.Distance)
	}
	_, err := tx.ExecContext(ctx, insertSpotsPrefix+strings.Join(values, ","), args...)
	return err
}

func insertPromotions(ctx context.Context, tx *sql.Tx, listingID int64, ps []domain.Promotion) error {
	if len(ps) == 0 {
		return nil
	}
	values := make([]string, 0, len(ps))
	args := make([]any, 0, len(ps)*7)
	for _, p := range ps {
		values = append(values, "(?,?,?,?,?,?,?)")
		args = append(args, listingID, string(p.Type),
			valF64(p.DiscountRate), valF64(p.ReduceAmount), valF64(p.MinAmount),
			p.StartDate, p.EndDate)
	}
	_, err := tx.ExecContext(ctx, insertPromotionsPrefix+strings.Join(values, ","), args...)
	return err
}

// -----------------------------------------------------------------------------
// LISTINGS: reads
// -----------------------------------------------------------------------------

func scanListing(s scanner) (domain.Listing, error) {
	var (
		l        domain.Listing
		desc     sql.NullString
		minPrice sql.NullFloat64
		status   string
	)
	if err := s.Scan(
		&l.ID, &l.OwnerID, &l.NameZh, &l.NameEn, &l.Address, &l.City, &l.StarLevel,
		&l.Phone, &desc, &minPrice, &status, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		return domain.Listing{}, err
	}
	l.Description = desc.String
	l.MinPrice = f64Ptr(minPrice)
	l.Status = domain.Status(status)
	l.Images = []domain.Image{}
	return l, nil
}

func (r *Repo) GetListing(ctx context.Context, id int64) (domain.Listing, error) {
	l, err := scanListing(r.db.QueryRowContext(ctx, getListingSQL, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Listing{}, &domain.NotFoundError{Entity: "listing", ID: id}
		}
		return domain.Listing{}, err
	}
	imgs, err := loadImages(ctx, r.db, []int64{id})
	if err != nil {
		return domain.Listing{}, err
	}
	if got, ok := imgs[id]; ok {
		l.Images = got
	}
	if l.NearbySpots, err = r.loadSpots(ctx, id); err != nil {
		return domain.Listing{}, err
	}
	if l.Promotions, err = r.loadPromotions(ctx, id); err != nil {
		return domain.Listing{}, err
	}
	return l, nil
}

// SearchListings runs the page and the count concurrently, then attaches images to the page.
func (r *Repo) SearchListings(ctx context.Context, q domain.ListingQuery) (domain.ListingPage, error) {
	pageSQL, pageArgs, countSQL, countArgs := buildSearchSQL(q)

	var (
		items []domain.Listing
		total int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := r.db.QueryContext(gctx, pageSQL, pageArgs...)
		if err != nil {
			return fmt.Errorf("search listings: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			l, err := scanListing(rows)
			if err != nil {
				return err
			}
			items = append(items, l)
		}
		return rows.Err()
	})
	g.Go(func() error {
		if err := r.db.QueryRowContext(gctx, countSQL, countArgs...).Scan(&total); err != nil {
			return fmt.Errorf("count listings: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.ListingPage{}, err
	}

	if len(items) > 0 {
		ids := make([]int64, len(items))
		for i := range items {
			ids[i] = items[i].ID
		}
		imgs, err := loadImages(ctx, r.db, ids)
		if err != nil {
			return domain.ListingPage{}, err
		}
		for i := range items {
			if got, ok := imgs[items[i].ID]; ok {
				items[i].Images = got
			}
		}
	}
	return domain.NewListingPage(items, total, q.Page, q.PageSize), nil
}

func loadImages(ctx context.Context, q queryer, ids []int64) (map[int64][]domain.Image, error) {
	marks := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := q.QueryContext(ctx, fmt.Sprintf(imagesByListingSQL, marks), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]domain.Image, len(ids))
	for rows.Next() {
		var (
			img       domain.Image
			listingID int64
		)
		if err := rows.Scan(&img.ID, &listingID, &img.URL, &img.Sort, &img.IsCover); err != nil {
			return nil, err
		}
		out[listingID] = append(out[listingID], img)
	}
	return out, rows.Err()
}

func (r *Repo) loadSpots(ctx context.Context, listingID int64) ([]domain.NearbySpot, error) {
	rows, err := r.db.QueryContext(ctx, spotsByListingSQL, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.NearbySpot
	for rows.Next() {
		var (
			s  domain.NearbySpot
			tp string
		)
		if err := rows.Scan(&s.ID, &tp, &s.Name, &s.Distance); err != nil {
			return nil, err
		}
		s.Type = domain.SpotType(tp)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repo) loadPromotions(ctx context.Context, listingID int64) ([]domain.Promotion, error) {
	rows, err := r.db.QueryContext(ctx, promotionsByListingSQL, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Promotion
	for rows.Next() {
		var (
			p                  domain.Promotion
			tp                 string
			rate, reduce, minA sql.NullFloat64
		)
		if err := rows.Scan(&p.ID, &tp, &rate, &reduce, &minA, &p.StartDate, &p.EndDate); err != nil {
			return nil, err
		}
		p.Type = domain.PromotionType(tp)
		p.DiscountRate, p.ReduceAmount, p.MinAmount = f64Ptr(rate), f64Ptr(reduce), f64Ptr(minA)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) ListAuditEntries(ctx context.Context, listingID int64) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx, auditByListingSQL, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.AuditEntry
	for rows.Next() {
		var (
			e        domain.AuditEntry
			from, to string
			reason   sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.ListingID, &e.ReviewerID, &from, &to, &reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.FromStatus, e.ToStatus = domain.Status(from), domain.Status(to)
		e.Reason = strPtr(reason)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) ListListingIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, listListingIDsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repo) ListActiveBanners(ctx context.Context) ([]domain.Banner, error) {
	rows, err := r.db.QueryContext(ctx, activeBannersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Banner
	for rows.Next() {
		var (
			b                    domain.Banner
			lid                  sql.NullInt64
			nameZh, nameEn, city sql.NullString
			minPrice             sql.NullFloat64
		)
		if err := rows.Scan(&b.ID, &b.ImageURL, &b.Sort, &b.IsActive, &lid, &nameZh, &nameEn, &city, &minPrice); err != nil {
			return nil, err
		}
		if lid.Valid {
			b.Listing = &domain.ListingDigest{
				ID: lid.Int64, NameZh: nameZh.String, NameEn: nameEn.String,
				City: city.String, MinPrice: f64Ptr(minPrice),
			}
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// -----------------------------------------------------------------------------
// ROOM TYPES
// -----------------------------------------------------------------------------

func marshalList(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	return string(b), err
}

func (r *Repo) CreateRoomType(ctx context.Context, rt domain.RoomType) (int64, error) {
	fac, err := marshalList(rt.Facilities)
	if err != nil {
		return 0, err
	}
	imgs, err := marshalList(rt.Images)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, insertRoomTypeSQL,
		rt.ListingID, rt.Name, string(rt.BedType), rt.Area, rt.MaxGuests, rt.BasePrice, rt.Stock, rt.Description, fac, imgs)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) UpdateRoomType(ctx context.Context, rt domain.RoomType) error {
	fac, err := marshalList(rt.Facilities)
	if err != nil {
		return err
	}
	imgs, err := marshalList(rt.Images)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, updateRoomTypeSQL,
		rt.Name, string(rt.BedType), rt.Area, rt.MaxGuests, rt.BasePrice, rt.Stock, rt.Description, fac, imgs, rt.ID)
	return err
}

func (r *Repo) DeleteRoomType(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, deleteRoomRulesSQL, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, deleteRoomTypeSQL, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return &domain.NotFoundError{Entity: "room type", ID: id}
		}
		return nil
	})
}

func scanRoomType(s scanner) (domain.RoomType, error) {
	var (
		rt        domain.RoomType
		bed       string
		desc      sql.NullString
		fac, imgs []byte
	)
	if err := s.Scan(&rt.ID, &rt.ListingID, &rt.Name, &bed, &rt.Area, &rt.MaxGuests, &rt.BasePrice, &rt.Stock,
		&desc, &fac, &imgs, &rt.CreatedAt, &rt.UpdatedAt); err != nil {
		return domain.RoomType{}, err
	}
	rt.BedType = domain.BedType(bed)
	rt.Description = desc.String
	rt.Facilities, rt.Images = []string{}, []string{}
	if len(fac) > 0 {
		if err := json.Unmarshal(fac, &rt.Facilities); err != nil {
			return domain.RoomType{}, fmt.Errorf("room type %d facilities: %w", rt.ID, err)
		}
	}
	if len(imgs) > 0 {
		if err := json.Unmarshal(imgs, &rt.Images); err != nil {
			return domain.RoomType{}, fmt.Errorf("room type %d images: %w", rt.ID, err)
		}
	}
	return rt, nil
}

func (r *Repo) GetRoomType(ctx context.Context, id int64) (domain.RoomType, error) {
	rt, err := scanRoomType(r.db.QueryRowContext(ctx, getRoomTypeSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoomType{}, &domain.NotFoundError{Entity: "room type", ID: id}
	}
	return rt, err
}

func (r *Repo) ListRoomTypes(ctx context.Context, listingID int64) ([]domain.RoomType, error) {
	rows, err := r.db.QueryContext(ctx, roomTypesByListingSQL, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.RoomType{}
	for rows.Next() {
		rt, err := scanRoomType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r *Repo) RecomputeMinPrice(ctx context.Context, listingID int64) (*float64, error) {
	var p sql.NullFloat64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, recomputeMinPriceSQL, listingID, listingID); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, selectMinPriceSQL, listingID).Scan(&p); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &domain.NotFoundError{Entity: "listing", ID: listingID}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return f64Ptr(p), nil
}

// -----------------------------------------------------------------------------
// PRICE RULES
// -----------------------------------------------------------------------------

func (r *Repo) CreatePriceRule(ctx context.Context, p domain.PriceRule) (int64, error) {
	res, err := r.db.ExecContext(ctx, insertPriceRuleSQL, p.RoomTypeID, string(p.Type), p.StartDate, p.EndDate, p.Price)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *Repo) UpdatePriceRule(ctx context.Context, p domain.PriceRule) error {
	_, err := r.db.ExecContext(ctx, updatePriceRuleSQL, string(p.Type), p.StartDate, p.EndDate, p.Price, p.ID)
	return err
}

func (r *Repo) DeletePriceRule(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, deletePriceRuleSQL, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "price rule", ID: id}
	}
	return nil
}

func scanPriceRule(s scanner) (domain.PriceRule, error) {
	var (
		p  domain.PriceRule
		tp string
	)
	if err := s.Scan(&p.ID, &p.RoomTypeID, &tp, &p.StartDate, &p.EndDate, &p.Price); err != nil {
		return domain.PriceRule{}, err
	}
	p.Type = domain.PriceRuleType(tp)
	return p, nil
}

func (r *Repo) GetPriceRule(ctx context.Context, id int64) (domain.PriceRule, error) {
	p, err := scanPriceRule(r.db.QueryRowContext(ctx, getPriceRuleSQL, id))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PriceRule{}, &domain.NotFoundError{Entity: "price rule", ID: id}
	}
	return p, err
}

func (r *Repo) ListPriceRules(ctx context.Context, roomTypeID int64) ([]domain.PriceRule, error) {
	rows, err := r.db.QueryContext(ctx, priceRulesByRoomSQL, roomTypeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.PriceRule{}
	for rows.Next() {
		p, err := scanPriceRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

var (
	_ domain.ListingRepository = (*Repo)(nil)
	_ domain.RoomRepository    = (*Repo)(nil)
)
