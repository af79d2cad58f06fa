package mysql

import (
	"strings"

	"hotel_listing/internal/domain"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// buildListingFilter renders q as a WHERE clause (including the keyword) with its args.
func buildListingFilter(q domain.ListingQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.Status != nil {
		conds = append(conds, "l.status = ?")
		args = append(args, string(*q.Status))
	}
	if q.OwnerID != nil {
		conds = append(conds, "l.merchant_id = ?")
		args = append(args, *q.OwnerID)
	}
	if kw := strings.TrimSpace(q.Keyword); kw != "" {
		pat := "%" + likeEscaper.Replace(strings.ToLower(kw)) + "%"
		conds = append(conds, "(LOWER(l.name_zh) LIKE ? OR LOWER(l.name_en) LIKE ? OR LOWER(l.city) LIKE ?)")
		args = append(args, pat, pat, pat)
	}
	if q.City != "" {
		conds = append(conds, "l.city = ?")
		args = append(args, q.City)
	}
	if q.StarLevel != nil {
		conds = append(conds, "l.star_level = ?")
		args = append(args, *q.StarLevel)
	}
	if q.MinPrice != nil {
		conds = append(conds, "l.min_price >= ?")
		args = append(args, *q.MinPrice)
	}
	if q.MaxPrice != nil {
		conds = append(conds, "l.min_price <= ?")
		args = append(args, *q.MaxPrice)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var sortColumns = map[domain.SortField]string{
	domain.SortByPrice:     "l.min_price",
	domain.SortByStarLevel: "l.star_level",
	domain.SortByCreatedAt: "l.created_at",
}

// buildListingOrder only ever emits whitelisted column names.
func buildListingOrder(q domain.ListingQuery) string {
	col, ok := sortColumns[q.SortBy]
	if !ok {
		col = sortColumns[domain.SortByCreatedAt]
	}
	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	return " ORDER BY " + col + " " + dir + ", l.id " + dir
}

func buildSearchSQL(q domain.ListingQuery) (page string, pageArgs []any, count string, countArgs []any) {
	where, args := buildListingFilter(q)
	page = "SELECT" + listingColumns + "\nFROM listings l" + where + buildListingOrder(q) + " LIMIT ? OFFSET ?"
	pageArgs = append(append([]any{}, args...), q.PageSize, q.Offset())
	count = "SELECT COUNT(*) FROM listings l" + where
	return page, pageArgs, count, args
}
