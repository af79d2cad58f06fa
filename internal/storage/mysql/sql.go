package mysql

// -----------------------------------------------------------------------------
// LISTINGS
// -----------------------------------------------------------------------------

const insertListingSQL = `
INSERT INTO listings
  (merchant_id, name_zh, name_en, address, city, star_level, phone, description, status)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateListingSQL = `
UPDATE listings SET
  name_zh     = ?,
  name_en     = ?,
  address     = ?,
  city        = ?,
  star_level  = ?,
  phone       = ?,
  description = ?
WHERE id = ?
`

// Status-guarded write: affects 0 rows when another writer got there first.
const transitionSQL = `UPDATE listings SET status = ? WHERE id = ? AND status = ?`

const selectStatusSQL = `SELECT status FROM listings WHERE id = ?`

const lockStatusSQL = `SELECT status FROM listings WHERE id = ? FOR UPDATE`

const insertReviewLogSQL = `
INSERT INTO review_logs (listing_id, reviewer_id, from_status, to_status, reason, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

// Cascade order matters: price rules hang off room types.
var deleteListingChildrenSQL = []string{
	`DELETE pr FROM price_rules pr JOIN room_types rt ON rt.id = pr.room_type_id WHERE rt.listing_id = ?`,
	`DELETE FROM room_types WHERE listing_id = ?`,
	`DELETE FROM listing_images WHERE listing_id = ?`,
	`DELETE FROM nearby_spots WHERE listing_id = ?`,
	`DELETE FROM promotions WHERE listing_id = ?`,
	`UPDATE banners SET listing_id = NULL WHERE listing_id = ?`,
}

const deleteListingSQL = `DELETE FROM listings WHERE id = ?`

const listingColumns = `
  l.id, l.merchant_id, l.name_zh, l.name_en, l.address, l.city, l.star_level,
  l.phone, l.description, l.min_price, l.status, l.created_at, l.updated_at`

const getListingSQL = `SELECT` + listingColumns + `
FROM listings l
WHERE l.id = ?
`

const listListingIDsSQL = `SELECT id FROM listings ORDER BY id`

// -----------------------------------------------------------------------------
// LISTING CHILDREN
// -----------------------------------------------------------------------------

const insertImagesPrefix = "INSERT INTO listing_images (listing_id, url, sort, is_cover) VALUES "
const insertSpotsPrefix = "INSERT INTO nearby_spots (listing_id, type, name, distance) VALUES "
const insertPromotionsPrefix = "INSERT INTO promotions (listing_id, type, discount_rate, reduce_amount, min_amount, start_date, end_date) VALUES "

const deleteImagesSQL = `DELETE FROM listing_images WHERE listing_id = ?`
const deleteSpotsSQL = `DELETE FROM nearby_spots WHERE listing_id = ?`
const deletePromotionsSQL = `DELETE FROM promotions WHERE listing_id = ?`

const imagesByListingSQL = `
SELECT id, listing_id, url, sort, is_cover
FROM listing_images
WHERE listing_id IN (%s)
ORDER BY listing_id, sort, id
`

const spotsByListingSQL = `
SELECT id, type, name, distance
FROM nearby_spots
WHERE listing_id = ?
ORDER BY id
`

const promotionsByListingSQL = `
SELECT id, type, discount_rate, reduce_amount, min_amount, start_date, end_date
FROM promotions
WHERE listing_id = ?
ORDER BY start_date, id
`

const auditByListingSQL = `
SELECT id, listing_id, reviewer_id, from_status, to_status, reason, created_at
FROM review_logs
WHERE listing_id = ?
ORDER BY created_at DESC, id DESC
`

const activeBannersSQL = `
SELECT b.id, b.image_url, b.sort, b.is_active,
       l.id, l.name_zh, l.name_en, l.city, l.min_price
FROM banners b
LEFT JOIN listings l ON l.id = b.listing_id
WHERE b.is_active = TRUE
ORDER BY b.sort, b.id
`

// -----------------------------------------------------------------------------
// ROOM TYPES & PRICE RULES
// -----------------------------------------------------------------------------

const insertRoomTypeSQL = `
INSERT INTO room_types
  (listing_id, name, bed_type, area, max_guests, base_price, stock, description, facilities, images)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateRoomTypeSQL = `
UPDATE room_types SET
  name        = ?,
  bed_type    = ?,
  area        = ?,
  max_guests  = ?,
  base_price  = ?,
  stock       = ?,
  description = ?,
  facilities  = ?,
  images      = ?
WHERE id = ?
`

const deleteRoomRulesSQL = `DELETE FROM price_rules WHERE room_type_id = ?`
const deleteRoomTypeSQL = `DELETE FROM room_types WHERE id = ?`

const roomTypeColumns = `
  id, listing_id, name, bed_type, area, max_guests, base_price, stock,
  description, facilities, images, created_at, updated_at`

const getRoomTypeSQL = `SELECT` + roomTypeColumns + `
FROM room_types
WHERE id = ?
`

const roomTypesByListingSQL = `SELECT` + roomTypeColumns + `
FROM room_types
WHERE listing_id = ?
ORDER BY base_price, id
`

// Single statement so the aggregate always reflects the committed room set.
const recomputeMinPriceSQL = `
UPDATE listings
SET min_price = (SELECT MIN(rt.base_price) FROM room_types rt WHERE rt.listing_id = ?)
WHERE id = ?
`

const selectMinPriceSQL = `SELECT min_price FROM listings WHERE id = ?`

const insertPriceRuleSQL = `
INSERT INTO price_rules (room_type_id, type, start_date, end_date, price)
VALUES (?, ?, ?, ?, ?)
`

const updatePriceRuleSQL = `
UPDATE price_rules SET type = ?, start_date = ?, end_date = ?, price = ?
WHERE id = ?
`

const deletePriceRuleSQL = `DELETE FROM price_rules WHERE id = ?`

const getPriceRuleSQL = `
SELECT id, room_type_id, type, start_date, end_date, price
FROM price_rules
WHERE id = ?
`

const priceRulesByRoomSQL = `
SELECT id, room_type_id, type, start_date, end_date, price
FROM price_rules
WHERE room_type_id = ?
ORDER BY start_date, id
`
