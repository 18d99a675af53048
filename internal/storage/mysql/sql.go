package mysql

// Note: `status` and `type` are kept quoted for safety alongside reserved-ish names.

const insertPlotsPrefix = "INSERT INTO plots\n" +
	"  (id, title, location, price_usd, area_m2, `status`, `type`, description, image_url, image_urls, lat, lng)\nVALUES "

const listPlotsSQL = `
SELECT
  id, title, location, price_usd, area_m2, status, type,
  description, image_url, image_urls, lat, lng, created_at
FROM plots
ORDER BY created_at DESC, id DESC
`

const deletePlotSQL = `DELETE FROM plots WHERE id = ?`

const plotExistsSQL = `SELECT 1 FROM plots WHERE id = ?`

const insertSubmissionSQL = `
INSERT INTO user_listings
  (id, user_id, title, location, price_usd, area_m2, type, deal_type,
   description, status, image_urls, lat, lng)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const getSubmissionSQL = `
SELECT
  id, user_id, title, location, price_usd, area_m2, type, deal_type,
  description, status, image_urls, lat, lng, created_at
FROM user_listings
WHERE id = ?
`

const listSubmissionsSQL = `
SELECT
  id, user_id, title, location, price_usd, area_m2, type, deal_type,
  description, status, image_urls, lat, lng, created_at
FROM user_listings
ORDER BY created_at DESC, id DESC
`

// COALESCE keeps the stored image list when the decision carries none
// (reject leaves photos untouched). The status guard makes the transition
// first-writer-wins.
const decideSubmissionSQL = `
UPDATE user_listings
SET status = ?, image_urls = COALESCE(?, image_urls)
WHERE id = ? AND status = 'pending'
`

const submissionStatusSQL = `SELECT status FROM user_listings WHERE id = ?`

const submissionOwnerStatusSQL = `SELECT status FROM user_listings WHERE id = ? AND user_id = ?`

const setSubmissionImagesSQL = `
UPDATE user_listings
SET image_urls = ?
WHERE id = ? AND user_id = ? AND status = 'pending'
`
