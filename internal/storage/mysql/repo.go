package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"terrenos/internal/domain"
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
func valJSON(ss []string) any {
	if ss == nil {
		return nil
	}
	b, _ := json.Marshal(ss)
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

/********** plots **********/

func (r *Repo) InsertPlots(ctx context.Context, ps []domain.Plot) (int, error) {
	if len(ps) == 0 {
		return 0, nil
	}
	values := make([]string, 0, len(ps))
	args := make([]any, 0, len(ps)*12)
	for _, p := range ps {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		imgs := p.ImageURLs
		if imgs == nil {
			imgs = []string{}
		}
		values = append(values, "(?,?,?,?,?,?,?,?,?,?,?,?)")
		args = append(args,
			id,
			p.Title,
			p.Location,
			p.PriceUSD,
			p.AreaM2,
			p.Status,
			p.Type,
			valStr(p.Description),
			valStr(p.ImageURL),
			valJSON(imgs),
			valF64(p.Lat),
			valF64(p.Lng),
		)
	}
	sqlStr := insertPlotsPrefix + strings.Join(values, ",")
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return len(ps), nil
	}
	return int(n), nil
}

func (r *Repo) ListPlots(ctx context.Context) ([]domain.Plot, error) {
	rows, err := r.db.QueryContext(ctx, listPlotsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Plot
	for rows.Next() {
		p, err := scanPlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlot(rows *sql.Rows) (domain.Plot, error) {
	var p domain.Plot
	var desc, imageURL sql.NullString
	var imagesJSON []byte
	var lat, lng sql.NullFloat64

	if err := rows.Scan(
		&p.ID, &p.Title, &p.Location, &p.PriceUSD, &p.AreaM2, &p.Status, &p.Type,
		&desc, &imageURL, &imagesJSON, &lat, &lng, &p.CreatedAt,
	); err != nil {
		return domain.Plot{}, err
	}
	if desc.Valid {
		d := desc.String
		p.Description = &d
	}
	if imageURL.Valid {
		u := imageURL.String
		p.ImageURL = &u
	}
	_ = json.Unmarshal(imagesJSON, &p.ImageURLs)
	if lat.Valid {
		v := lat.Float64
		p.Lat = &v
	}
	if lng.Valid {
		v := lng.Float64
		p.Lng = &v
	}
	return p, nil
}

func (r *Repo) UpdatePlot(ctx context.Context, id string, p domain.PlotPatch) error {
	sets := make([]string, 0, 10)
	args := make([]any, 0, 11)
	add := func(col string, v any) {
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Location != nil {
		add("location", *p.Location)
	}
	if p.PriceUSD != nil {
		add("price_usd", *p.PriceUSD)
	}
	if p.AreaM2 != nil {
		add("area_m2", *p.AreaM2)
	}
	if p.Status != nil {
		add("`status`", *p.Status)
	}
	if p.Type != nil {
		add("`type`", *p.Type)
	}
	if p.Description != nil {
		add("description", *p.Description)
	}
	if p.ImageURL != nil {
		add("image_url", *p.ImageURL)
	}
	if p.Lat != nil {
		add("lat", *p.Lat)
	}
	if p.Lng != nil {
		add("lng", *p.Lng)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, "UPDATE plots SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// An identical update also reports zero rows; only a missing row is an error.
		var one int
		if err := r.db.QueryRowContext(ctx, plotExistsSQL, id).Scan(&one); err == sql.ErrNoRows {
			return domain.ErrNotFound
		} else if err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) DeletePlot(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, deletePlotSQL, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

/********** user submissions **********/

func (r *Repo) InsertSubmission(ctx context.Context, s domain.Submission) error {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	imgs := s.ImageURLs
	if imgs == nil {
		imgs = []string{}
	}
	_, err := r.db.ExecContext(ctx, insertSubmissionSQL,
		id,
		s.UserID,
		s.Title,
		s.Location,
		s.PriceUSD,
		s.AreaM2,
		s.Type,
		s.DealType,
		valStr(s.Description),
		s.Status,
		valJSON(imgs),
		valF64(s.Lat),
		valF64(s.Lng),
	)
	return err
}

func (r *Repo) GetSubmission(ctx context.Context, id string) (domain.Submission, error) {
	row := r.db.QueryRowContext(ctx, getSubmissionSQL, id)
	s, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return domain.Submission{}, domain.ErrNotFound
	}
	return s, err
}

func (r *Repo) ListSubmissions(ctx context.Context) ([]domain.Submission, error) {
	rows, err := r.db.QueryContext(ctx, listSubmissionsSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type scanner interface{ Scan(dest ...any) error }

func scanSubmission(row scanner) (domain.Submission, error) {
	var s domain.Submission
	var desc sql.NullString
	var imagesJSON []byte
	var lat, lng sql.NullFloat64

	if err := row.Scan(
		&s.ID, &s.UserID, &s.Title, &s.Location, &s.PriceUSD, &s.AreaM2,
		&s.Type, &s.DealType, &desc, &s.Status, &imagesJSON, &lat, &lng, &s.CreatedAt,
	); err != nil {
		return domain.Submission{}, err
	}
	if desc.Valid {
		d := desc.String
		s.Description = &d
	}
	_ = json.Unmarshal(imagesJSON, &s.ImageURLs)
	if lat.Valid {
		v := lat.Float64
		s.Lat = &v
	}
	if lng.Valid {
		v := lng.Float64
		s.Lng = &v
	}
	return s, nil
}

// DecideSubmission flips a pending submission to the given status. A nil
// imageURLs keeps the stored list. ErrConflict when the row exists but was
// already decided, ErrNotFound when it does not exist.
func (r *Repo) DecideSubmission(ctx context.Context, id, status string, imageURLs []string) error {
	res, err := r.db.ExecContext(ctx, decideSubmissionSQL, status, valJSON(imageURLs), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var cur string
	if err := r.db.QueryRowContext(ctx, submissionStatusSQL, id).Scan(&cur); err == sql.ErrNoRows {
		return domain.ErrNotFound
	} else if err != nil {
		return err
	}
	return domain.ErrConflict
}

func (r *Repo) SetSubmissionImages(ctx context.Context, id, userID string, urls []string) error {
	if urls == nil {
		urls = []string{}
	}
	res, err := r.db.ExecContext(ctx, setSubmissionImagesSQL, valJSON(urls), id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var cur string
	if err := r.db.QueryRowContext(ctx, submissionOwnerStatusSQL, id, userID).Scan(&cur); err == sql.ErrNoRows {
		return domain.ErrNotFound
	} else if err != nil {
		return err
	}
	if cur != domain.SubmissionPending {
		return domain.ErrConflict
	}
	return nil // identical update
}
