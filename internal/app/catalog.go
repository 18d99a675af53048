package app

import (
	"context"
	"io"
	"math"
	"strings"
	"time"

	"terrenos/internal/adapters/observability"
	"terrenos/internal/domain"
)

const plotsCacheKey = "plots:all"

// CatalogService owns the public catalog: cached listing, admin CRUD, and
// spreadsheet import.
type CatalogService struct {
	repo     domain.PlotRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewCatalogService(r domain.PlotRepository, c domain.Cache, ttl time.Duration) *CatalogService {
	return &CatalogService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *CatalogService) ListPlots(ctx context.Context) ([]domain.Plot, error) {
	if s.cache != nil {
		var out []domain.Plot
		if ok, _ := s.cache.Get(ctx, plotsCacheKey, &out); ok {
			return out, nil
		}
	}
	ps, err := s.repo.ListPlots(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, plotsCacheKey, ps, int(s.cacheTTL.Seconds()))
	}
	return ps, nil
}

// CreatePlots sanitizes and inserts a batch. Entries failing validation are
// dropped; when nothing survives, ErrNoValidRows. Returns the persisted count.
func (s *CatalogService) CreatePlots(ctx context.Context, in []domain.Plot) (int, error) {
	cleaned := make([]domain.Plot, 0, len(in))
	for _, p := range in {
		if sp, ok := SanitizePlot(p); ok {
			cleaned = append(cleaned, sp)
		}
	}
	if len(cleaned) == 0 {
		return 0, domain.ErrNoValidRows
	}
	n, err := s.repo.InsertPlots(ctx, cleaned)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	return n, nil
}

func (s *CatalogService) UpdatePlot(ctx context.Context, id string, patch domain.PlotPatch) error {
	if err := s.repo.UpdatePlot(ctx, id, sanitizePatch(patch)); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *CatalogService) DeletePlot(ctx context.Context, id string) error {
	if err := s.repo.DeletePlot(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

// ImportCSV runs an uploaded spreadsheet through the row normalizer and
// persists the survivors in one batch. Per-row failures are not reported;
// the only feedback is the inserted count.
func (s *CatalogService) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	headers, records, err := ReadCSV(r)
	if err != nil {
		return 0, err
	}
	valid, dropped := NormalizeRows(headers, records)
	observability.ObserveImport(len(valid), dropped)
	if len(valid) == 0 {
		return 0, domain.ErrNoValidRows
	}
	n, err := s.repo.InsertPlots(ctx, valid)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	return n, nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, plotsCacheKey)
	}
}

// SanitizePlot trims text fields, lower-cases and defaults the enums, and
// requires a non-empty title/location plus finite price and area. The cover
// image is kept aligned with the head of the image list.
func SanitizePlot(p domain.Plot) (domain.Plot, bool) {
	p.Title = strings.TrimSpace(p.Title)
	p.Location = strings.TrimSpace(p.Location)
	if p.Title == "" || p.Location == "" || !finite(p.PriceUSD) || !finite(p.AreaM2) {
		return domain.Plot{}, false
	}

	p.Status = strings.ToLower(strings.TrimSpace(p.Status))
	if p.Status == "" {
		p.Status = domain.StatusAvailable
	}
	p.Type = strings.ToLower(strings.TrimSpace(p.Type))
	if p.Type == "" {
		p.Type = domain.TypeResidential
	}

	p.Description = trimPtr(p.Description)
	p.ImageURL = trimPtr(p.ImageURL)
	if len(p.ImageURLs) > 0 {
		p.ImageURL = &p.ImageURLs[0]
	}
	if p.Lat != nil && !finite(*p.Lat) {
		p.Lat = nil
	}
	if p.Lng != nil && !finite(*p.Lng) {
		p.Lng = nil
	}
	return p, true
}

func sanitizePatch(p domain.PlotPatch) domain.PlotPatch {
	p.Title = trimPtr(p.Title)
	p.Location = trimPtr(p.Location)
	if p.Status != nil {
		s := strings.ToLower(strings.TrimSpace(*p.Status))
		p.Status = &s
	}
	if p.Type != nil {
		t := strings.ToLower(strings.TrimSpace(*p.Type))
		p.Type = &t
	}
	p.Description = trimPtr(p.Description)
	p.ImageURL = trimPtr(p.ImageURL)
	if p.PriceUSD != nil && !finite(*p.PriceUSD) {
		p.PriceUSD = nil
	}
	if p.AreaM2 != nil && !finite(*p.AreaM2) {
		p.AreaM2 = nil
	}
	if p.Lat != nil && !finite(*p.Lat) {
		p.Lat = nil
	}
	if p.Lng != nil && !finite(*p.Lng) {
		p.Lng = nil
	}
	return p
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }

func trimPtr(p *string) *string {
	if p == nil {
		return nil
	}
	t := strings.TrimSpace(*p)
	if t == "" {
		return nil
	}
	return &t
}
