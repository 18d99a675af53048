package app_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"terrenos/internal/app"
	"terrenos/internal/domain"
)

// ---- fakes ----

type fakePlotRepo struct {
	plots    []domain.Plot
	inserted [][]domain.Plot
	updates  map[string]domain.PlotPatch
	deleted  []string
}

func (f *fakePlotRepo) InsertPlots(ctx context.Context, ps []domain.Plot) (int, error) {
	f.inserted = append(f.inserted, ps)
	f.plots = append(f.plots, ps...)
	return len(ps), nil
}

func (f *fakePlotRepo) UpdatePlot(ctx context.Context, id string, p domain.PlotPatch) error {
	for _, existing := range f.plots {
		if existing.ID == id {
			if f.updates == nil {
				f.updates = map[string]domain.PlotPatch{}
			}
			f.updates[id] = p
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakePlotRepo) DeletePlot(ctx context.Context, id string) error {
	for i, existing := range f.plots {
		if existing.ID == id {
			f.plots = append(f.plots[:i], f.plots[i+1:]...)
			f.deleted = append(f.deleted, id)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (f *fakePlotRepo) ListPlots(ctx context.Context) ([]domain.Plot, error) {
	return f.plots, nil
}

type fakeCache struct {
	store map[string]any
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	if b, ok := v.([]byte); ok {
		return true, json.Unmarshal(b, dst)
	}
	if d, ok := dst.(*[]domain.Plot); ok {
		*d = v.([]domain.Plot)
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	// JSON round-trip for value semantics, mirroring the real Redis adapter.
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	c.dels = append(c.dels, key)
	return nil
}

func ptr[T any](v T) *T { return &v }

// ---- tests ----

func TestListPlots_CacheMissThenHit(t *testing.T) {
	repo := &fakePlotRepo{plots: []domain.Plot{{ID: "p1", Title: "Lote 1", Location: "Osorno"}}}
	cache := &fakeCache{}
	svc := app.NewCatalogService(repo, cache, 10*time.Minute)

	out, err := svc.ListPlots(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(out) != 1 || out[0].Title != "Lote 1" {
		t.Fatalf("unexpected plots: %+v", out)
	}

	// Mutate repo to prove the second read comes from cache
	repo.plots[0].Title = "SHOULD NOT SEE THIS"

	out2, err := svc.ListPlots(context.Background())
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if out2[0].Title != "Lote 1" {
		t.Fatalf("expected cached title, got %s", out2[0].Title)
	}
}

func TestCreatePlots_SanitizesAndCounts(t *testing.T) {
	repo := &fakePlotRepo{}
	cache := &fakeCache{store: map[string]any{"plots:all": []domain.Plot{}}}
	svc := app.NewCatalogService(repo, cache, time.Minute)

	in := []domain.Plot{
		{Title: "  Lote 1 ", Location: "Osorno", PriceUSD: 1000, AreaM2: 500, Status: "Reserved"},
		{Title: "", Location: "Osorno", PriceUSD: 1000, AreaM2: 500}, // dropped
		{Title: "Lote 3", Location: "Ancud", PriceUSD: 3000, AreaM2: 900},
	}
	count, err := svc.CreatePlots(context.Background(), in)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	got := repo.inserted[0]
	if got[0].Title != "Lote 1" || got[0].Status != "reserved" || got[0].Type != "residential" {
		t.Fatalf("sanitize failed: %+v", got[0])
	}
	if len(cache.dels) == 0 {
		t.Fatalf("expected cache invalidation after create")
	}
}

func TestCreatePlots_AllInvalid(t *testing.T) {
	svc := app.NewCatalogService(&fakePlotRepo{}, &fakeCache{}, time.Minute)
	_, err := svc.CreatePlots(context.Background(), []domain.Plot{{Title: "", Location: ""}})
	if err != domain.ErrNoValidRows {
		t.Fatalf("err = %v, want ErrNoValidRows", err)
	}
}

func TestSanitizePlot_CoverFollowsImageList(t *testing.T) {
	p, ok := app.SanitizePlot(domain.Plot{
		Title: "Lote", Location: "Osorno", PriceUSD: 1, AreaM2: 1,
		ImageURL:  ptr("https://cdn/other.jpg"),
		ImageURLs: []string{"https://cdn/a.jpg", "https://cdn/b.jpg"},
	})
	if !ok {
		t.Fatalf("expected valid plot")
	}
	if p.ImageURL == nil || *p.ImageURL != "https://cdn/a.jpg" {
		t.Fatalf("cover image must be first of image_urls, got %v", p.ImageURL)
	}
}

func TestImportCSV_EndToEnd(t *testing.T) {
	csvData := strings.Join([]string{
		"Terreno,Ubicación,Precio USD,Metros2,Estado",
		`"Parcela El Roble",Valdivia,"US$ 1,200.50",5000,Disponible`,
		",Valdivia,1000,500,",               // no title
		"Lote 3,Frutillar,2000,700,",
		"Lote 4,Puerto Varas,consultar,700,", // bad price
		"Lote 5,Ancud,3000,900,reserved",
	}, "\n")

	repo := &fakePlotRepo{}
	svc := app.NewCatalogService(repo, &fakeCache{}, time.Minute)

	count, err := svc.ImportCSV(context.Background(), strings.NewReader(csvData))
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
	got := repo.inserted[0]
	if got[0].Title != "Parcela El Roble" || got[0].PriceUSD != 1200.50 {
		t.Fatalf("first row mapped wrong: %+v", got[0])
	}
	if got[2].Status != "reserved" {
		t.Fatalf("status not carried: %+v", got[2])
	}
}

func TestImportCSV_NoValidRows(t *testing.T) {
	svc := app.NewCatalogService(&fakePlotRepo{}, &fakeCache{}, time.Minute)
	_, err := svc.ImportCSV(context.Background(), strings.NewReader("foo,bar\n1,2\n"))
	if err != domain.ErrNoValidRows {
		t.Fatalf("err = %v, want ErrNoValidRows", err)
	}
}
