//go:build integration || !unit

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"terrenos/internal/adapters/authgw"
	httpserver "terrenos/internal/adapters/http_server"
	"terrenos/internal/app"
	mysqlrepo "terrenos/internal/storage/mysql"
)

// ---------- helpers ----------

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// fake auth gateway: token -> identity
func fakeGateway(t *testing.T) *httptest.Server {
	t.Helper()
	users := map[string]string{
		"admin-token": `{"id":"aaaaaaaa-0000-0000-0000-000000000001","email":"admin@example.com"}`,
		"user-token":  `{"id":"aaaaaaaa-0000-0000-0000-000000000002","email":"user@example.com"}`,
	}
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		body, ok := users[token]
		if !ok {
			http.Error(w, `{"message":"invalid JWT"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(gw.Close)
	return gw
}

type noPhotos struct{}

func (noPhotos) List(ctx context.Context, prefix string) ([]string, error) { return nil, nil }
func (noPhotos) PublicURL(path string) string                              { return "https://cdn/" + path }

func doReq(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()
	var req *http.Request
	var err error
	if body != "" {
		req, err = http.NewRequest(method, url, strings.NewReader(body))
	} else {
		req, err = http.NewRequest(method, url, nil)
	}
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return res
}

// ---------- the test ----------

func TestHTTP_EndToEnd_SubmissionToCatalog(t *testing.T) {
	// Start isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=terrenos",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "terrenos")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)

	// Real wiring, fake edges: auth gateway and object store are stubbed,
	// everything between the router and MySQL is the production stack.
	repo := mysqlrepo.New(db)
	gw := fakeGateway(t)

	h := &httpserver.Handlers{
		Catalog: app.NewCatalogService(repo, nil, time.Minute),
		Mod:     app.NewModerationService(repo, repo, noPhotos{}, nil, 2),
	}
	auth := httpserver.NewAuth(authgw.New(gw.URL, "svc-key"), []string{"admin@example.com"})
	srv := httpserver.New()
	srv.MountHandlers(h, auth)
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// Anonymous callers see the (empty) public catalog and nothing else.
	res := doReq(t, http.MethodGet, ts.URL+"/v1/plots", "", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("public plots: %d", res.StatusCode)
	}
	res.Body.Close()
	res = doReq(t, http.MethodGet, ts.URL+"/v1/admin/plots", "", "")
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("admin without token: %d", res.StatusCode)
	}
	res.Body.Close()
	res = doReq(t, http.MethodGet, ts.URL+"/v1/admin/plots", "user-token", "")
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("admin as regular user: %d", res.StatusCode)
	}
	res.Body.Close()

	// A user submits a listing and confirms the uploaded photos.
	res = doReq(t, http.MethodPost, ts.URL+"/v1/listings", "user-token",
		`{"title":"Sitio orilla de lago","location":"Villarrica","price_usd":85000,"area_m2":1200,"deal_type":"rent"}`)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create listing: %d", res.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil || created.ID == "" {
		t.Fatalf("create payload: %v (%+v)", err, created)
	}
	res.Body.Close()

	res = doReq(t, http.MethodPatch, ts.URL+"/v1/listings/"+created.ID+"/photos", "user-token",
		`{"image_urls":["https://cdn/`+created.ID+`/1.jpg"]}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("set photos: %d", res.StatusCode)
	}
	res.Body.Close()

	// The moderator approves it; a second decision must conflict.
	res = doReq(t, http.MethodPatch, ts.URL+"/v1/admin/listings", "admin-token",
		`{"id":"`+created.ID+`","action":"approve"}`)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("approve: %d", res.StatusCode)
	}
	res.Body.Close()
	res = doReq(t, http.MethodPatch, ts.URL+"/v1/admin/listings", "admin-token",
		`{"id":"`+created.ID+`","action":"reject"}`)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("second decision: %d, want 409", res.StatusCode)
	}
	res.Body.Close()

	// The approved listing is now in the public catalog.
	res = doReq(t, http.MethodGet, ts.URL+"/v1/plots", "", "")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("public plots after approve: %d", res.StatusCode)
	}
	var page struct {
		Plots []struct {
			Title       string   `json:"title"`
			Description *string  `json:"description"`
			ImageURL    *string  `json:"image_url"`
			ImageURLs   []string `json:"image_urls"`
		} `json:"plots"`
	}
	if err := json.NewDecoder(res.Body).Decode(&page); err != nil {
		t.Fatalf("decode plots: %v", err)
	}
	res.Body.Close()
	if len(page.Plots) != 1 {
		t.Fatalf("plots = %+v", page.Plots)
	}
	p := page.Plots[0]
	if p.Title != "Sitio orilla de lago" {
		t.Fatalf("title = %q", p.Title)
	}
	if p.Description == nil || !strings.HasPrefix(*p.Description, "[Arriendo]") {
		t.Fatalf("description = %v", p.Description)
	}
	if p.ImageURL == nil || len(p.ImageURLs) != 1 || *p.ImageURL != p.ImageURLs[0] {
		t.Fatalf("images = %v / %v", p.ImageURL, p.ImageURLs)
	}
}
