package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"terrenos/internal/adapters/observability"
	"terrenos/internal/app"
	"terrenos/internal/domain"
	"terrenos/internal/shared"
	mysqlrepo "terrenos/internal/storage/mysql"
)

// Bulk spreadsheet importer: every *.csv in the given directory (default
// ./import) is normalized and batch-inserted into the catalog.
func main() {
	ctx := context.Background()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	dir := "import"
	if len(os.Args) > 1 {
		dir = os.Args[1]
	}
	log.Info().Str("dir", dir).Int("workers", cfg.Workers).Msg("importer starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	// no cache in the CLI path; the API repopulates on next read
	catalog := app.NewCatalogService(repo, nil, 0)

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", dir).Msg("read import dir failed")
	}

	sem := semaphore.NewWeighted(int64(cfg.Workers))
	var wg sync.WaitGroup

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".csv" {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			defer sem.Release(1)

			f, err := os.Open(path)
			if err != nil {
				log.Warn().Str("file", path).Err(err).Msg("open failed")
				return
			}
			defer f.Close()

			count, err := catalog.ImportCSV(ctx, f)
			if errors.Is(err, domain.ErrNoValidRows) {
				log.Warn().Str("file", path).Msg("no valid rows")
				return
			}
			if err != nil {
				log.Warn().Str("file", path).Err(err).Msg("import failed")
				return
			}
			log.Info().Str("file", path).Int("rows", count).Msg("import ok")
		}(path)
	}

	wg.Wait()
	log.Info().Msg("import completed")
}
