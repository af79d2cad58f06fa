// Command reprice recomputes the cached minimum price of every listing.
package main

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_listing/internal/adapters/observability"
	redisad "hotel_listing/internal/adapters/redis"
	"hotel_listing/internal/app"
	"hotel_listing/internal/domain"
	"hotel_listing/internal/shared"
	mysqlrepo "hotel_listing/internal/storage/mysql"
)

func main() {
	ctx := context.Background()
	cfg := shared.Load()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)
	observability.SetLevel(cfg.LogLevel)

	log.Info().Int("workers", cfg.RepriceWorkers).Msg("reprice starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		cache = rc
	}

	failed, err := run(ctx, app.NewRoomService(repo, repo, cache), repo, cfg.RepriceWorkers)
	if err != nil {
		log.Fatal().Err(err).Msg("reprice aborted")
	}
	log.Info().Int64("failed", failed).Msg("reprice completed")
}

func run(ctx context.Context, rooms *app.RoomService, listings domain.ListingRepository, workers int) (int64, error) {
	ids, err := listings.ListListingIDs(ctx)
	if err != nil {
		return 0, err
	}

	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg     sync.WaitGroup
		failed atomic.Int64
	)
	for _, id := range ids {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			wg.Wait()
			return failed.Load(), err
		}

		wg.Add(1)
		go func(listingID int64) {
			defer wg.Done()
			defer sem.Release(1)

			if err := rooms.RefreshMinPrice(ctx, listingID); err != nil {
				failed.Add(1)
				log.Warn().Int64("id", listingID).Err(err).Msg("reprice failed")
				return
			}
			log.Debug().Int64("id", listingID).Msg("reprice ok")
		}(id)
	}

	wg.Wait()
	return failed.Load(), nil
}
