// seedstock loads initial stock through the engine so every load is
// recorded in the movement log.
//
// Usage: seedstock SKU=QTY [SKU=QTY ...]
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"stockreserve/internal/config"
	"stockreserve/internal/infra"
	"stockreserve/internal/repository"
	"stockreserve/internal/service"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: seedstock SKU=QTY [SKU=QTY ...]")
		os.Exit(2)
	}
	items, err := parseArgs(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("bad arguments")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL, infra.PoolConfig{MaxOpenConns: 2, MaxIdleConns: 1})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	svc := service.NewReservationService(service.ReservationDeps{
		Tx:           repository.NewTransactor(db),
		Stock:        repository.NewStockRepository(db),
		Reservations: repository.NewReservationRepository(db),
		Movements:    repository.NewStockMovementRepository(db),
	})

	ctx := context.Background()
	for _, it := range items {
		resp, err := svc.LoadStock(ctx, it.sku, it.qty)
		if err != nil {
			log.Fatal().Err(err).Str("sku", it.sku).Msg("load failed")
		}
		fmt.Printf("%s\t%d\n", resp.SKU, resp.Available)
	}
}

type seedItem struct {
	sku string
	qty int
}

func parseArgs(args []string) ([]seedItem, error) {
	out := make([]seedItem, 0, len(args))
	for _, a := range args {
		sku, raw, ok := strings.Cut(a, "=")
		if !ok || strings.TrimSpace(sku) == "" {
			return nil, fmt.Errorf("%q: want SKU=QTY", a)
		}
		qty, err := strconv.Atoi(raw)
		if err != nil || qty <= 0 {
			return nil, fmt.Errorf("%q: quantity must be a positive integer", a)
		}
		out = append(out, seedItem{sku: strings.TrimSpace(sku), qty: qty})
	}
	return out, nil
}
