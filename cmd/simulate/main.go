package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/petssecrets/veterinaria-core/internal/auth"
	"github.com/petssecrets/veterinaria-core/internal/config"
	"github.com/petssecrets/veterinaria-core/internal/db"
)

type SimConfig struct {
	APIBaseURL     string        `envconfig:"API_BASE_URL" default:"http://localhost:8080"`
	Duration       time.Duration `envconfig:"DURATION" default:"30s"`
	Workers        int           `envconfig:"WORKERS" default:"10"`
	BookingRatio   float64       `envconfig:"BOOKING_RATIO" default:"0.4"`
	MutateRatio    float64       `envconfig:"MUTATE_RATIO" default:"0.15"`
	AdoptionRatio  float64       `envconfig:"ADOPTION_RATIO" default:"0.15"`
	ReadRatio      float64       `envconfig:"READ_RATIO" default:"0.3"`
	OwnerLimit     int           `envconfig:"OWNER_LIMIT" default:"500"`
	AdoptableLimit int           `envconfig:"ADOPTABLE_LIMIT" default:"100"`
	SlotDays       int           `envconfig:"SLOT_DAYS" default:"2"`    // booking window, starting tomorrow
	SlotsPerDay    int           `envconfig:"SLOTS_PER_DAY" default:"8"` // half-hour slots from 09:00

	PostgresDSN string         `ignored:"true"`
	Location    *time.Location `ignored:"true"`
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg, err := loadConfig(baseCfg)
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f mutate=%.2f adoption=%.2f read=%.2f",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.MutateRatio, cfg.AdoptionRatio, cfg.ReadRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, baseCfg)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	tokens := auth.NewTokens(baseCfg.JWTSecret, cfg.Duration+time.Hour)
	dataPool, err := loadDataPool(ctx, pgPool, tokens, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}

	log.Printf("loaded: %d owners, %d locations, %d services, %d adoptable pets",
		len(dataPool.Owners), len(dataPool.Locations), len(dataPool.Services), len(dataPool.Adoptable))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	sim.Run()
	sim.PrintReport()

	verifyCtx, cancelVerify := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelVerify()
	if !printVerification(verifyCtx, pgPool) {
		os.Exit(1)
	}
}

func loadConfig(base config.Config) (SimConfig, error) {
	var cfg SimConfig
	if err := envconfig.Process("SIM", &cfg); err != nil {
		return cfg, err
	}
	cfg.PostgresDSN = base.PostgresDSN
	cfg.Location = base.Location

	if cfg.PostgresDSN == "" {
		return cfg, errors.New("POSTGRES_DSN is required (set in .env or environment)")
	}
	if cfg.Workers <= 0 {
		return cfg, errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return cfg, errors.New("SIM_DURATION must be > 0")
	}
	if cfg.SlotDays <= 0 || cfg.SlotsPerDay <= 0 {
		return cfg, errors.New("SIM_SLOT_DAYS and SIM_SLOTS_PER_DAY must be > 0")
	}

	total := cfg.BookingRatio + cfg.MutateRatio + cfg.AdoptionRatio + cfg.ReadRatio
	if total <= 0 {
		return cfg, errors.New("at least one SIM_*_RATIO must be > 0")
	}
	cfg.BookingRatio /= total
	cfg.MutateRatio /= total
	cfg.AdoptionRatio /= total
	cfg.ReadRatio /= total

	return cfg, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.MutateRatio:
			if rng.Intn(2) == 0 {
				s.doCancel(ctx, rng)
			} else {
				s.doReschedule(ctx, rng)
			}
		case r < s.config.BookingRatio+s.config.MutateRatio+s.config.AdoptionRatio:
			if rng.Intn(3) == 0 {
				s.doReview(ctx, rng)
			} else {
				s.doAdoption(ctx, rng)
			}
		default:
			switch rng.Intn(3) {
			case 0:
				s.doListMine(ctx, rng)
			case 1:
				s.doAvailability(ctx, rng)
			case 2:
				s.doCanAdopt(ctx, rng)
			}
		}
	}
}
