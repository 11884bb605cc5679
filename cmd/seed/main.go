package main

import (
	"context"
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/petssecrets/veterinaria-core/internal/auth"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/config"
	"github.com/petssecrets/veterinaria-core/internal/db"
	"github.com/petssecrets/veterinaria-core/internal/seed"
	"github.com/petssecrets/veterinaria-core/internal/storage/postgres"
)

type seedConfig struct {
	Locations     int `envconfig:"LOCATIONS" default:"3"`
	Users         int `envconfig:"USERS" default:"1000"`
	PetsPerUser   int `envconfig:"PETS_PER_USER" default:"2"`
	AdoptablePets int `envconfig:"ADOPTABLE_PETS" default:"100"`
	BatchSize     int `envconfig:"BATCH_SIZE" default:"500"`
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	var sc seedConfig
	if err := envconfig.Process("SEED", &sc); err != nil {
		log.Fatalf("read SEED_* settings: %v", err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(connectCtx, cfg)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	ctx := context.Background()
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	opts := seed.DefaultOptions()
	opts.Locations = sc.Locations
	opts.Users = sc.Users
	opts.PetsPerUser = sc.PetsPerUser
	opts.AdoptablePets = sc.AdoptablePets
	opts.BatchSize = sc.BatchSize

	start := time.Now()
	res, err := seed.Run(ctx, postgres.New(pool).Clinic(), opts)
	if err != nil {
		log.Fatalf("seed: %v", err)
	}
	log.Printf("seed complete in %s: users=%d adoptable=%d", time.Since(start).Round(time.Millisecond), len(res.UserIDs), len(res.Adoptable))

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	admin, err := tokens.Issue(auth.Actor{UserID: res.AdminID, Role: clinic.RoleAdmin})
	if err != nil {
		log.Fatalf("issue admin token: %v", err)
	}
	log.Printf("admin_id=%s token=%s", res.AdminID, admin)

	if len(res.UserIDs) > 0 {
		userID := res.UserIDs[0]
		user, err := tokens.Issue(auth.Actor{UserID: userID, Role: clinic.RoleUser})
		if err != nil {
			log.Fatalf("issue user token: %v", err)
		}
		log.Printf("sample user_id=%s pets=%v token=%s", userID, res.OwnedPets[userID], user)
	}
}
