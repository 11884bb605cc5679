package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/petssecrets/veterinaria-core/internal/adoption"
	"github.com/petssecrets/veterinaria-core/internal/api"
	"github.com/petssecrets/veterinaria-core/internal/appointment"
	"github.com/petssecrets/veterinaria-core/internal/auth"
	"github.com/petssecrets/veterinaria-core/internal/clinic"
	"github.com/petssecrets/veterinaria-core/internal/config"
	"github.com/petssecrets/veterinaria-core/internal/db"
	"github.com/petssecrets/veterinaria-core/internal/events"
	redisclient "github.com/petssecrets/veterinaria-core/internal/redis"
	"github.com/petssecrets/veterinaria-core/internal/seed"
	"github.com/petssecrets/veterinaria-core/internal/storage/memory"
	"github.com/petssecrets/veterinaria-core/internal/storage/postgres"
)

var version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("api-server starting up")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	log.Printf("running in env=%s http_port=%s timezone=%s", cfg.Env, cfg.HTTPPort, cfg.ClinicTimezone)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)

	var (
		pgPool    *pgxpool.Pool
		apptRepo  appointment.Repository
		adoptRepo adoption.Repository
	)
	if cfg.PostgresDSN != "" {
		pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
		pgPool, err = db.ConnectPostgres(pgCtx, cfg)
		cancelPg()
		if err != nil {
			log.Fatalf("postgres connection error: %v", err)
		}
		defer pgPool.Close()
		log.Println("connected to Postgres")

		if cfg.AutoMigrate {
			if err := db.Migrate(rootCtx, pgPool); err != nil {
				log.Fatalf("migrate: %v", err)
			}
			log.Println("schema applied")
		}

		store := postgres.New(pgPool)
		apptRepo, adoptRepo = store.Appointments(), store.Adoptions()
	} else {
		log.Println("POSTGRES_DSN not set, using in-memory store with sample data")

		store := memory.New()
		res, err := seed.Run(rootCtx, store.Clinic(), seed.DefaultOptions())
		if err != nil {
			log.Fatalf("seed memory store: %v", err)
		}
		logDevTokens(tokens, res)

		apptRepo, adoptRepo = store.Appointments(), store.Adoptions()
	}

	var (
		rdb    *redis.Client
		locker redisclient.Locker
	)
	if cfg.RedisAddr != "" {
		rdb, err = redisclient.NewRedisClient(rootCtx, cfg)
		if err != nil {
			log.Fatalf("redis connection error: %v", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Printf("error closing redis: %v", err)
			}
		}()
		locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
		log.Println("connected to Redis")
	} else {
		locker = redisclient.NewLocalLocker()
		log.Println("REDIS_ADDR not set, using in-process slot locks")
	}

	var broker api.BrokerStatus
	publisher := events.Nop()
	if cfg.RabbitURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			log.Fatalf("rabbitmq connection error: %v", err)
		}
		defer func() {
			if err := amqpPub.Close(); err != nil {
				log.Printf("error closing rabbitmq: %v", err)
			}
		}()
		publisher, broker = amqpPub, amqpPub
		log.Printf("publishing events to exchange=%s", cfg.RabbitExchange)
	}

	router := api.NewRouter(api.RouterConfig{
		Appointments: appointment.NewService(apptRepo, locker, publisher, cfg),
		Adoptions:    adoption.NewService(adoptRepo, publisher),
		Tokens:       tokens,
		PgPool:       pgPool,
		Redis:        rdb,
		Broker:       broker,
		Env:          cfg.Env,
		Version:      version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-rootCtx.Done()
	log.Println("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func logDevTokens(tokens *auth.Tokens, res *seed.Result) {
	admin, err := tokens.Issue(auth.Actor{UserID: res.AdminID, Role: clinic.RoleAdmin})
	if err != nil {
		log.Printf("issue admin token: %v", err)
		return
	}
	log.Printf("dev admin token: %s", admin)

	if len(res.UserIDs) == 0 {
		return
	}
	userID := res.UserIDs[0]
	user, err := tokens.Issue(auth.Actor{UserID: userID, Role: clinic.RoleUser})
	if err != nil {
		log.Printf("issue user token: %v", err)
		return
	}
	log.Printf("dev user token: %s (user_id=%s pets=%v)", user, userID, res.OwnedPets[userID])
}
