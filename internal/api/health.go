package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// BrokerStatus is implemented by event publishers that hold a live
// connection.
type BrokerStatus interface {
	Healthy() bool
}

var errBrokerClosed = errors.New("broker connection closed")

// dependency is one thing readiness looks at. A nil probe means the
// dependency is not configured and standIn is reported instead.
type dependency struct {
	name     string
	critical bool
	standIn  string
	probe    func(ctx context.Context) error
}

type HealthHandler struct {
	deps    []dependency
	env     string
	version string
}

// NewHealthHandler builds the health endpoints. A nil pool, client or broker
// means the in-memory store, the local locker or the no-op publisher is in use.
func NewHealthHandler(pgPool *pgxpool.Pool, rdb *redis.Client, broker BrokerStatus, env, version string) *HealthHandler {
	pg := dependency{name: "postgres", critical: true, standIn: "memory"}
	if pgPool != nil {
		pg.probe = pgPool.Ping
	}

	rd := dependency{name: "redis", standIn: "local"}
	if rdb != nil {
		rd.probe = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	mq := dependency{name: "rabbitmq", standIn: "disabled"}
	if broker != nil {
		mq.probe = func(context.Context) error {
			if !broker.Healthy() {
				return errBrokerClosed
			}
			return nil
		}
	}

	return &HealthHandler{
		deps:    []dependency{pg, rd, mq},
		env:     env,
		version: version,
	}
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

// Readiness fails when a critical dependency is down and degrades otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	deps := make(map[string]string, len(h.deps))

	for _, d := range h.deps {
		if d.probe == nil {
			deps[d.name] = d.standIn
			continue
		}

		probeCtx, probeCancel := context.WithTimeout(ctx, time.Second)
		err := d.probe(probeCtx)
		probeCancel()

		if err == nil {
			deps[d.name] = "ok"
			continue
		}
		deps[d.name] = "down"
		switch {
		case d.critical:
			status = "error"
		case status == "ok":
			status = "degraded"
		}
	}

	httpStatus := http.StatusOK
	if status == "error" {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, ReadinessResponse{
		Status:       status,
		Version:      h.version,
		Env:          h.env,
		Dependencies: deps,
	})
}
