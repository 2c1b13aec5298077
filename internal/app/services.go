package app

import (
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/mohamedS2020/lifetag/internal/config"
	"github.com/mohamedS2020/lifetag/internal/lifetag/service"
)

// Services are the domain services built over Stores.
type Services struct {
	Gate      *service.AccessGate
	Sessions  *service.SessionRegistry
	Profiles  *service.ProfileRegistry
	Audit     *service.AuditRecorder
	Retention *service.RetentionManager
}

// Observers receive gate and retention events.  Nil fields are no-ops.
type Observers struct {
	Gate      service.GateObserver
	Retention service.RetentionObserver
}

func NewServices(cfg *config.Config, st *Stores, obs Observers, clock clockwork.Clock, logger *slog.Logger) *Services {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	gate := service.NewAccessGate(st.KV, service.GateConfig{
		Window:      cfg.Gate.AccessWindow,
		MaxAttempts: cfg.Gate.MaxAttempts,
		Clock:       clock,
		Observer:    obs.Gate,
	})

	return &Services{
		Gate:     gate,
		Sessions: service.NewSessionRegistry(gate, cfg.Gate.SessionTTL, clock),
		Profiles: service.NewProfileRegistry(st.Profiles, cfg.Gate.BcryptCost, clock),
		Audit:    service.NewAuditRecorder(st.Audit, cfg.Audit.AccessorKey, clock, logger),
		Retention: service.NewRetentionManager(st.Audit, st.Runs, service.RetentionConfig{
			Policy: service.RetentionPolicy{
				RetentionDays:     cfg.Retention.Days,
				MaxLogsPerProfile: cfg.Retention.MaxLogsPerProfile,
				BatchSize:         cfg.Retention.BatchSize,
			},
			Clock:    clock,
			Observer: obs.Retention,
			Logger:   logger,
		}),
	}
}
