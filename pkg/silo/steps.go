package silo

import (
	"context"
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/storacha/silo/pkg/admin"
	"github.com/storacha/silo/pkg/health"
	"github.com/storacha/silo/pkg/host"
	"github.com/storacha/silo/pkg/membership"
	"github.com/storacha/silo/pkg/storage"
	"github.com/storacha/silo/pkg/telemetry"
	"github.com/storacha/silo/pkg/transactions"
)

// Step names, in start order.
const (
	StepSupervisor       = "supervisor"
	StepTelemetry        = "telemetry"
	StepMembershipJoin   = "membership-join"
	StepTransactions     = "transactions"
	StepHealth           = "health"
	StepEndpoints        = "endpoints"
	StepMembershipActive = "membership-active"
)

// Step is one unit of startup. Stop runs only if Start succeeded.
type Step struct {
	Name  string
	Start func(ctx context.Context) error
	Stop  func(ctx context.Context) error
}

// StepNames lists the steps in start order.
func (s *Silo) StepNames() []string {
	names := make([]string, len(s.steps))
	for i, step := range s.steps {
		names[i] = step.Name
	}
	return names
}

func (s *Silo) buildSteps() []Step {
	steps := []Step{s.supervisorStep()}
	if s.features.Telemetry {
		steps = append(steps, s.telemetryStep())
	}
	steps = append(steps, s.joinStep())

	for _, b := range s.wirer.Bindings() {
		if b.Role == storage.RolePubSub && s.features.Transactions {
			// the coordinator starts right after its own binding
			steps = append(steps, s.transactionsStep())
		}
		steps = append(steps, s.storageStep(b))
	}

	if s.features.HealthCheck {
		steps = append(steps, s.healthStep())
	}
	return append(steps, s.endpointsStep(), s.activeStep())
}

// hook turns a step into a host hook that records the step in telemetry.
func (s *Silo) hook(step Step) host.Hook {
	return host.Hook{
		Name: step.Name,
		OnStart: func(ctx context.Context) error {
			started := time.Now()
			err := step.Start(ctx)
			if s.metrics != nil {
				if err != nil {
					s.metrics.StepFailed(ctx, step.Name)
				} else {
					s.metrics.StepStarted(ctx, step.Name, time.Since(started))
				}
			}
			if err == nil {
				log.Debugw("startup step done", "step", step.Name, "took", time.Since(started))
			}
			return err
		},
		OnStop: step.Stop,
	}
}

func (s *Silo) supervisorStep() Step {
	return Step{
		Name: StepSupervisor,
		Start: func(context.Context) error {
			log.Debug("unhandled fault hook registered")
			return nil
		},
		Stop: func(ctx context.Context) error {
			return s.supervisor.Stop(ctx)
		},
	}
}

func (s *Silo) telemetryStep() Step {
	return Step{
		Name: StepTelemetry,
		Start: func(ctx context.Context) error {
			tel, err := s.deps.OpenTelemetry(ctx, s.cfg, s.identity.ID())
			if err != nil {
				return err
			}
			metrics, err := telemetry.NewLifecycleMetrics(tel)
			if err != nil {
				_ = tel.Shutdown(ctx)
				return err
			}
			s.tel, s.metrics = tel, metrics
			s.metrics.RecordState(ctx, s.runner.State().String(), int64(s.runner.State()))
			return nil
		},
		Stop: func(ctx context.Context) error {
			tel := s.tel
			s.tel, s.metrics = nil, nil
			return tel.Shutdown(ctx)
		},
	}
}

func (s *Silo) joinStep() Step {
	return Step{
		Name: StepMembershipJoin,
		Start: func(ctx context.Context) error {
			dir, err := s.deps.OpenDirectory(ctx, s.conn, s.cfg.Storage.Pool)
			if err != nil {
				return &ClusterJoinError{ClusterID: s.identity.ClusterID, Stage: "directory", Cause: err}
			}
			member := membership.NewMember(dir, s.identity, membership.WithClock(s.deps.Clock))
			if err := member.Join(ctx); err != nil {
				_ = dir.Close()
				return &ClusterJoinError{ClusterID: s.identity.ClusterID, Stage: "join", Cause: err}
			}
			s.dir, s.member = dir, member

			hb := member.Heartbeater(s.cfg.Membership.HeartbeatInterval)
			s.stopHeartbeat = s.supervisor.Go("membership-heartbeat", hb.Run)
			return nil
		},
		Stop: func(ctx context.Context) error {
			s.stopHeartbeat()
			if err := s.member.SetStatus(ctx, membership.StatusDead); err != nil {
				// the directory expires silos that stop heartbeating
				log.Warnw("could not declare silo dead", "silo", s.identity.ID(), "error", err)
			}
			return s.dir.Close()
		},
	}
}

func (s *Silo) storageStep(b storage.Binding) Step {
	return Step{
		Name: b.StepName(),
		Start: func(ctx context.Context) error {
			if err := s.wirer.Open(ctx, b); err != nil {
				return &StorageBindingError{Binding: b, Cause: err}
			}
			return nil
		},
		Stop: func(context.Context) error {
			return s.wirer.Close(b)
		},
	}
}

func (s *Silo) transactionsStep() Step {
	return Step{
		Name: StepTransactions,
		Start: func(ctx context.Context) error {
			store := s.wirer.TransactionalState()
			if store == nil {
				return errors.New("transactional state store is not bound")
			}
			coordinator := transactions.NewCoordinator(store)
			if _, err := coordinator.Recover(ctx); err != nil {
				return err
			}
			s.coordinator = coordinator
			return nil
		},
		Stop: func(context.Context) error {
			s.coordinator.Stop()
			return nil
		},
	}
}

func (s *Silo) healthStep() Step {
	return Step{
		Name: StepHealth,
		Start: func(context.Context) error {
			addr := net.JoinHostPort(membership.ListenHost(s.cfg.Endpoints), strconv.Itoa(s.cfg.Health.Port))
			var extra []health.RouteRegistrar
			if s.cfg.Health.Admin {
				extra = append(extra, admin.RegisterRoutes)
			}
			srv := health.NewServer(s.checker, addr, extra...)
			if err := srv.Listen(); err != nil {
				return err
			}
			s.healthServer = srv
			s.stopHealth = s.supervisor.Go("health", func(context.Context) error {
				return srv.Serve()
			})
			return nil
		},
		Stop: func(ctx context.Context) error {
			err := s.healthServer.Shutdown(ctx)
			s.stopHealth()
			return err
		},
	}
}

func (s *Silo) endpointsStep() Step {
	return Step{
		Name: StepEndpoints,
		Start: func(context.Context) error {
			eps, err := membership.ListenEndpoints(s.cfg.Endpoints, s.deps.Listen)
			if err != nil {
				return &ClusterJoinError{ClusterID: s.identity.ClusterID, Stage: "endpoints", Cause: err}
			}
			s.endpoints = eps
			s.stopServe = s.supervisor.Go("endpoints", func(ctx context.Context) error {
				return eps.Serve(ctx, s.deps.SiloHandler, s.deps.GatewayHandler)
			})
			return nil
		},
		Stop: func(context.Context) error {
			s.stopServe()
			return s.endpoints.Close()
		},
	}
}

func (s *Silo) activeStep() Step {
	return Step{
		Name: StepMembershipActive,
		Start: func(ctx context.Context) error {
			if err := s.member.SetStatus(ctx, membership.StatusActive); err != nil {
				return &ClusterJoinError{ClusterID: s.identity.ClusterID, Stage: "activate", Cause: err}
			}
			log.Infow("silo is active", "silo", s.identity.String(),
				"silo_endpoint", s.endpoints.SiloAddr().String(),
				"gateway_endpoint", s.endpoints.GatewayAddr().String())
			return nil
		},
		Stop: func(ctx context.Context) error {
			if err := s.member.SetStatus(ctx, membership.StatusShuttingDown); err != nil {
				log.Warnw("could not announce shutdown", "silo", s.identity.ID(), "error", err)
			}
			return nil
		},
	}
}
