package silo

import (
	"context"
	"net"
	"os"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/zap"

	"github.com/storacha/silo/pkg/config/app"
	"github.com/storacha/silo/pkg/database"
	"github.com/storacha/silo/pkg/health"
	"github.com/storacha/silo/pkg/host"
	"github.com/storacha/silo/pkg/membership"
	"github.com/storacha/silo/pkg/storage"
	"github.com/storacha/silo/pkg/telemetry"
	"github.com/storacha/silo/pkg/transactions"
)

var log = logging.Logger("silo")

// DirectoryOpener connects to the membership directory.
type DirectoryOpener func(ctx context.Context, conn database.ConnectionString, pool app.PoolConfig) (membership.Directory, error)

// TelemetryOpener builds the exporters of the telemetry step.
type TelemetryOpener func(ctx context.Context, cfg app.AppConfig, instanceID string) (*telemetry.Telemetry, error)

// Dependencies are the outside resources of a silo. Zero fields are resolved
// from the configuration.
type Dependencies struct {
	OpenDirectory DirectoryOpener
	Storage       storage.Opener
	OpenTelemetry TelemetryOpener
	Listen        membership.ListenFunc
	// Handlers own the connections accepted on the endpoints. Without an
	// actor runtime attached connections are closed.
	SiloHandler    membership.ConnHandler
	GatewayHandler membership.ConnHandler
	Clock          func() time.Time
	Logger         *zap.Logger
	Signals        []os.Signal
}

func (d Dependencies) withDefaults(conn database.ConnectionString, cfg app.AppConfig) Dependencies {
	if d.OpenDirectory == nil {
		d.OpenDirectory = func(ctx context.Context, conn database.ConnectionString, pool app.PoolConfig) (membership.Directory, error) {
			return membership.OpenDirectory(ctx, conn, pool)
		}
	}
	if d.Storage == nil {
		d.Storage = storage.NewConnectionOpener(conn, cfg.Storage.Pool)
	}
	if d.OpenTelemetry == nil {
		d.OpenTelemetry = func(ctx context.Context, cfg app.AppConfig, instanceID string) (*telemetry.Telemetry, error) {
			return telemetry.Setup(ctx, cfg, instanceID)
		}
	}
	if d.Listen == nil {
		d.Listen = net.Listen
	}
	if d.SiloHandler == nil {
		d.SiloHandler = membership.RejectConn
	}
	if d.GatewayHandler == nil {
		d.GatewayHandler = membership.RejectConn
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

// Silo is one process of the cluster: it joins the membership directory,
// binds its storage roles and opens its endpoints, in that order.
type Silo struct {
	cfg        app.AppConfig
	conn       database.ConnectionString
	deps       Dependencies
	features   Features
	identity   membership.SiloIdentity
	wirer      *storage.Wirer
	checker    *health.Checker
	supervisor *host.Supervisor
	steps      []Step
	runner     *host.Runner

	// set while starting
	dir           membership.Directory
	member        *membership.Member
	stopHeartbeat func()
	coordinator   *transactions.Coordinator
	healthServer  *health.Server
	stopHealth    func()
	endpoints     *membership.Endpoints
	stopServe     func()
	tel           *telemetry.Telemetry
	metrics       *telemetry.LifecycleMetrics
}

// New validates cfg and lays out the startup steps. Nothing is contacted
// until Run.
func New(cfg app.AppConfig, deps Dependencies) (*Silo, error) {
	conn, err := validate(cfg)
	if err != nil {
		return nil, err
	}
	deps = deps.withDefaults(conn, cfg)

	s := &Silo{
		cfg:        cfg,
		conn:       conn,
		deps:       deps,
		features:   FeaturesFromConfig(cfg.Features),
		identity:   membership.NewSiloIdentity(cfg, deps.Clock()),
		supervisor: host.NewSupervisor(),
	}
	s.wirer = storage.NewWirer(deps.Storage, cfg.Cluster.ServiceID, cfg.Streams.ProviderName, s.features.Transactions)
	s.checker = health.NewChecker(s.identity.ID())
	s.steps = s.buildSteps()

	hooks := make([]host.Hook, 0, len(s.steps))
	for _, step := range s.steps {
		hooks = append(hooks, s.hook(step))
	}
	opts := []host.Option{host.WithSupervisor(s.supervisor)}
	if cfg.Host.ShutdownTimeout > 0 {
		opts = append(opts, host.WithStopTimeout(cfg.Host.ShutdownTimeout))
	}
	if deps.Logger != nil {
		opts = append(opts, host.WithLogger(deps.Logger))
	}
	if len(deps.Signals) > 0 {
		opts = append(opts, host.WithSignals(deps.Signals...))
	}
	s.runner = host.NewRunner(hooks, opts...)
	s.runner.OnStateChange(s.stateChanged)

	log.Infow("silo configured", "silo", s.identity.String(), "store", conn.String(), "steps", s.StepNames())
	return s, nil
}

// Run starts the silo and blocks until ctx ends, a stop signal arrives or
// the silo faults. It returns the process exit code.
func (s *Silo) Run(ctx context.Context) int {
	return s.runner.Run(ctx)
}

// Run builds and runs a silo. Invalid configuration is reported like any
// other fault: one fatal entry and exit code 1.
func Run(ctx context.Context, cfg app.AppConfig, deps Dependencies) int {
	s, err := New(cfg, deps)
	if err != nil {
		logger := deps.Logger
		if logger == nil {
			logger = logging.Logger("host").Desugar()
		}
		return host.Abort(logger, err)
	}
	return s.Run(ctx)
}

func (s *Silo) stateChanged(_, to host.State) {
	s.checker.SetState(to.String(), to == host.StateRunning)
	if s.metrics != nil {
		s.metrics.RecordState(context.Background(), to.String(), int64(to))
	}
}

func (s *Silo) Identity() membership.SiloIdentity {
	return s.identity
}

func (s *Silo) Features() Features {
	return s.features
}

func (s *Silo) State() host.State {
	return s.runner.State()
}

// Err is the cause of the fault that ended Run, nil after a clean stop.
func (s *Silo) Err() error {
	return s.runner.Err()
}

// Storage gives access to the bound storage roles once the silo is running.
func (s *Silo) Storage() *storage.Wirer {
	return s.wirer
}

// Transactions is the coordinator, nil when transactions are disabled or
// before the transactions step ran.
func (s *Silo) Transactions() *transactions.Coordinator {
	return s.coordinator
}

// Endpoints are the bound silo and gateway listeners, nil before the endpoints step ran.
func (s *Silo) Endpoints() *membership.Endpoints {
	return s.endpoints
}

func (s *Silo) Health() *health.Checker {
	return s.checker
}
