package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log = logging.Logger("host")

// Exit codes returned by Run.
const (
	ExitOK    = 0
	ExitFault = 1
)

const (
	DefaultStartTimeout = time.Minute
	DefaultStopTimeout  = 30 * time.Second
)

// Hook is one step of the host. OnStart hooks run in order, OnStop hooks of
// started steps run in reverse order. A failing OnStart stops the steps that
// already started.
type Hook struct {
	Name    string
	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// Runner drives the host through its lifecycle and maps the outcome to an exit code.
type Runner struct {
	hooks        []Hook
	logger       *zap.Logger
	startTimeout time.Duration
	stopTimeout  time.Duration
	signals      []os.Signal
	supervisor   *Supervisor

	state     atomic.Int32
	mu        sync.Mutex
	observers []func(from, to State)
	cause     error
}

type Option func(*Runner)

// WithLogger replaces the host subsystem logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

func WithStartTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.startTimeout = d
	}
}

// WithStopTimeout bounds how long stopping, including draining, may take.
func WithStopTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.stopTimeout = d
	}
}

// WithSignals sets the signals that stop the host, SIGINT and SIGTERM by default.
func WithSignals(sigs ...os.Signal) Option {
	return func(r *Runner) {
		r.signals = sigs
	}
}

// WithSupervisor sets the supervisor whose faults stop the host.
func WithSupervisor(s *Supervisor) Option {
	return func(r *Runner) {
		r.supervisor = s
	}
}

func NewRunner(hooks []Hook, opts ...Option) *Runner {
	r := &Runner{
		hooks:        hooks,
		logger:       log.Desugar(),
		startTimeout: DefaultStartTimeout,
		stopTimeout:  DefaultStopTimeout,
		signals:      []os.Signal{os.Interrupt, syscall.SIGTERM},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.supervisor == nil {
		r.supervisor = NewSupervisor()
	}
	// a fatal entry must not exit the process before resources are released
	r.logger = r.logger.WithOptions(zap.WithFatalHook(noExit{}))
	return r
}

func (r *Runner) State() State {
	return State(r.state.Load())
}

// Err is the cause of a fault, nil after a clean stop or before Run returns.
func (r *Runner) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cause
}

func (r *Runner) Supervisor() *Supervisor {
	return r.supervisor
}

// OnStateChange registers fn to be called after every transition.
func (r *Runner) OnStateChange(fn func(from, to State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, fn)
}

func (r *Runner) transition(to State) {
	from := State(r.state.Load())
	if !validTransition(from, to) {
		r.logger.Warn("ignoring invalid host state transition", zap.Stringer("from", from), zap.Stringer("to", to))
		return
	}
	r.state.Store(int32(to))
	r.logger.Debug("host state changed", zap.Stringer("from", from), zap.Stringer("to", to))

	r.mu.Lock()
	observers := append([]func(from, to State){}, r.observers...)
	r.mu.Unlock()
	for _, fn := range observers {
		fn(from, to)
	}
}

// Run starts every hook, waits for ctx to end, a stop signal or a fault,
// then stops. It returns ExitOK after a clean stop and ExitFault after a
// single fatal log entry otherwise. The logger is flushed on every path.
func (r *Runner) Run(ctx context.Context) (code int) {
	defer func() {
		// stderr returns EINVAL on sync on some platforms, nothing to do about it
		_ = r.logger.Sync()
	}()
	defer func() {
		if p := recover(); p != nil {
			code = r.fail(&Fault{Task: "host", Panic: p, Err: fmt.Errorf("panic: %v", p)})
		}
	}()

	r.logger.Info("Starting application")
	r.transition(StateStarting)

	app := fx.New(
		fx.RecoverFromPanics(),
		fx.WithLogger(func() fxevent.Logger {
			el := &fxevent.ZapLogger{Logger: r.logger}
			el.UseLogLevel(zapcore.DebugLevel)
			return el
		}),
		fx.StartTimeout(r.startTimeout),
		fx.StopTimeout(r.stopTimeout),
		fx.Invoke(r.appendHooks),
	)
	if err := app.Err(); err != nil {
		return r.fail(fmt.Errorf("building host: %w", err))
	}

	startCtx, cancelStart := context.WithTimeout(ctx, r.startTimeout)
	err := app.Start(startCtx)
	cancelStart()
	if err != nil {
		// fx stops the hooks that already started before returning
		return r.fail(err)
	}
	r.transition(StateRunning)

	sigCtx, stopSignals := signal.NotifyContext(ctx, r.signals...)
	defer stopSignals()
	select {
	case <-sigCtx.Done():
		r.logger.Info("Application is shutting down")
	case <-r.supervisor.Faulted():
		r.logger.Error("Application faulted, shutting down", zap.Error(r.supervisor.Err()))
	}

	r.transition(StateStopping)
	stopCtx, cancelStop := context.WithTimeout(context.Background(), r.stopTimeout)
	defer cancelStop()
	stopErr := errors.Join(app.Stop(stopCtx), r.supervisor.Stop(stopCtx))

	if fault := r.supervisor.Err(); fault != nil {
		return r.fail(errors.Join(fault, stopErr))
	}
	if stopErr != nil {
		return r.fail(fmt.Errorf("stopping host: %w", stopErr))
	}

	r.transition(StateStopped)
	r.logger.Info("Stopped application")
	return ExitOK
}

func (r *Runner) appendHooks(lc fx.Lifecycle) {
	for _, h := range r.hooks {
		lc.Append(fx.Hook{
			OnStart: r.wrap(h.Name, "start", h.OnStart),
			OnStop:  r.wrap(h.Name, "stop", h.OnStop),
		})
	}
}

func (r *Runner) wrap(name, phase string, fn func(context.Context) error) func(context.Context) error {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context) (err error) {
		// fx calls hooks on its own goroutine, a panic there would not reach Run
		defer func() {
			if p := recover(); p != nil {
				err = &Fault{Task: name + " " + phase, Panic: p, Err: fmt.Errorf("panic: %v", p)}
			}
		}()
		r.logger.Debug("running lifecycle hook", zap.String("step", name), zap.String("phase", phase))
		if err := fn(ctx); err != nil {
			return fmt.Errorf("%s %s: %w", name, phase, err)
		}
		return nil
	}
}

func (r *Runner) fail(cause error) int {
	r.mu.Lock()
	r.cause = cause
	r.mu.Unlock()
	r.transition(StateFaulted)
	return Abort(r.logger, cause)
}

// Abort writes the single fatal entry of a host that cannot continue and
// returns ExitFault. It is used directly when the host fails before Run, for
// instance on invalid configuration.
func Abort(logger *zap.Logger, cause error) int {
	logger = logger.WithOptions(zap.WithFatalHook(noExit{}))
	logger.Fatal("Host terminated unexpectedly", zap.Error(cause))
	_ = logger.Sync()
	return ExitFault
}

// noExit keeps zap from terminating the process on Fatal, the caller returns
// the exit code instead.
type noExit struct{}

func (noExit) OnWrite(*zapcore.CheckedEntry, []zapcore.Field) {}
