package host

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.calls...)
}

func (r *recorder) hook(name string, startErr error) Hook {
	return Hook{
		Name: name,
		OnStart: func(context.Context) error {
			r.add("start " + name)
			return startErr
		},
		OnStop: func(context.Context) error {
			r.add("stop " + name)
			return nil
		},
	}
}

func newObservedRunner(hooks []Hook, opts ...Option) (*Runner, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	opts = append([]Option{WithLogger(zap.New(core)), WithSignals(syscall.SIGUSR1)}, opts...)
	return NewRunner(hooks, opts...), logs
}

func messages(logs *observer.ObservedLogs, lvl zapcore.Level) []string {
	var out []string
	for _, e := range logs.All() {
		if e.Level == lvl {
			out = append(out, e.Message)
		}
	}
	return out
}

func TestRunner_CleanStop(t *testing.T) {
	rec := &recorder{}
	runner, logs := newObservedRunner([]Hook{rec.hook("a", nil), rec.hook("b", nil)})

	var transitions []string
	runner.OnStateChange(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- runner.Run(ctx) }()

	require.Eventually(t, func() bool { return runner.State() == StateRunning }, 5*time.Second, time.Millisecond)
	cancel()

	assert.Equal(t, ExitOK, <-done)
	assert.Equal(t, StateStopped, runner.State())
	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, rec.get())
	assert.Equal(t, []string{
		"Created->Starting", "Starting->Running", "Running->Stopping", "Stopping->Stopped",
	}, transitions)

	info := messages(logs, zapcore.InfoLevel)
	assert.Contains(t, info, "Starting application")
	assert.Contains(t, info, "Stopped application")
	assert.Empty(t, messages(logs, zapcore.FatalLevel))
}

func TestRunner_StartFailure(t *testing.T) {
	rec := &recorder{}
	boom := errors.New("directory unreachable")
	runner, logs := newObservedRunner([]Hook{
		rec.hook("a", nil),
		rec.hook("b", boom),
		rec.hook("c", nil),
	})

	code := runner.Run(context.Background())

	assert.Equal(t, ExitFault, code)
	assert.Equal(t, StateFaulted, runner.State())
	assert.ErrorIs(t, runner.Err(), boom)
	assert.Equal(t, []string{"start a", "start b", "stop a"}, rec.get(), "only started steps are stopped, each once")

	fatal := logs.FilterLevelExact(zapcore.FatalLevel).All()
	require.Len(t, fatal, 1)
	assert.Contains(t, fatal[0].ContextMap()["error"], "directory unreachable")
	assert.NotContains(t, messages(logs, zapcore.InfoLevel), "Stopped application")
}

func TestRunner_PanicInHook(t *testing.T) {
	t.Run("start", func(t *testing.T) {
		rec := &recorder{}
		runner, logs := newObservedRunner([]Hook{
			rec.hook("a", nil),
			{
				Name:    "explodes",
				OnStart: func(context.Context) error { panic("kaboom") },
			},
		})

		assert.Equal(t, ExitFault, runner.Run(context.Background()))
		assert.Equal(t, StateFaulted, runner.State())
		assert.Equal(t, []string{"start a", "stop a"}, rec.get())

		var fault *Fault
		require.ErrorAs(t, runner.Err(), &fault)
		assert.Equal(t, "kaboom", fault.Panic)
		assert.Equal(t, "explodes start", fault.Task)

		fatal := logs.FilterLevelExact(zapcore.FatalLevel).All()
		require.Len(t, fatal, 1)
		assert.Contains(t, fatal[0].ContextMap()["error"], "kaboom")
	})

	t.Run("stop", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		runner, logs := newObservedRunner([]Hook{{
			Name:    "explodes",
			OnStart: func(context.Context) error { return nil },
			OnStop:  func(context.Context) error { panic("kaboom") },
		}})
		done := make(chan int, 1)
		go func() { done <- runner.Run(ctx) }()
		require.Eventually(t, func() bool { return runner.State() == StateRunning }, time.Second, time.Millisecond)
		cancel()

		assert.Equal(t, ExitFault, <-done)
		assert.Equal(t, StateFaulted, runner.State())

		var fault *Fault
		require.ErrorAs(t, runner.Err(), &fault)
		assert.Equal(t, "explodes stop", fault.Task)
		assert.Len(t, logs.FilterLevelExact(zapcore.FatalLevel).All(), 1)
	})
}

func TestRunner_BackgroundFault(t *testing.T) {
	rec := &recorder{}
	sup := NewSupervisor()
	hooks := []Hook{
		rec.hook("a", nil),
		{
			Name: "worker",
			OnStart: func(context.Context) error {
				sup.Go("worker", func(ctx context.Context) error {
					return errors.New("lost connection")
				})
				return nil
			},
		},
	}
	runner, logs := newObservedRunner(hooks, WithSupervisor(sup))

	code := runner.Run(context.Background())

	assert.Equal(t, ExitFault, code)
	assert.Equal(t, []string{"start a", "stop a"}, rec.get())

	var fault *Fault
	require.ErrorAs(t, sup.Err(), &fault)
	assert.Equal(t, "worker", fault.Task)

	fatal := logs.FilterLevelExact(zapcore.FatalLevel).All()
	require.Len(t, fatal, 1)
	assert.Contains(t, fatal[0].ContextMap()["error"], "lost connection")
}

func TestRunner_Signal(t *testing.T) {
	runner, _ := newObservedRunner(nil)
	done := make(chan int, 1)
	go func() { done <- runner.Run(context.Background()) }()

	require.Eventually(t, func() bool { return runner.State() == StateRunning }, 5*time.Second, time.Millisecond)
	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case code := <-done:
		assert.Equal(t, ExitOK, code)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop on signal")
	}
}

func TestRunner_StopTimeout(t *testing.T) {
	runner, logs := newObservedRunner([]Hook{{
		Name: "slow",
		OnStop: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}}, WithStopTimeout(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan int, 1)
	go func() { done <- runner.Run(ctx) }()
	require.Eventually(t, func() bool { return runner.State() == StateRunning }, 5*time.Second, time.Millisecond)
	cancel()

	assert.Equal(t, ExitFault, <-done)
	assert.Len(t, logs.FilterLevelExact(zapcore.FatalLevel).All(), 1)
}

func TestRunner_HooksOnLifecycle(t *testing.T) {
	rec := &recorder{}
	runner := NewRunner([]Hook{rec.hook("a", nil), rec.hook("b", nil)})

	lc := fxtest.NewLifecycle(t)
	runner.appendHooks(lc)
	lc.RequireStart().RequireStop()

	assert.Equal(t, []string{"start a", "start b", "stop b", "stop a"}, rec.get())
}

func TestAbort(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)

	code := Abort(zap.New(core), errors.New("storage connection string is required"))

	assert.Equal(t, ExitFault, code)
	fatal := logs.FilterLevelExact(zapcore.FatalLevel).All()
	require.Len(t, fatal, 1)
	assert.Equal(t, "Host terminated unexpectedly", fatal[0].Message)
}

func TestRunner_StartTimeout(t *testing.T) {
	rec := &recorder{}
	runner, logs := newObservedRunner([]Hook{
		rec.hook("a", nil),
		{
			Name: "hangs",
			OnStart: func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			},
		},
	}, WithStartTimeout(20*time.Millisecond))

	assert.Equal(t, ExitFault, runner.Run(context.Background()))
	assert.Equal(t, StateFaulted, runner.State())
	assert.Error(t, runner.Err())
	assert.Equal(t, "start a", rec.get()[0])
	assert.Len(t, logs.FilterLevelExact(zapcore.FatalLevel).All(), 1)
}
