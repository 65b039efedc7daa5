package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafka "github.com/segmentio/kafka-go"

	"pidgin/internal/config"
	"pidgin/internal/eventlog"
	"pidgin/internal/eventmirror"
	"pidgin/internal/paths"
	"pidgin/internal/provideradapter"
	testadapter "pidgin/internal/provideradapter/test"
	"pidgin/internal/ratelimit"
)

type fakeMirrorWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (f *fakeMirrorWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeMirrorWriter) Close() error { return nil }

type fakeResolver struct {
	byModel map[string]provideradapter.Provider
}

func (f fakeResolver) ForModel(model string) (provideradapter.Provider, error) {
	p, ok := f.byModel[model]
	if !ok {
		return nil, errors.New("no provider for model " + model)
	}
	return p, nil
}

func testResolver() fakeResolver {
	return fakeResolver{byModel: map[string]provideradapter.Provider{
		"test": testadapter.NewProvider(),
	}}
}

func testDeps(t *testing.T, outputDir string) Deps {
	t.Helper()
	rlCfg := config.DefaultRateLimiting()
	rlCfg.Enabled = false
	return Deps{
		Providers: testResolver(),
		Limiter:   ratelimit.New(rlCfg, nil),
		OutputDir: outputDir,
	}
}

func baseConfig(t *testing.T, repetitions, maxParallel int) config.ExperimentConfig {
	t.Helper()
	cfg, err := config.Resolve(config.ExperimentConfig{
		Name:        "scheduler test",
		AgentAModel: "test",
		AgentBModel: "test",
		MaxTurns:    2,
		Repetitions: repetitions,
		MaxParallel: maxParallel,
	})
	require.NoError(t, err)
	return cfg
}

func TestRun_WritesManifestConfigAndDeletesPID(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, 3, 2)
	sched := New("exp-1", cfg, testDeps(t, dir))

	manifest, err := sched.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, manifest.Status)
	assert.Equal(t, 3, manifest.TotalConversations)
	assert.Equal(t, 3, manifest.CompletedConversations)
	assert.Equal(t, 0, manifest.FailedConversations)
	assert.NotEmpty(t, manifest.ConfigDigest)

	_, err = os.Stat(paths.ConfigPath(dir, "exp-1"))
	assert.NoError(t, err)

	_, err = os.Stat(paths.DaemonPIDPath(dir, "exp-1"))
	assert.True(t, os.IsNotExist(err), "daemon.pid must be removed after a normal exit")

	onDisk, err := eventlog.ReadManifest(paths.ManifestPath(dir, "exp-1"))
	require.NoError(t, err)
	assert.Equal(t, manifest.Status, onDisk.Status)
}

func TestRun_CreatesOneConversationDirPerRepetition(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, 4, 2)
	sched := New("exp-2", cfg, testDeps(t, dir))

	_, err := sched.Run(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(paths.ExperimentConversationsDir(dir, "exp-2"))
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestRun_BoundsConcurrencyToMaxParallel(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, 6, 2)
	sched := New("exp-3", cfg, testDeps(t, dir))

	_, err := sched.Run(context.Background())
	require.NoError(t, err)

	// The test provider answers instantly, so this only exercises that
	// bounded concurrency doesn't deadlock or drop tasks, not real overlap.
	entries, err := os.ReadDir(paths.ExperimentConversationsDir(dir, "exp-3"))
	require.NoError(t, err)
	assert.Len(t, entries, 6)
}

func TestRun_CancelledContextProducesInterruptedManifest(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, 5, 1)
	sched := New("exp-4", cfg, testDeps(t, dir))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	manifest, err := sched.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusInterrupted, manifest.Status)

	_, err = os.Stat(paths.DaemonPIDPath(dir, "exp-4"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_GracePeriodBoundsWaitForHungTask(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, 1, 1)
	deps := testDeps(t, dir)
	deps.GracePeriod = 30 * time.Millisecond
	deps.Providers = fakeResolver{byModel: map[string]provideradapter.Provider{
		"test": hangingProvider{},
	}}
	sched := New("exp-5", cfg, deps)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	var manifest eventlog.Manifest
	go func() {
		m, err := sched.Run(ctx)
		require.NoError(t, err)
		manifest = m
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return within the grace period")
	}
	assert.Equal(t, StatusInterrupted, manifest.Status)
}

func TestRun_WritesExperimentEventLog(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, 1, 1)
	sched := New("exp-6", cfg, testDeps(t, dir))

	_, err := sched.Run(context.Background())
	require.NoError(t, err)

	events, err := eventlog.ReadAll(paths.ExperimentEventLogPath(dir, "exp-6"))
	require.NoError(t, err)

	var sawStart, sawEnd bool
	for _, e := range events {
		switch e.Type {
		case eventlog.TypeExperimentStarted:
			sawStart = true
		case eventlog.TypeExperimentEnded:
			sawEnd = true
		}
	}
	assert.True(t, sawStart)
	assert.True(t, sawEnd)
}

func TestRun_MirrorsExperimentAndConversationEventsWhenConfigured(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig(t, 2, 2)
	deps := testDeps(t, dir)
	fw := &fakeMirrorWriter{}
	deps.Mirror = eventmirror.New(fw, "pidgin.events")
	sched := New("exp-7", cfg, deps)

	_, err := sched.Run(context.Background())
	require.NoError(t, err)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	require.GreaterOrEqual(t, len(fw.msgs), 4) // started + ended + 2 conversation_ended
	for _, m := range fw.msgs {
		assert.Equal(t, "pidgin.events", m.Topic)
		assert.Equal(t, "exp-7", string(m.Key))
	}
}

// hangingProvider never returns, simulating a conversation that ignores
// cancellation so the grace-period watchdog has something to bound.
type hangingProvider struct{}

func (hangingProvider) Name() string { return "test" }

func (hangingProvider) Chat(ctx context.Context, req provideradapter.ChatRequest) (provideradapter.ChatResponse, error) {
	<-ctx.Done()
	<-make(chan struct{}) // block forever even after ctx is cancelled
	return provideradapter.ChatResponse{}, nil
}

func (hangingProvider) ChatStream(ctx context.Context, req provideradapter.ChatRequest) (<-chan provideradapter.StreamDelta, <-chan error) {
	deltas := make(chan provideradapter.StreamDelta)
	errs := make(chan error, 1)
	go func() {
		defer close(deltas)
		defer close(errs)
		<-ctx.Done()
		<-make(chan struct{}) // block forever even after ctx is cancelled
	}()
	return deltas, errs
}
