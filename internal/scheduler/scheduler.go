// Package scheduler implements the experiment daemon (spec.md §4.7): it
// resolves the experiment directory, freezes config.yaml, runs a bounded
// worker pool of conversation engines, keeps manifest.json authoritative
// via atomic rewrites, and handles SIGTERM/SIGINT with a grace period,
// mirroring the teacher's Kafka worker-pool-over-channel pattern in
// cmd/orchestrator/main.go and internal/orchestrator/kafka.go.
package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"pidgin/internal/config"
	"pidgin/internal/engine"
	"pidgin/internal/eventlog"
	"pidgin/internal/eventmirror"
	"pidgin/internal/paths"
	"pidgin/internal/ratelimit"
)

// DefaultGracePeriod is how long the scheduler waits for in-flight
// conversations to emit conversation_ended(interrupted) after a cancellation
// signal before giving up and exiting anyway (spec.md §4.7 item 4).
const DefaultGracePeriod = 10 * time.Second

// Manifest statuses (spec.md §6.2; "created"/"running" are scheduler-owned
// transient states not named in the schema table but required by item 1).
const (
	StatusCreated               = "created"
	StatusRunning               = "running"
	StatusCompleted             = "completed"
	StatusCompletedWithFailures = "completed_with_failures"
	StatusFailed                = "failed"
	StatusInterrupted           = "interrupted"
)

// Clock lets tests substitute a deterministic now().
type Clock func() time.Time

// Deps bundles the collaborators shared across every conversation in the
// experiment: the provider registry and rate limiter are process-wide
// singletons, constructed once by the daemon entrypoint.
type Deps struct {
	Providers   engine.ProviderResolver
	Limiter     *ratelimit.Limiter
	OutputDir   string // override for paths.OutputDir; "" uses default resolution
	GracePeriod time.Duration
	Clock       Clock
	// Mirror is optional. When set, terminal experiment and conversation
	// events are best-effort republished to it (internal/eventmirror); a
	// publish failure is logged and otherwise has no effect on the run.
	Mirror *eventmirror.Mirror
}

// Scheduler runs one experiment to completion, interruption, or failure.
type Scheduler struct {
	experimentID string
	cfg          config.ExperimentConfig
	deps         Deps
}

// New prepares a Scheduler for one experiment run. It does not touch the
// filesystem; call Run to create the experiment directory and start work.
func New(experimentID string, cfg config.ExperimentConfig, deps Deps) *Scheduler {
	if deps.GracePeriod <= 0 {
		deps.GracePeriod = DefaultGracePeriod
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Scheduler{experimentID: experimentID, cfg: cfg, deps: deps}
}

// conversationOutcome is what a worker reports back after running one
// conversation task to completion, failure, or interruption.
type conversationOutcome struct {
	result engine.Result
	err    error
}

// Run resolves the experiment directory, freezes the config snapshot,
// drives repetitions conversations through a worker pool of size
// max_parallel, and returns the final manifest once every task has
// terminated or the grace period following ctx cancellation has elapsed
// (spec.md §4.7).
func (s *Scheduler) Run(ctx context.Context) (eventlog.Manifest, error) {
	now := s.deps.Clock()

	convDir := paths.ExperimentConversationsDir(s.deps.OutputDir, s.experimentID)
	if err := paths.EnsureDir(convDir); err != nil {
		return eventlog.Manifest{}, fmt.Errorf("scheduler: create experiment dir: %w", err)
	}

	digest, err := s.writeConfigSnapshot()
	if err != nil {
		return eventlog.Manifest{}, err
	}

	manifestPath := paths.ManifestPath(s.deps.OutputDir, s.experimentID)
	pidPath := paths.DaemonPIDPath(s.deps.OutputDir, s.experimentID)

	manifest := eventlog.Manifest{
		ExperimentID:       s.experimentID,
		Name:               s.cfg.Name,
		Status:             StatusCreated,
		TotalConversations: s.cfg.Repetitions,
		CreatedAt:          now.UTC(),
		ConfigDigest:       digest,
	}
	if err := eventlog.WriteManifest(manifestPath, manifest); err != nil {
		return eventlog.Manifest{}, fmt.Errorf("scheduler: write initial manifest: %w", err)
	}
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())), 0o644); err != nil {
		return eventlog.Manifest{}, fmt.Errorf("scheduler: write daemon.pid: %w", err)
	}
	defer os.Remove(pidPath)

	expWriter, err := eventlog.OpenWriter(paths.ExperimentEventLogPath(s.deps.OutputDir, s.experimentID))
	if err != nil {
		return eventlog.Manifest{}, fmt.Errorf("scheduler: open experiment event log: %w", err)
	}
	defer expWriter.Close()

	startedAt := now.UTC()
	manifest.Status = StatusRunning
	manifest.StartedAt = &startedAt
	startedEvent := eventlog.New(now, eventlog.TypeExperimentStarted, map[string]any{
		"experiment_id": s.experimentID,
		"total":         s.cfg.Repetitions,
	})
	_ = expWriter.Append(startedEvent)
	s.mirror(ctx, startedEvent)
	if err := eventlog.WriteManifest(manifestPath, manifest); err != nil {
		return eventlog.Manifest{}, fmt.Errorf("scheduler: write running manifest: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-ctx.Done()
		cancel()
	}()

	completed, failed, interrupted := s.runWorkerPool(ctx, runCtx)

	manifest.CompletedConversations = completed
	manifest.FailedConversations = failed
	endedAt := s.deps.Clock().UTC()
	manifest.EndedAt = &endedAt

	switch {
	case ctx.Err() != nil || interrupted > 0:
		manifest.Status = StatusInterrupted
	case failed > 0:
		manifest.Status = StatusCompletedWithFailures
	default:
		manifest.Status = StatusCompleted
	}

	endedEvent := eventlog.New(endedAt, eventlog.TypeExperimentEnded, map[string]any{
		"experiment_id": s.experimentID,
		"status":        manifest.Status,
		"completed":     completed,
		"failed":        failed,
	})
	_ = expWriter.Append(endedEvent)
	s.mirror(ctx, endedEvent)
	if err := eventlog.WriteManifest(manifestPath, manifest); err != nil {
		return manifest, fmt.Errorf("scheduler: write final manifest: %w", err)
	}
	log.Info().Str("experiment_id", s.experimentID).Str("status", manifest.Status).
		Int("completed", completed).Int("failed", failed).Msg("experiment finished")
	return manifest, nil
}

// runWorkerPool enqueues one task per repetition onto a bounded pool of
// max_parallel workers (teacher pattern: jobs channel + sync.WaitGroup,
// internal/orchestrator/kafka.go::StartKafkaConsumer). Outcomes are tallied
// as they arrive; once callerCtx is cancelled a one-shot grace-period timer
// starts, and if it fires before every task has reported in, the remaining
// tasks are counted as interrupted without further waiting so the daemon
// can still exit within its bounded grace window (spec.md §4.7 item 4).
func (s *Scheduler) runWorkerPool(callerCtx, runCtx context.Context) (completed, failed, interrupted int) {
	jobs := make(chan int, s.cfg.Repetitions)
	for i := 0; i < s.cfg.Repetitions; i++ {
		jobs <- i
	}
	close(jobs)

	outcomes := make(chan conversationOutcome, s.cfg.Repetitions)

	var wg sync.WaitGroup
	workers := s.cfg.MaxParallel
	if workers > s.cfg.Repetitions {
		workers = s.cfg.Repetitions
	}
	if workers < 1 {
		workers = 1
	}

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for range jobs {
				outcomes <- s.runOne(runCtx)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(outcomes)
	}()

	remaining := s.cfg.Repetitions
	var graceTimer <-chan time.Time
	for remaining > 0 {
		select {
		case o, ok := <-outcomes:
			if !ok {
				return
			}
			remaining--
			switch {
			case o.result.Status == engine.StatusInterrupted:
				interrupted++
			case o.err != nil || o.result.Status == engine.StatusFailed:
				failed++
			default:
				completed++
			}
		case <-callerCtx.Done():
			if graceTimer == nil {
				t := time.NewTimer(s.deps.GracePeriod)
				defer t.Stop()
				graceTimer = t.C
			}
		case <-graceTimer:
			interrupted += remaining
			return
		}
	}
	return
}

// runOne creates one conversation's directory, wires its Engine, and drives
// it to TERMINATED (spec.md §4.7 item 3).
func (s *Scheduler) runOne(ctx context.Context) conversationOutcome {
	conversationID := newConversationID()
	convDir := paths.ConversationDir(s.deps.OutputDir, s.experimentID, conversationID)
	if err := paths.EnsureDir(convDir); err != nil {
		return conversationOutcome{err: fmt.Errorf("scheduler: create conversation dir: %w", err)}
	}

	writer, err := eventlog.OpenWriter(paths.EventLogPath(s.deps.OutputDir, s.experimentID, conversationID))
	if err != nil {
		return conversationOutcome{err: fmt.Errorf("scheduler: open conversation event log: %w", err)}
	}
	defer writer.Close()

	eng, err := engine.New(s.experimentID, s.cfg, engine.Deps{
		Providers:      s.deps.Providers,
		Limiter:        s.deps.Limiter,
		Writer:         writer,
		StatePath:      paths.StatePath(s.deps.OutputDir, s.experimentID, conversationID),
		Clock:          engine.Clock(s.deps.Clock),
		ConversationID: conversationID,
	})
	if err != nil {
		return conversationOutcome{err: fmt.Errorf("scheduler: construct engine: %w", err)}
	}

	result, err := eng.Run(ctx)
	s.mirror(ctx, eventlog.New(s.deps.Clock(), eventlog.TypeConversationEnded, map[string]any{
		"conversation_id": conversationID,
		"status":          result.Status,
		"reason":          result.Reason,
		"total_turns":     result.TotalTurns,
	}))
	return conversationOutcome{result: result, err: err}
}

// mirror best-effort republishes ev if a Mirror is configured. Failures are
// logged, never surfaced: the JSONL ledger already has the event.
func (s *Scheduler) mirror(ctx context.Context, ev eventlog.Event) {
	if s.deps.Mirror == nil {
		return
	}
	if err := s.deps.Mirror.Publish(ctx, s.experimentID, ev); err != nil {
		log.Warn().Err(err).Str("experiment_id", s.experimentID).Str("event_type", ev.Type).
			Msg("event mirror publish failed")
	}
}

func newConversationID() string { return uuid.NewString() }

// writeConfigSnapshot freezes cfg to config.yaml and returns its sha256
// digest for the manifest's config_digest field.
func (s *Scheduler) writeConfigSnapshot() (string, error) {
	b, err := yaml.Marshal(s.cfg)
	if err != nil {
		return "", fmt.Errorf("scheduler: marshal config snapshot: %w", err)
	}
	path := paths.ConfigPath(s.deps.OutputDir, s.experimentID)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("scheduler: write config.yaml: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
