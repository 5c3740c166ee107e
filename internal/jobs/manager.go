package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"
)

var (
	ErrDefinitionNotFound = errors.New("job definition not found")
	ErrJobNotFound        = errors.New("job not found")
)

const defaultEventBuffer = 100

// Manager runs job definitions step by step in the background and keeps
// their state in memory
type Manager struct {
	logger      *zap.Logger
	jobs        map[JobID]*Job
	done        map[JobID]chan struct{}
	definitions map[string]Definition
	eventChan   chan Event
	mu          sync.RWMutex
}

// NewManager creates a new job manager
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		logger:      logger,
		jobs:        make(map[JobID]*Job),
		done:        make(map[JobID]chan struct{}),
		definitions: make(map[string]Definition),
		eventChan:   make(chan Event, defaultEventBuffer),
	}
}

// RegisterDefinition registers a job definition
func (m *Manager) RegisterDefinition(def Definition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.definitions[def.ID()] = def
	m.logger.Info("Job definition registered", zap.String("id", def.ID()))
}

// Start starts a new job. The job keeps running after ctx is cancelled;
// only the values carried by ctx are inherited.
func (m *Manager) Start(ctx context.Context, definitionID string, data Data) (JobID, error) {
	m.mu.Lock()
	def, exists := m.definitions[definitionID]
	if !exists {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDefinitionNotFound, definitionID)
	}

	jobID := JobID(xid.New().String())

	steps := def.Steps()
	stepExecs := make([]StepExecution, len(steps))
	for i, step := range steps {
		stepExecs[i] = StepExecution{
			ID:    step.ID(),
			State: StepStatePending,
		}
	}

	if data == nil {
		data = Data{}
	}
	job := &Job{
		ID:         jobID,
		Definition: definitionID,
		State:      JobStateStarted,
		Data:       data.clone(),
		Steps:      stepExecs,
		StartedAt:  time.Now(),
	}

	done := make(chan struct{})
	m.jobs[jobID] = job
	m.done[jobID] = done
	m.mu.Unlock()

	m.emitEvent(Event{
		JobID:     jobID,
		Type:      EventJobStarted,
		Timestamp: job.StartedAt,
	})

	go m.execute(context.WithoutCancel(ctx), jobID, def, steps, data.clone(), done)

	m.logger.Info("Job started", zap.String("jobID", string(jobID)), zap.String("definition", definitionID))
	return jobID, nil
}

// Get returns a snapshot of a job
func (m *Manager) Get(jobID JobID) (*Job, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, exists := m.jobs[jobID]
	if !exists {
		return nil, false
	}
	return job.snapshot(), true
}

// Wait blocks until the job finishes or ctx is done and returns its final
// snapshot
func (m *Manager) Wait(ctx context.Context, jobID JobID) (*Job, error) {
	m.mu.RLock()
	done, exists := m.done[jobID]
	m.mu.RUnlock()
	if !exists {
		return nil, ErrJobNotFound
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	job, ok := m.Get(jobID)
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Prune forgets finished jobs that completed before cutoff and returns how
// many were removed
func (m *Manager) Prune(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, job := range m.jobs {
		if job.State.IsFinal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.jobs, id)
			delete(m.done, id)
			removed++
		}
	}
	return removed
}

// execute runs a job's steps. data is owned by this goroutine; the stored
// job gets a copy after every step.
func (m *Manager) execute(ctx context.Context, jobID JobID, def Definition, steps []Step, data Data, done chan<- struct{}) {
	defer close(done)
	m.updateJobState(jobID, JobStateRunning)

	ctx, cancel := context.WithTimeout(ctx, def.Timeout())
	defer cancel()

	lastCompletedStep := -1
	var failure error

	for i, step := range steps {
		err := m.executeStep(ctx, jobID, i, step, data)
		m.setJobData(jobID, data)
		if err != nil {
			m.logger.Error("Step failed",
				zap.String("jobID", string(jobID)),
				zap.String("stepID", string(step.ID())),
				zap.Error(err))
			failure = err
			break
		}
		lastCompletedStep = i
	}

	if failure != nil {
		m.logger.Info("Starting compensation", zap.String("jobID", string(jobID)))
		m.compensate(ctx, jobID, steps, lastCompletedStep, data, failure)
	} else {
		m.complete(jobID)
	}
}

func (m *Manager) executeStep(ctx context.Context, jobID JobID, stepIndex int, step Step, data Data) error {
	now := time.Now()
	m.updateStep(jobID, stepIndex, func(s *StepExecution) {
		s.State = StepStateRunning
		s.StartedAt = &now
	})

	m.emitEvent(Event{
		JobID:     jobID,
		StepID:    step.ID(),
		Type:      EventStepStarted,
		Timestamp: now,
	})

	result := step.Execute(ctx, data)
	if result.Success && ctx.Err() != nil {
		result = Failed(fmt.Errorf("step finished after deadline: %w", ctx.Err()))
	}

	finished := time.Now()
	if result.Success {
		m.updateStep(jobID, stepIndex, func(s *StepExecution) {
			s.State = StepStateCompleted
			s.CompletedAt = &finished
			s.Result = result.Data
		})

		m.emitEvent(Event{
			JobID:     jobID,
			StepID:    step.ID(),
			Type:      EventStepCompleted,
			Timestamp: finished,
			Data:      result.Data,
		})

		m.logger.Info("Step completed",
			zap.String("jobID", string(jobID)),
			zap.String("stepID", string(step.ID())),
			zap.Duration("duration", finished.Sub(now)))
		return nil
	}

	if result.Error == nil {
		result.Error = errors.New("step failed without an error")
	}

	m.updateStep(jobID, stepIndex, func(s *StepExecution) {
		s.State = StepStateFailed
		s.CompletedAt = &finished
		s.Error = result.Error.Error()
	})

	m.emitEvent(Event{
		JobID:     jobID,
		StepID:    step.ID(),
		Type:      EventStepFailed,
		Timestamp: finished,
		Data:      result.Error.Error(),
	})

	return result.Error
}

// compensate runs compensation for completed steps in reverse order
func (m *Manager) compensate(ctx context.Context, jobID JobID, steps []Step, lastCompletedStep int, data Data, cause error) {
	// Compensation must run even when the failure was the job deadline.
	ctx = context.WithoutCancel(ctx)

	for i := lastCompletedStep; i >= 0; i-- {
		step := steps[i]

		m.logger.Info("Compensating step",
			zap.String("jobID", string(jobID)),
			zap.String("stepID", string(step.ID())))

		if err := step.Compensate(ctx, data); err != nil {
			m.logger.Error("Compensation failed",
				zap.String("jobID", string(jobID)),
				zap.String("stepID", string(step.ID())),
				zap.Error(err))
			continue
		}

		m.updateStep(jobID, i, func(s *StepExecution) {
			s.State = StepStateCompensated
		})

		m.emitEvent(Event{
			JobID:     jobID,
			StepID:    step.ID(),
			Type:      EventStepCompensated,
			Timestamp: time.Now(),
		})
	}
	m.setJobData(jobID, data)

	now := time.Now()
	m.mu.Lock()
	if job, exists := m.jobs[jobID]; exists {
		job.State = JobStateCompensated
		job.CompletedAt = &now
		job.Error = cause.Error()
	}
	m.mu.Unlock()

	m.emitEvent(Event{
		JobID:     jobID,
		Type:      EventJobCompensated,
		Timestamp: now,
		Data:      cause.Error(),
	})

	m.logger.Info("Job compensated", zap.String("jobID", string(jobID)))
}

// complete marks a job as completed
func (m *Manager) complete(jobID JobID) {
	now := time.Now()
	m.mu.Lock()
	if job, exists := m.jobs[jobID]; exists {
		job.State = JobStateCompleted
		job.CompletedAt = &now
	}
	m.mu.Unlock()

	m.emitEvent(Event{
		JobID:     jobID,
		Type:      EventJobCompleted,
		Timestamp: now,
	})

	m.logger.Info("Job completed", zap.String("jobID", string(jobID)))
}

func (m *Manager) updateJobState(jobID JobID, state JobState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, exists := m.jobs[jobID]; exists {
		job.State = state
	}
}

func (m *Manager) updateStep(jobID JobID, stepIndex int, update func(*StepExecution)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, exists := m.jobs[jobID]; exists && stepIndex < len(job.Steps) {
		update(&job.Steps[stepIndex])
	}
}

func (m *Manager) setJobData(jobID JobID, data Data) {
	snapshot := data.clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, exists := m.jobs[jobID]; exists {
		job.Data = snapshot
	}
}

func (m *Manager) emitEvent(event Event) {
	select {
	case m.eventChan <- event:
	default:
		m.logger.Warn("Event channel full, dropping event", zap.String("type", event.Type))
	}
}

// Events returns the channel job lifecycle events are published on. Events
// are dropped while the channel is full.
func (m *Manager) Events() <-chan Event {
	return m.eventChan
}
