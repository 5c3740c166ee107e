package jobs

import (
	"context"
	"time"
)

// JobState represents the current state of a job
type JobState string

const (
	JobStateStarted     JobState = "started"
	JobStateRunning     JobState = "running"
	JobStateCompleted   JobState = "completed"
	JobStateCompensated JobState = "compensated"
)

// IsFinal reports whether the job has stopped running
func (s JobState) IsFinal() bool {
	return s == JobStateCompleted || s == JobStateCompensated
}

// StepState represents the state of an individual step
type StepState string

const (
	StepStatePending     StepState = "pending"
	StepStateRunning     StepState = "running"
	StepStateCompleted   StepState = "completed"
	StepStateFailed      StepState = "failed"
	StepStateCompensated StepState = "compensated"
)

// JobID uniquely identifies a job instance
type JobID string

// StepID uniquely identifies a step within a job
type StepID string

// Data holds the values steps pass to each other. Steps of one job run
// sequentially and own the map while they run.
type Data map[string]interface{}

func (d Data) clone() Data {
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// StepResult represents the result of a step execution
type StepResult struct {
	Success bool
	Data    interface{}
	Error   error
}

// Succeeded returns a successful StepResult carrying data
func Succeeded(data interface{}) StepResult {
	return StepResult{Success: true, Data: data}
}

// Failed returns a failed StepResult
func Failed(err error) StepResult {
	return StepResult{Error: err}
}

// Step represents a single step in a job
type Step interface {
	ID() StepID
	Execute(ctx context.Context, data Data) StepResult
	// Compensate undoes a completed step after a later step failed
	Compensate(ctx context.Context, data Data) error
}

// Definition defines the steps and flow of a job
type Definition interface {
	ID() string
	Steps() []Step
	Timeout() time.Duration
}

// Job represents a running or finished instance of a definition
type Job struct {
	ID          JobID           `json:"id"`
	Definition  string          `json:"definition"`
	State       JobState        `json:"state"`
	Data        Data            `json:"-"`
	Steps       []StepExecution `json:"steps"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Error       string          `json:"error,omitempty"`
}

func (j *Job) snapshot() *Job {
	out := *j
	out.Data = j.Data.clone()
	out.Steps = make([]StepExecution, len(j.Steps))
	copy(out.Steps, j.Steps)
	return &out
}

// StepExecution represents the execution state of a step
type StepExecution struct {
	ID          StepID      `json:"id"`
	State       StepState   `json:"state"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Error       string      `json:"error,omitempty"`
	Result      interface{} `json:"result,omitempty"`
}

// Event represents an event in the job lifecycle
type Event struct {
	JobID     JobID       `json:"job_id"`
	StepID    StepID      `json:"step_id,omitempty"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Event types
const (
	EventJobStarted      = "job_started"
	EventJobCompleted    = "job_completed"
	EventJobCompensated  = "job_compensated"
	EventStepStarted     = "step_started"
	EventStepCompleted   = "step_completed"
	EventStepFailed      = "step_failed"
	EventStepCompensated = "step_compensated"
)
