package research

import "time"

// Subtask is one independently researchable unit of a plan.
type Subtask struct {
	ID          string `json:"id" jsonschema_description:"Short identifier for the subtask (e.g. 'A', 'history', 'drivers')."`
	Title       string `json:"title" jsonschema_description:"Short descriptive title of the subtask."`
	Description string `json:"description" jsonschema_description:"Clear, detailed instructions for the sub-agent that will research this subtask."`
}

// SubtaskList is the splitter's structured output.
type SubtaskList struct {
	Subtasks []Subtask `json:"subtasks" jsonschema_description:"List of subtasks that together cover the whole research plan."`
}

// SharedContext is what every worker of a run sees besides its own subtask.
type SharedContext struct {
	Query string
	Plan  string
}

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// WorkerOutcome is the settled result of one subtask. Payload is the markdown
// report on success and a non-empty error description on failure.
type WorkerOutcome struct {
	SubtaskID string `json:"subtask_id"`
	Title     string `json:"title"`
	Status    Status `json:"status"`
	Payload   string `json:"payload"`
}

func (o WorkerOutcome) Failed() bool { return o.Status == StatusFailed }

// ReportBundle holds exactly one outcome per subtask, sorted by SubtaskID.
type ReportBundle []WorkerOutcome

// Failed returns the failed outcomes in bundle order.
func (b ReportBundle) Failed() []WorkerOutcome {
	var out []WorkerOutcome
	for _, o := range b {
		if o.Failed() {
			out = append(out, o)
		}
	}
	return out
}

// Stage is the state of a run.
type Stage string

const (
	StagePlanning     Stage = "planning"
	StageSplitting    Stage = "splitting"
	StageFanningOut   Stage = "fanning_out"
	StageSynthesizing Stage = "synthesizing"
	StageDone         Stage = "done"
	StageFailed       Stage = "failed"
)

// Result is everything a completed run produced.
type Result struct {
	RunID      string       `json:"run_id"`
	Query      string       `json:"query"`
	Plan       string       `json:"plan"`
	Subtasks   []Subtask    `json:"subtasks"`
	Bundle     ReportBundle `json:"bundle"`
	Report     string       `json:"report"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// Observer receives progress of a run. WorkerSettled is called from worker
// goroutines, so implementations must be safe for concurrent use.
type Observer interface {
	StageChanged(runID string, stage Stage)
	PlanChunk(runID string, chunk string)
	SubtasksReady(runID string, subtasks []Subtask)
	WorkerSettled(runID string, outcome WorkerOutcome)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) StageChanged(string, Stage)          {}
func (NopObserver) PlanChunk(string, string)            {}
func (NopObserver) SubtasksReady(string, []Subtask)     {}
func (NopObserver) WorkerSettled(string, WorkerOutcome) {}
