package explore

import "time"

type Phase string

const (
	PhaseFirstPage   Phase = "first_page"
	PhaseLinkScoring Phase = "link_scoring"
	PhaseBatchLoop   Phase = "batch_loop"
	PhaseCompile     Phase = "compile"
)

type EventKind string

const (
	EventPhaseEntered   EventKind = "phase_entered"
	EventPageExplored   EventKind = "page_explored"
	EventPageFailed     EventKind = "page_failed"
	EventLinksGrouped   EventKind = "links_grouped"
	EventLinkScored     EventKind = "link_scored"
	EventLinksRanked    EventKind = "links_ranked"
	EventBatchStarted   EventKind = "batch_started"
	EventBatchCompleted EventKind = "batch_completed"
	EventStopCondition  EventKind = "stop_condition"
	EventNotification   EventKind = "notification"
	EventRunCompleted   EventKind = "run_completed"
)

// Event is a structured diagnostic emitted while a run progresses.
// Observers must not block; the controller calls them inline.
type Event struct {
	Kind          EventKind `json:"kind"`
	Phase         Phase     `json:"phase"`
	URL           string    `json:"url,omitempty"`
	Score         float64   `json:"score,omitempty"`
	Confidence    float64   `json:"confidence,omitempty"`
	SatisfiesGoal bool      `json:"satisfies_goal,omitempty"`
	DataType      DataType  `json:"data_type,omitempty"`
	Batch         int       `json:"batch,omitempty"`
	Pages         int       `json:"pages,omitempty"`
	Count         int       `json:"count,omitempty"`
	High          int       `json:"high,omitempty"`
	Medium        int       `json:"medium,omitempty"`
	Low           int       `json:"low,omitempty"`
	Message       string    `json:"message,omitempty"`
	Error         string    `json:"error,omitempty"`
	At            time.Time `json:"at"`
}
