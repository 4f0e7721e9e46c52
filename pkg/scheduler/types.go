package scheduler

import (
	"time"

	"github.com/harrisonrobin/effitime/pkg/biorhythm"
	"github.com/harrisonrobin/effitime/pkg/interval"
	"github.com/harrisonrobin/effitime/pkg/model"
)

// Quality ranks how well a chosen slot matches the task's ideal time.
type Quality string

const (
	QualityOptimal    Quality = "optimal"
	QualityGood       Quality = "good"
	QualityAcceptable Quality = "acceptable"
	QualityPoor       Quality = "poor"
	QualityImpossible Quality = "impossible"
)

func qualityOf(p biorhythm.Priority) Quality {
	switch p {
	case biorhythm.Optimal:
		return QualityOptimal
	case biorhythm.Good:
		return QualityGood
	default:
		return QualityAcceptable
	}
}

// Energy is the energy level a task calls for.
type Energy string

const (
	EnergyHigh   Energy = "high"
	EnergyMedium Energy = "medium"
	EnergyLow    Energy = "low"
)

// Source tells where an outcome's slot came from.
type Source string

const (
	SourceOracle   Source = "oracle"
	SourceFallback Source = "fallback"
)

// CognitiveProfile is the oracle's reading of a task.
type CognitiveProfile struct {
	ConcentrationLevel      biorhythm.Level `json:"concentration_level"`
	Confidence              float64         `json:"confidence"`
	RecommendedBlockMinutes int             `json:"recommended_block_minutes"`
	PreferredEnergy         Energy          `json:"preferred_energy"`
	BestTimeOfDay           string          `json:"best_time_of_day"`
	Reason                  string          `json:"reason"`
	Actions                 []string        `json:"actions"`
}

// Block returns the recommended block as a duration.
func (p CognitiveProfile) Block() time.Duration {
	return time.Duration(p.RecommendedBlockMinutes) * time.Minute
}

type proposedSlot struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// Proposal is the decoded, still untrusted oracle answer.
type Proposal struct {
	CognitiveProfile
	Scheduling struct {
		IsScheduled bool          `json:"is_scheduled"`
		Slot        *proposedSlot `json:"slot"`
		Message     string        `json:"message"`
	} `json:"scheduling"`

	// Slot is Scheduling.Slot parsed by the response validators.
	Slot *interval.Interval `json:"-"`
}

// Request is a snapshot of everything needed to place one task.
type Request struct {
	TaskID      string
	UserID      string
	Title       string
	Description string // Quill HTML or plain text
	Tags        []string
	Estimate    string
	CreatedAt   time.Time
	Deadline    *time.Time

	Wake  biorhythm.Clock
	Sleep biorhythm.Clock
	// Busy are the user's other commitments. They need not be merged.
	Busy []interval.Interval
}

// RequestFor builds a Request from a stored task.
func RequestFor(t model.Task, wake, sleep biorhythm.Clock, busy []interval.Interval) Request {
	return Request{
		TaskID:      t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Tags:        t.Tags,
		Estimate:    t.Estimate,
		CreatedAt:   t.CreatedAt,
		Deadline:    t.Deadline,
		Wake:        wake,
		Sleep:       sleep,
		Busy:        busy,
	}
}

// Outcome is the locally verified scheduling result.
type Outcome struct {
	IsScheduled bool               `json:"is_scheduled"`
	Slot        *interval.Interval `json:"slot"`
	Quality     Quality            `json:"quality"`
	Message     string             `json:"message"`
	// DeadlineMet is nil when the task has no deadline.
	DeadlineMet       *bool             `json:"deadline_met"`
	Source            Source            `json:"source"`
	Period            string            `json:"peak_period,omitempty"`
	TimeUntilDeadline string            `json:"time_until_deadline,omitempty"`
	Profile           *CognitiveProfile `json:"cognitive_analysis,omitempty"`
	// Rejected explains why an oracle slot was replaced by the fallback.
	Rejected string `json:"rejected,omitempty"`
}

func boolPtr(b bool) *bool { return &b }
