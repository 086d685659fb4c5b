package domain

import "time"

// OutcomeStatus is the per-pair result of a run.
type OutcomeStatus string

const (
	OutcomePlaced  OutcomeStatus = "placed"
	OutcomeSkipped OutcomeStatus = "skipped"
	OutcomeFailed  OutcomeStatus = "failed"
)

// PairOutcome is what happened to one pair in one run.
type PairOutcome struct {
	ProductID string        `json:"product_id"`
	Status    OutcomeStatus `json:"status"`
	Sizing    *SizingResult `json:"sizing,omitempty"`
	Order     *OrderResult  `json:"order,omitempty"`
	Kind      string        `json:"kind,omitempty"`   // ErrorKind of Err
	Reason    string        `json:"reason,omitempty"` // Err rendered for humans
	Err       error         `json:"-"`
}

// NewFailedOutcome builds a failed outcome from err.
func NewFailedOutcome(productID string, sizing *SizingResult, err error) PairOutcome {
	return PairOutcome{
		ProductID: productID,
		Status:    OutcomeFailed,
		Sizing:    sizing,
		Kind:      ErrorKind(err),
		Reason:    err.Error(),
		Err:       err,
	}
}

// NewSkippedOutcome builds a skipped outcome from the skip reason.
func NewSkippedOutcome(productID string, sizing *SizingResult, reason error) PairOutcome {
	return PairOutcome{
		ProductID: productID,
		Status:    OutcomeSkipped,
		Sizing:    sizing,
		Kind:      ErrorKind(reason),
		Reason:    reason.Error(),
		Err:       reason,
	}
}

// RunReport collects the outcomes of one invocation.
type RunReport struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DryRun     bool          `json:"dry_run"`
	Outcomes   []PairOutcome `json:"outcomes"`
}

// Counts returns the number of outcomes per status.
func (r RunReport) Counts() map[OutcomeStatus]int {
	out := map[OutcomeStatus]int{
		OutcomePlaced:  0,
		OutcomeSkipped: 0,
		OutcomeFailed:  0,
	}
	for _, o := range r.Outcomes {
		out[o.Status]++
	}
	return out
}

// Failed reports whether any pair ended in OutcomeFailed.
func (r RunReport) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Status == OutcomeFailed {
			return true
		}
	}
	return false
}

// Duration is the wall-clock time the run took.
func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
