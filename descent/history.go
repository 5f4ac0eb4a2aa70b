package descent

import (
	"errors"
	"fmt"
)

// ErrOutOfOrder is returned when a record does not continue the history.
var ErrOutOfOrder = errors.New("step record out of order")

// StepRecord is one completed gradient descent step.
type StepRecord struct {
	Step     int
	A        float64
	MSE      float64
	Gradient float64
}

// History is an append-only log of step records where record i has Step i.
type History struct {
	records []StepRecord
}

// Append adds r to the end of the log.
func (h *History) Append(r StepRecord) error {
	if r.Step != len(h.records) {
		return fmt.Errorf("%w: got step %d, want %d", ErrOutOfOrder, r.Step, len(h.records))
	}
	h.records = append(h.records, r)
	return nil
}

func (h *History) Len() int { return len(h.records) }

// Last returns the most recent record.
func (h *History) Last() (StepRecord, bool) {
	if len(h.records) == 0 {
		return StepRecord{}, false
	}
	return h.records[len(h.records)-1], true
}

// Records returns a copy of the log in step order.
func (h *History) Records() []StepRecord {
	out := make([]StepRecord, len(h.records))
	copy(out, h.records)
	return out
}

func (h *History) clear() { h.records = nil }
