// Package proctor enforces exam-integrity rules during a live attempt.
package proctor

import "fmt"

// Monitor applies the tab-switch policy of one assessment. A Limit of zero
// disables enforcement entirely.
type Monitor struct {
	Limit int
}

// Decision is the outcome of recording one violation.
type Decision struct {
	// TabSwitches is the count after this violation.
	TabSwitches int
	// Warning is advisory: the participant is one violation below the
	// limit and the client should show a final warning. No state changes.
	Warning bool
	// Exceeded instructs the caller to flag the attempt and auto-submit it
	// with whatever answers are currently saved.
	Exceeded bool
	// Reason is the human-readable flag reason when Exceeded is set.
	Reason string
}

// Report records one tab switch on top of the current count and decides
// whether the attempt passes, gets a final warning, or must be terminated.
func (m Monitor) Report(current int) Decision {
	d := Decision{TabSwitches: current + 1}

	if m.Limit <= 0 {
		return d
	}

	switch {
	case d.TabSwitches >= m.Limit:
		d.Exceeded = true
		d.Reason = fmt.Sprintf("Exceeded tab switch limit (%d/%d)", d.TabSwitches, m.Limit)
	case d.TabSwitches == m.Limit-1:
		d.Warning = true
	}

	return d
}
