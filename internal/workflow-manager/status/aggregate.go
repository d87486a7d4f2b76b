package status

import "time"

// Reduce collapses a set of child statuses into the parent's status.
//
// Deprecated children drop out of consideration entirely; a parent whose
// children are all Deprecated (or absent) becomes Deprecated itself. A lone
// Declined child reopens the parent to InProgress rather than surfacing
// Declined at the parent level. Any mix that still contains Assigned,
// InProgress or Declined reduces to InProgress; a mix of only Finished and
// Verified reduces to Finished.
func Reduce(children []Status) Status {
	remaining := make(map[Status]bool)
	for _, s := range children {
		if s != StatusDeprecated {
			remaining[s] = true
		}
	}
	if len(remaining) == 0 {
		return StatusDeprecated
	}
	if len(remaining) == 1 {
		var only Status
		for s := range remaining {
			only = s
		}
		switch only {
		case StatusAssigned:
			// a non-Assigned sibling alongside an otherwise Assigned batch
			// means work already moved past plain assignment
			for _, s := range children {
				if s != StatusAssigned {
					return StatusInProgress
				}
			}
			return StatusAssigned
		case StatusDeclined:
			return StatusInProgress
		}
		return only
	}
	if remaining[StatusInProgress] || remaining[StatusDeclined] || remaining[StatusAssigned] {
		return StatusInProgress
	}
	return StatusFinished
}

// Child is one aggregatable node: a cycle task under a group, or a group
// under a cycle.
type Child struct {
	Status    Status
	StartDate *time.Time
	EndDate   *time.Time
}

// DateSpan is the reduced date range of a set of children: min start, max
// end, and the earliest end date among children that are not yet done. All
// fields are nil when there are no children.
type DateSpan struct {
	StartDate   *time.Time
	EndDate     *time.Time
	NextDueDate *time.Time
}

// Span recomputes a parent's date range from its children.
func Span(children []Child, verificationNeeded bool) DateSpan {
	var span DateSpan
	for _, ch := range children {
		if ch.StartDate != nil && (span.StartDate == nil || ch.StartDate.Before(*span.StartDate)) {
			d := *ch.StartDate
			span.StartDate = &d
		}
		if ch.EndDate != nil && (span.EndDate == nil || ch.EndDate.After(*span.EndDate)) {
			d := *ch.EndDate
			span.EndDate = &d
		}
		if ch.EndDate != nil && !Done(ch.Status, verificationNeeded) &&
			(span.NextDueDate == nil || ch.EndDate.Before(*span.NextDueDate)) {
			d := *ch.EndDate
			span.NextDueDate = &d
		}
	}
	return span
}
