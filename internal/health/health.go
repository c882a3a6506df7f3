// Package health derives the container health signal consumed by list views
// and badges. Evaluation is pure: same container, clock and thresholds always
// give the same answer, with no reads or writes anywhere.
package health

import (
	"time"

	"trackline/internal/domain"
)

// Thresholds tune the evaluation. The exact numbers are workspace config.
type Thresholds struct {
	// OverdueGrace is how far past its due date a work item may slip before
	// the container turns critical.
	OverdueGrace time.Duration
	// CriticalBlockers is the count of unresolved blockers across the
	// container that turns it critical.
	CriticalBlockers int
}

// Default returns the thresholds used when the workspace config is silent.
func Default() Thresholds {
	return Thresholds{
		OverdueGrace:     48 * time.Hour,
		CriticalBlockers: 2,
	}
}

// Overdue reports whether the work item is past its due date and not done.
func Overdue(w domain.WorkItem, now time.Time) bool {
	if w.DueDate == nil || w.Status == domain.StatusDone {
		return false
	}
	due, err := time.Parse(time.RFC3339, *w.DueDate)
	if err != nil {
		return false
	}
	return now.After(due)
}

// Evaluate derives container health from blockers, due dates and statuses.
//
// Precedence, worst first:
//   - critical: a work item overdue beyond the grace threshold, or the
//     unresolved blocker count reaches Thresholds.CriticalBlockers
//   - delayed: the container end/target date passed with work still open
//   - at-risk: any unresolved blocker or any overdue work item
//   - healthy: none of the above
//
// healthy therefore holds iff no unresolved blocker exists and nothing is
// overdue.
func Evaluate(c domain.Container, now time.Time, th Thresholds) string {
	unresolved := 0
	anyOverdue := false
	overdueBeyondGrace := false
	for _, w := range c.WorkItems {
		unresolved += w.UnresolvedBlockers()
		if !Overdue(w, now) {
			continue
		}
		anyOverdue = true
		due, _ := time.Parse(time.RFC3339, *w.DueDate)
		if now.Sub(due) > th.OverdueGrace {
			overdueBeyondGrace = true
		}
	}

	if overdueBeyondGrace || (th.CriticalBlockers > 0 && unresolved >= th.CriticalBlockers) {
		return domain.HealthCritical
	}
	if deadlinePassed(c, now) && c.PendingCount() > 0 {
		return domain.HealthDelayed
	}
	if unresolved > 0 || anyOverdue {
		return domain.HealthAtRisk
	}
	return domain.HealthHealthy
}

func deadlinePassed(c domain.Container, now time.Time) bool {
	var raw *string
	switch c.Kind {
	case domain.KindSprint:
		raw = c.EndDate
	default:
		raw = c.TargetEndDate
	}
	if raw == nil {
		return false
	}
	end, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return false
	}
	return now.After(end)
}
