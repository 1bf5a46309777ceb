package usecase

import (
	"time"

	"github.com/xavierca1/zag-leads/internal/entity"
	"github.com/xavierca1/zag-leads/internal/sequence"
)

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

// anchorOf is the instant step offsets are measured from.
func anchorOf(l *entity.Lead) time.Time {
	if l.EnrolledAt != nil {
		return *l.EnrolledAt
	}
	return l.CreatedAt
}

// nextSlot places a step at anchor+offset, or at now+gap when that slot has
// already passed.
func nextSlot(anchor time.Time, offset int, now time.Time, gap time.Duration) time.Time {
	at := anchor.Add(days(offset))
	if !at.After(now) {
		return now.Add(gap)
	}
	return at
}

// enroll puts l at the start of the sequence for its current interest. Status
// is left to the caller.
func enroll(l *entity.Lead, catalog *sequence.Catalog, anchor time.Time) {
	l.Audience = catalog.ResolveAudience(l)
	steps := catalog.StepsFor(l.InterestedIn, l.Audience)
	l.SequenceStep = 0
	at := anchor.UTC()
	l.EnrolledAt = &at
	next := at.Add(days(steps[0].DayOffset))
	l.NextActionAt = &next
}
