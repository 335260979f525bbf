package tax

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD CALCULATOR - Maps a postmark date to a statutory payment window
// =============================================================================

// Calculator determines which statutory payment period a postmark falls
// into, relative to a bill's issue date:
//
//	discountEnd = issue + 2 calendar months - 1 day
//	faceEnd     = issue + 4 calendar months - 1 day
//
//	postmark <= discountEnd            -> DISCOUNT
//	discountEnd < postmark <= faceEnd  -> FACE
//	faceEnd < postmark                 -> PENALTY
//
// Both boundaries are inclusive to the earlier bucket: the three windows
// partition the timeline with no gap and no overlap.
type Calculator struct {
	// DefaultIssueDate anchors the windows for parcels whose bill issue
	// date was never recorded (legacy rolls).
	DefaultIssueDate time.Time
}

// NewCalculator creates a Calculator with the given default issue date.
func NewCalculator(defaultIssueDate time.Time) Calculator {
	return Calculator{DefaultIssueDate: defaultIssueDate}
}

// DeterminePeriod returns the payment period for a postmark date. A zero
// issue date falls back to the system-wide default. Pure; no side effects.
func (c Calculator) DeterminePeriod(postmark, issueDate time.Time) Period {
	if issueDate.IsZero() {
		issueDate = c.DefaultIssueDate
	}

	discountEnd := issueDate.AddDate(0, 2, -1)
	faceEnd := issueDate.AddDate(0, 4, -1)

	switch {
	case !dateAfter(postmark, discountEnd):
		return PeriodDiscount
	case !dateAfter(postmark, faceEnd):
		return PeriodFace
	default:
		return PeriodPenalty
	}
}

// DiscountEnd returns the last day of the discount window for an issue date.
func (c Calculator) DiscountEnd(issueDate time.Time) time.Time {
	if issueDate.IsZero() {
		issueDate = c.DefaultIssueDate
	}
	return issueDate.AddDate(0, 2, -1)
}

// FaceEnd returns the last day of the face window for an issue date.
func (c Calculator) FaceEnd(issueDate time.Time) time.Time {
	if issueDate.IsZero() {
		issueDate = c.DefaultIssueDate
	}
	return issueDate.AddDate(0, 4, -1)
}

// dateAfter compares two instants at day granularity.
func dateAfter(a, b time.Time) bool {
	return truncateToDay(a).After(truncateToDay(b))
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// =============================================================================
// DATE PARSING
// =============================================================================

// DateLayout is the wire format for all dates in the system.
const DateLayout = "2006-01-02"

// FormatError reports a malformed date input.
type FormatError struct {
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("malformed date %q: want YYYY-MM-DD", e.Input)
}

// ParseDate parses a YYYY-MM-DD date, returning *FormatError on bad input.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &FormatError{Input: s}
	}
	return t, nil
}

// FormatDate renders a date in the system wire format.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
