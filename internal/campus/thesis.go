package campus

import (
	"errors"
	"fmt"
	"strings"
)

// ThesisStatus is a stage in the thesis defense workflow.
type ThesisStatus string

const (
	ThesisProposal  ThesisStatus = "proposal"
	ThesisReview    ThesisStatus = "review"
	ThesisScheduled ThesisStatus = "scheduled"
	ThesisCompleted ThesisStatus = "completed"
)

// ErrInvalidTransition is returned when a thesis cannot move to the requested stage.
var ErrInvalidTransition = errors.New("invalid thesis transition")

var thesisOrder = []ThesisStatus{ThesisProposal, ThesisReview, ThesisScheduled, ThesisCompleted}

// legacy spellings still found in older payloads
var thesisAliases = map[string]ThesisStatus{
	"defense-scheduled": ThesisScheduled,
	"graduated":         ThesisCompleted,
}

// ThesisStatuses lists every status in workflow order.
func ThesisStatuses() []ThesisStatus {
	return append([]ThesisStatus(nil), thesisOrder...)
}

// Valid reports whether s is one of the canonical statuses.
func (s ThesisStatus) Valid() bool {
	for _, v := range thesisOrder {
		if s == v {
			return true
		}
	}
	return false
}

// Next returns the status that follows s. Completed has no successor.
func (s ThesisStatus) Next() (ThesisStatus, bool) {
	for i, v := range thesisOrder {
		if s == v && i+1 < len(thesisOrder) {
			return thesisOrder[i+1], true
		}
	}
	return "", false
}

// Label returns a display name for s.
func (s ThesisStatus) Label() string {
	switch s {
	case ThesisProposal:
		return "Proposal"
	case ThesisReview:
		return "Under Review"
	case ThesisScheduled:
		return "Defense Scheduled"
	case ThesisCompleted:
		return "Completed"
	default:
		return string(s)
	}
}

// ParseThesisStatus maps a canonical or legacy spelling onto the canonical set.
func ParseThesisStatus(value string) (ThesisStatus, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if s := ThesisStatus(v); s.Valid() {
		return s, nil
	}
	if s, ok := thesisAliases[v]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown thesis status %q", value)
}

// UnmarshalText accepts legacy spellings so older persisted blobs still load.
func (s *ThesisStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseThesisStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Advance moves t one stage forward. Scheduling needs a date and a panel.
func (t *ThesisDefense) Advance() error {
	next, ok := t.Status.Next()
	if !ok {
		return fmt.Errorf("%w: %s is final", ErrInvalidTransition, t.Status)
	}
	if next == ThesisScheduled {
		if t.ScheduledDate == nil {
			return fmt.Errorf("%w: scheduling requires a defense date", ErrInvalidTransition)
		}
		if len(t.PanelMembers) == 0 {
			return fmt.Errorf("%w: scheduling requires panel members", ErrInvalidTransition)
		}
	}
	t.Status = next
	return nil
}
