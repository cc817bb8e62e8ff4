package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/five82/quad/internal/backend"
	"github.com/five82/quad/internal/optimistic"
	"github.com/five82/quad/internal/views"
)

type toastLevel int

const (
	toastInfo toastLevel = iota
	toastSuccess
	toastError
)

type toast struct {
	level   toastLevel
	text    string
	expires time.Time
}

func (m *Model) pushToast(level toastLevel, text string) {
	m.toasts = append(m.toasts, toast{
		level:   level,
		text:    text,
		expires: m.now().Add(ToastTTL),
	})
	if n := len(m.toasts); n > maxToasts {
		m.toasts = append([]toast(nil), m.toasts[n-maxToasts:]...)
	}
}

func (m *Model) pruneToasts() {
	now := m.now()
	var kept []toast
	for _, t := range m.toasts {
		if now.Before(t.expires) {
			kept = append(kept, t)
		}
	}
	m.toasts = kept
}

func (m Model) renderToasts() string {
	if len(m.toasts) == 0 {
		return ""
	}
	styles := m.theme.Styles()
	lines := make([]string, 0, len(m.toasts))
	for _, t := range m.toasts {
		style := styles.InfoText
		icon := "•"
		switch t.level {
		case toastSuccess:
			style, icon = styles.SuccessText, "✓"
		case toastError:
			style, icon = styles.DangerText, "✗"
		}
		lines = append(lines, style.Render(truncate(icon+" "+t.text, m.width)))
	}
	return strings.Join(lines, "\n")
}

var opVerbs = map[backend.Op]string{
	backend.OpUpdateGrade: "grade update",
	backend.OpCheckout:    "checkout",
	backend.OpReturn:      "return",
	backend.OpRenew:       "renewal",
}

// settleToast describes a settled mutation for the notification area.
func settleToast(r optimistic.Result) (toastLevel, string) {
	verb := opVerbs[r.Op]
	if verb == "" {
		verb = string(r.Op)
	}
	if r.Err != nil {
		reason := strings.TrimPrefix(r.Err.Error(), optimistic.ErrRolledBack.Error()+": ")
		return toastError, fmt.Sprintf("%s of %s failed and was reverted: %s", verb, r.EntityID, reason)
	}
	text := fmt.Sprintf("%s of %s confirmed", verb, r.EntityID)
	if r.Op == backend.OpReturn && r.Fine > 0 {
		text += ", fine " + views.FormatFine(r.Fine)
	}
	return toastSuccess, text
}
