package poller

import (
	"time"

	"property-insight-be/pkg/store"
)

// View is the screen a client shows for a session.
type View string

const (
	ViewNone      View = ""
	ViewPreview   View = "preview"
	ViewDashboard View = "dashboard"
	ViewReport    View = "report"
)

const (
	intervalSlow   = 3000 * time.Millisecond
	intervalMedium = 2000 * time.Millisecond
	intervalFast   = 1000 * time.Millisecond
	intervalFinal  = 500 * time.Millisecond
)

// NextInterval polls faster as the run approaches completion.
func NextInterval(s *store.Session) time.Duration {
	if s == nil || s.Status == store.StatusPending {
		return intervalSlow
	}
	progress, ok := s.Progress()
	switch {
	case !ok || progress < 0.3:
		return intervalSlow
	case progress < 0.7:
		return intervalMedium
	case progress < 0.9:
		return intervalFast
	default:
		return intervalFinal
	}
}

// ResolveView maps a snapshot to a view. Once the analysis has started the
// preview is never shown again. Statuses that say nothing new about the
// screen keep the current view.
func ResolveView(s *store.Session, started bool, current View) View {
	switch s.Status {
	case store.StatusPending:
		if !started {
			return ViewPreview
		}
		// A late pending snapshot must not pull a client back from a later view.
		if current != ViewNone && current != ViewPreview {
			return current
		}
		return ViewDashboard
	case store.StatusAnalyzing, store.StatusFinalizing:
		return ViewDashboard
	case store.StatusCompleted, store.StatusDegraded:
		if s.HasReport {
			return ViewReport
		}
		return ViewDashboard
	}
	if current == ViewNone || (started && current == ViewPreview) {
		return ViewDashboard
	}
	return current
}

// IsFinished reports whether polling can stop: all steps done, a report
// attached and a terminal status. A snapshot without totalSteps counts as
// having done all its steps. A failed run without a report is also final.
func IsFinished(s *store.Session) bool {
	if s.Status == store.StatusError && !s.HasReport {
		return true
	}
	stepsDone := s.TotalSteps == nil || s.StepsDone()
	return s.Status.IsTerminal() && s.HasReport && stepsDone
}
