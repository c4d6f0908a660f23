package core

// Severity indicates the importance of a user-facing notification.
type Severity int

// Severity levels for notifications.
const (
	// SeverityError indicates a problem that blocks a correct build.
	SeverityError Severity = iota
	// SeverityWarning indicates a problem the user should act on.
	SeverityWarning
	// SeverityInfo indicates informational feedback.
	SeverityInfo
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}
