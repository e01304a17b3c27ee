package faults

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Category groups errors by where they originate.
type Category string

const (
	CategoryNetwork    Category = "network"
	CategoryDatabase   Category = "database"
	CategoryValidation Category = "validation"
	CategoryPermission Category = "permission"
	CategoryUnknown    Category = "unknown"
)

// Severity indicates how loudly an error should be surfaced.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Kind is the closed set of error kinds the system distinguishes. Every Kind
// has a static entry in the traits table; classification never consults a
// dynamic code lookup.
type Kind string

const (
	// KindOffline is the fast-fail raised when the network monitor reports no
	// connectivity and an operation is refused without being attempted.
	KindOffline Kind = "offline"

	// KindConnection covers refused, reset, and unreachable errors.
	KindConnection Kind = "connection"

	// KindTimeout covers deadline and request-timeout failures.
	KindTimeout Kind = "timeout"

	// KindNotFound means the referenced record does not exist.
	KindNotFound Kind = "not_found"

	// KindValidation means the input can never succeed as given.
	KindValidation Kind = "validation"

	// KindConflict means the operation was already applied (409-class).
	// Terminal, but distinct from failure: the work is already done.
	KindConflict Kind = "conflict"

	// KindDatabase covers 5xx-class failures of the remote store.
	KindDatabase Kind = "database"

	// KindPermission covers denied access to a collaborator (e.g. camera).
	KindPermission Kind = "permission"

	// KindUnknown is the fallback for anything unclassified.
	KindUnknown Kind = "unknown"
)

// Kinds lists every defined Kind; tests assert the traits table covers it.
var Kinds = []Kind{
	KindOffline, KindConnection, KindTimeout, KindNotFound,
	KindValidation, KindConflict, KindDatabase, KindPermission, KindUnknown,
}

type traits struct {
	category  Category
	severity  Severity
	retryable bool
	title     string
	message   string
	actions   []string
}

// kindTraits is the exhaustive Kind → traits mapping.
func kindTraits(k Kind) traits {
	switch k {
	case KindOffline:
		return traits{
			category:  CategoryNetwork,
			severity:  SeverityHigh,
			retryable: true,
			title:     "No network connection",
			message:   "You appear to be offline. The check-in was saved and will sync automatically once the connection returns.",
			actions:   []string{"Keep working, queued check-ins sync on reconnect", "Check the venue Wi-Fi"},
		}
	case KindConnection:
		return traits{
			category:  CategoryNetwork,
			severity:  SeverityMedium,
			retryable: true,
			title:     "Connection problem",
			message:   "The server could not be reached. The operation will be retried.",
			actions:   []string{"Try again", "Check the venue Wi-Fi"},
		}
	case KindTimeout:
		return traits{
			category:  CategoryNetwork,
			severity:  SeverityMedium,
			retryable: true,
			title:     "Request timed out",
			message:   "The server took too long to respond. The operation will be retried.",
			actions:   []string{"Try again", "Move closer to the access point"},
		}
	case KindNotFound:
		return traits{
			category:  CategoryDatabase,
			severity:  SeverityLow,
			retryable: false,
			title:     "Booking not found",
			message:   "No booking matches that code.",
			actions:   []string{"Check the booking code", "Use manual search instead"},
		}
	case KindValidation:
		return traits{
			category:  CategoryValidation,
			severity:  SeverityLow,
			retryable: false,
			title:     "Invalid input",
			message:   "The entered values are not valid.",
			actions:   []string{"Check the entered values"},
		}
	case KindConflict:
		return traits{
			category:  CategoryDatabase,
			severity:  SeverityMedium,
			retryable: false,
			title:     "Already recorded",
			message:   "This check-in was already recorded.",
			actions:   []string{"Refresh to see the current state"},
		}
	case KindDatabase:
		return traits{
			category:  CategoryDatabase,
			severity:  SeverityHigh,
			retryable: true,
			title:     "Server error",
			message:   "The record store reported an internal error. The operation will be retried.",
			actions:   []string{"Try again", "Contact the organizer if this keeps happening"},
		}
	case KindPermission:
		return traits{
			category:  CategoryPermission,
			severity:  SeverityHigh,
			retryable: false,
			title:     "Permission denied",
			message:   "Access to a required device or resource was denied.",
			actions:   []string{"Allow camera access in the browser settings", "Use manual search instead"},
		}
	default:
		return traits{
			category:  CategoryUnknown,
			severity:  SeverityMedium,
			retryable: false,
			title:     "Something went wrong",
			message:   "An unexpected error occurred.",
			actions:   []string{"Try again"},
		}
	}
}

// Error is a classified error carrying category, severity, retryability, and
// the user-facing guidance derived from its Kind. The raw cause is preserved
// for logs but never shown to the end user.
type Error struct {
	Kind      Kind
	Category  Category
	Severity  Severity
	Retryable bool
	Title     string
	Message   string
	Actions   []string

	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a classified error of the given kind wrapping cause.
func New(kind Kind, cause error) *Error {
	t := kindTraits(kind)
	return &Error{
		Kind:      kind,
		Category:  t.category,
		Severity:  t.severity,
		Retryable: t.retryable,
		Title:     t.title,
		Message:   t.message,
		Actions:   t.actions,
		cause:     cause,
	}
}

// Newf builds a classified error of the given kind from a formatted cause.
func Newf(kind Kind, format string, args ...any) *Error {
	return New(kind, fmt.Errorf(format, args...))
}

// Classify maps an arbitrary error to a classified one. Already-classified
// errors pass through unchanged, including when wrapped.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(KindTimeout, err)
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return New(KindTimeout, err)
		}
		return New(KindConnection, err)
	}

	var oe *net.OpError
	if errors.As(err, &oe) {
		return New(KindConnection, err)
	}

	return New(KindUnknown, err)
}

// FromStatus maps an HTTP response status to a classified error.
func FromStatus(status int, cause error) *Error {
	switch {
	case status == http.StatusNotFound:
		return New(KindNotFound, cause)
	case status == http.StatusConflict:
		return New(KindConflict, cause)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return New(KindPermission, cause)
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return New(KindValidation, cause)
	case status >= 500:
		return New(KindDatabase, cause)
	default:
		return New(KindUnknown, cause)
	}
}

// KindOf returns the kind of err after classification.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	return Classify(err).Kind
}

// IsRetryable reports whether err is worth retrying at all.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Retryable
}

// IsOffline reports whether err is the fast-fail raised while offline.
func IsOffline(err error) bool {
	return KindOf(err) == KindOffline
}

// IsConflict reports whether err means the operation was already applied.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// IsNetwork reports whether err belongs to the network category, the class
// that drives both retry paths.
func IsNetwork(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err).Category == CategoryNetwork
}
