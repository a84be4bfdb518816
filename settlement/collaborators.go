package settlement

import (
	"context"

	"github.com/charmbracelet/log"
)

// =============================================================================
// IDENTITY
// =============================================================================

// IdentityResolver supplies the current operator's storage-path prefix.
// The engine treats the value as opaque.
type IdentityResolver interface {
	Operator(ctx context.Context) (OperatorID, error)
}

type operatorKey struct{}

// WithOperator stores the operator on ctx for ContextIdentity.
func WithOperator(ctx context.Context, op OperatorID) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// ContextIdentity resolves the operator placed on the context by WithOperator.
type ContextIdentity struct{}

func (ContextIdentity) Operator(ctx context.Context) (OperatorID, error) {
	op, _ := ctx.Value(operatorKey{}).(OperatorID)
	if op == "" {
		return "", ErrOperatorNotFound
	}
	return op, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notifier shows a message to the operator. The engine never depends on
// its behavior.
type Notifier interface {
	Notify(title, message string, severity Severity)
}

type NopNotifier struct{}

func (NopNotifier) Notify(string, string, Severity) {}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Notify(title, message string, severity Severity) {
	logger := n.Logger
	if logger == nil {
		logger = log.Default()
	}
	switch severity {
	case SeverityError:
		logger.Error(title, "message", message)
	case SeverityWarning:
		logger.Warn(title, "message", message)
	default:
		logger.Info(title, "message", message, "severity", string(severity))
	}
}
