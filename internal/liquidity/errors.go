package liquidity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Adapters raise exactly three classified error kinds. Anything else is
// treated as an infrastructure fault: the order is reverted to Created and
// retried by the next scheduler pass instead of failing the pipeline.

// NotNecessaryError signals the operation is not required; the order is
// completed immediately without touching the backend.
type NotNecessaryError struct {
	Reason string
}

func (e *NotNecessaryError) Error() string {
	return "order not necessary: " + e.Reason
}

// NotProcessableError signals a backend-reported insufficiency. The order
// follows the fail edge and the owning rule is paused with a cooldown.
type NotProcessableError struct {
	Reason string
}

func (e *NotProcessableError) Error() string {
	return "order not processable: " + e.Reason
}

// FailedError is a hard terminal error.
type FailedError struct {
	Reason string
}

func (e *FailedError) Error() string {
	return "order failed: " + e.Reason
}

func NotNecessary(format string, args ...any) error {
	return &NotNecessaryError{Reason: fmt.Sprintf(format, args...)}
}

func NotProcessable(format string, args ...any) error {
	return &NotProcessableError{Reason: fmt.Sprintf(format, args...)}
}

func Failed(format string, args ...any) error {
	return &FailedError{Reason: fmt.Sprintf(format, args...)}
}

func IsNotNecessary(err error) bool {
	var e *NotNecessaryError
	return errors.As(err, &e)
}

func IsNotProcessable(err error) bool {
	var e *NotProcessableError
	return errors.As(err, &e)
}

func IsFailed(err error) bool {
	var e *FailedError
	return errors.As(err, &e)
}

// IsClassified reports whether the error belongs to the adapter taxonomy.
func IsClassified(err error) bool {
	return IsNotNecessary(err) || IsNotProcessable(err) || IsFailed(err)
}

// Shortfall formats the canonical insufficiency detail. Follow-up actions on
// the fail edge parse it back to compute a top-up amount, so the format is
// load-bearing.
func Shortfall(balance, requested decimal.Decimal) string {
	return fmt.Sprintf("(balance: %s, requested: %s)", balance.String(), requested.String())
}

// ParseShortfall extracts balance and requested amounts from an order error
// message produced with Shortfall. ok is false when the message does not
// carry the detail.
func ParseShortfall(msg string) (balance, requested decimal.Decimal, ok bool) {
	start := strings.LastIndex(msg, "(balance: ")
	if start < 0 {
		return decimal.Zero, decimal.Zero, false
	}
	rest := msg[start+len("(balance: "):]
	sep := strings.Index(rest, ", requested: ")
	end := strings.Index(rest, ")")
	if sep < 0 || end < 0 || end < sep {
		return decimal.Zero, decimal.Zero, false
	}

	b, err := decimal.NewFromString(rest[:sep])
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	r, err := decimal.NewFromString(rest[sep+len(", requested: ") : end])
	if err != nil {
		return decimal.Zero, decimal.Zero, false
	}
	return b, r, true
}
