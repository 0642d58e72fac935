package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sacco/pkg/errors"
)

// MaxIDAttempts bounds the retries after a generated identifier collides.
const MaxIDAttempts = 5

const idTimestamp = "20060102150405"

// NewBusinessID returns {prefix}-{yyyymmddHHMMSS}-{n random upper hex chars}.
func NewBusinessID(prefix string, now time.Time, n int) string {
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format(idTimestamp), randomSuffix(n))
}

func randomSuffix(n int) string {
	s := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}

// WithUniqueID calls create with fresh identifiers until it stops reporting
// ErrDuplicateIdentifier. Exhausting the attempts is a ConcurrencyConflictError.
func WithUniqueID(op string, next func() string, create func(id string) error) error {
	for attempt := 0; attempt < MaxIDAttempts; attempt++ {
		err := create(next())
		if errors.Is(err, errors.ErrDuplicateIdentifier) {
			continue
		}
		return err
	}
	return &errors.ConcurrencyConflictError{Op: op, Err: errors.ErrDuplicateIdentifier}
}
