package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const MaxRecordLabelLen = 200

// Record groups envelopes for one account. Its label is stored in
// plaintext, so clients put anything sensitive inside the envelopes.
type Record struct {
	ID        string
	AccountID string
	Label     string
	CreatedAt time.Time
}

func NormalizeRecordLabel(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return "", Validationf("label", "is required")
	}
	if utf8.RuneCountInString(label) > MaxRecordLabelLen {
		return "", Validationf("label", "must be at most %d characters", MaxRecordLabelLen)
	}
	return label, nil
}
