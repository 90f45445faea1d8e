package feeschedule

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Entry is one versioned fee amount keyed by (class level, stream,
// session, term, purpose). Stream is empty when the entry applies to
// every stream of the class level. Entries are never deleted, only
// deactivated, so historical charge generation stays reproducible.
type Entry struct {
	ID         string          `json:"id"`
	ClassLevel string          `json:"class_level"`
	Stream     string          `json:"stream,omitempty"`
	SessionID  string          `json:"session_id"`
	TermID     string          `json:"term_id"`
	Purpose    string          `json:"purpose"`
	Amount     decimal.Decimal `json:"amount"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
}

// UpsertEntryInput describes a new or amended fee amount.
type UpsertEntryInput struct {
	ClassLevel string          `json:"class_level" validate:"required"`
	Stream     string          `json:"stream"`
	SessionID  string          `json:"session_id" validate:"required"`
	TermID     string          `json:"term_id" validate:"required"`
	Purpose    string          `json:"purpose" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

var purposeCaser = cases.Title(language.English)

// CanonicalPurpose normalizes a free-form purpose tag so "tuition",
// "TUITION" and "Tuition" land on the same ledger slice.
func CanonicalPurpose(purpose string) string {
	return purposeCaser.String(strings.ToLower(strings.TrimSpace(purpose)))
}

// CanonicalClassLevel upper-cases and trims a class level for matching.
func CanonicalClassLevel(classLevel string) string {
	return strings.ToUpper(strings.TrimSpace(classLevel))
}

// CanonicalStream trims a stream tag; matching is case-insensitive.
func CanonicalStream(stream string) string {
	return strings.TrimSpace(stream)
}
