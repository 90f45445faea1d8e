package calendar

import "time"

// Session is an academic session (school year), e.g. "2025/2026".
type Session struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	StartsOn time.Time `json:"starts_on"`
	EndsOn   time.Time `json:"ends_on"`
}

// Term is one term within a session. Position fixes the chronological
// order of terms inside their session; ordering is never inferred from
// term names.
type Term struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
	Position  int    `json:"position"`
	Current   bool   `json:"current"`
}

// Period identifies one billing cycle: a (session, term) pair.
type Period struct {
	SessionID string `json:"session_id"`
	TermID    string `json:"term_id"`
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.SessionID == "" && p.TermID == ""
}
