package sessionlog

import (
	"time"

	"github.com/mnemo-oss/mnemo/internal/fact"
)

// FactOutcome records what consolidation did with one extracted fact.
// Rejected facts stay in the record with the reason, so provenance is never
// lost even when the profile is untouched.
type FactOutcome struct {
	Fact    fact.Fact `json:"fact"`
	Applied bool      `json:"applied"`
	Reason  string    `json:"reason,omitempty"`
}

// SessionRecord is one append-only entry in a user's chronological history.
// Records are immutable once appended.
type SessionRecord struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	Summary string `json:"summary,omitempty"`
	Note    string `json:"note,omitempty"`

	// Facts holds every extracted fact in merge order, applied or not.
	Facts []FactOutcome `json:"extracted_facts"`

	// ProfileVersionAfter is the profile version this session's merge
	// committed. Zero means no profile mutation was recorded.
	ProfileVersionAfter int64 `json:"profile_version_after,omitempty"`

	// ExtractionError is set when the extraction call failed; the session
	// is still logged so history never silently loses a transcript.
	ExtractionError string `json:"extraction_error,omitempty"`

	// NeedsReconciliation flags a session whose merge exhausted its
	// compare-and-set budget and awaits operator attention.
	NeedsReconciliation bool `json:"needs_reconciliation,omitempty"`
}

// AppliedFacts returns only the outcomes that mutated the profile.
func (r *SessionRecord) AppliedFacts() []FactOutcome {
	var out []FactOutcome
	for _, fo := range r.Facts {
		if fo.Applied {
			out = append(out, fo)
		}
	}
	return out
}
