package extract

import (
	"context"

	"github.com/mnemo-oss/mnemo/internal/fact"
)

// Result is what one extraction call yields from a transcript.
type Result struct {
	// Facts are candidate assertions in the order the model produced them.
	Facts []fact.Fact `json:"facts"`
	// Summary is a one-sentence recap of the session.
	Summary string `json:"summary"`
	// Note is a single observation worth carrying into future sessions.
	Note string `json:"note"`
}

// Extractor turns a raw conversation transcript into candidate facts.
// Implementations are stateless: the result is a pure function of the
// transcript from the subsystem's perspective.
type Extractor interface {
	Extract(ctx context.Context, transcript string) (*Result, error)
}
