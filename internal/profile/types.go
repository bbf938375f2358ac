package profile

import "time"

// SkillStatus tracks how much trust the system places in a skill claim.
type SkillStatus string

const (
	SkillClaimed    SkillStatus = "claimed"
	SkillInProgress SkillStatus = "in-progress"
	SkillValidated  SkillStatus = "validated"
)

// Rank orders statuses so that merges can tell an upgrade from a regression.
// Unknown statuses rank below claimed.
func (s SkillStatus) Rank() int {
	switch s {
	case SkillClaimed:
		return 1
	case SkillInProgress:
		return 2
	case SkillValidated:
		return 3
	default:
		return 0
	}
}

// Valid reports whether the status is one of the known values.
func (s SkillStatus) Valid() bool {
	return s.Rank() > 0
}

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalAchieved  GoalStatus = "achieved"
	GoalAbandoned GoalStatus = "abandoned"
)

// Valid reports whether the status is one of the known values.
func (s GoalStatus) Valid() bool {
	switch s {
	case GoalActive, GoalAchieved, GoalAbandoned:
		return true
	}
	return false
}

// Skill is one entry in the profile's skill map. SessionID records which
// session (or user edit) last touched the entry.
type Skill struct {
	Proficiency string      `json:"proficiency,omitempty"`
	Status      SkillStatus `json:"status"`
	UpdatedAt   time.Time   `json:"updated_at"`
	SessionID   string      `json:"session_id,omitempty"`
	ValidatedAt *time.Time  `json:"validated_at,omitempty"`
}

// TargetRole is the user's stated career target.
type TargetRole struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	SessionID string    `json:"session_id,omitempty"`
}

// Preference is a free-form keyed preference (e.g. learning style).
type Preference struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
	SessionID string    `json:"session_id,omitempty"`
}

// Goal is one entry in the profile's ordered goal list.
type Goal struct {
	Description string     `json:"description"`
	Horizon     string     `json:"horizon,omitempty"`
	Status      GoalStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	SessionID   string     `json:"session_id,omitempty"`
}

// Note is a short observation about the user carried across sessions.
type Note struct {
	Text      string    `json:"text"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// maxNotes bounds the note list so snapshots stay small.
const maxNotes = 20

// Profile is the structured current-state record for one user.
// Version increases by exactly one on every committed mutation; version 0
// means the user has no committed profile yet.
type Profile struct {
	UserID      string                `json:"user_id"`
	Version     int64                 `json:"version"`
	Skills      map[string]Skill      `json:"skills"`
	TargetRole  *TargetRole           `json:"target_role,omitempty"`
	Preferences map[string]Preference `json:"preferences"`
	Goals       []Goal                `json:"goals"`
	Notes       []Note                `json:"notes,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
}

// New returns an empty default profile at version 0.
func New(userID string) *Profile {
	now := time.Now().UTC()
	return &Profile{
		UserID:      userID,
		Version:     0,
		Skills:      make(map[string]Skill),
		Preferences: make(map[string]Preference),
		Goals:       make([]Goal, 0),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy. Merges mutate the copy so the original stays
// valid as the compare-and-set base.
func (p *Profile) Clone() *Profile {
	out := *p

	out.Skills = make(map[string]Skill, len(p.Skills))
	for k, v := range p.Skills {
		if v.ValidatedAt != nil {
			ts := *v.ValidatedAt
			v.ValidatedAt = &ts
		}
		out.Skills[k] = v
	}

	if p.TargetRole != nil {
		tr := *p.TargetRole
		out.TargetRole = &tr
	}

	out.Preferences = make(map[string]Preference, len(p.Preferences))
	for k, v := range p.Preferences {
		out.Preferences[k] = v
	}

	out.Goals = make([]Goal, len(p.Goals))
	copy(out.Goals, p.Goals)

	out.Notes = make([]Note, len(p.Notes))
	copy(out.Notes, p.Notes)

	return &out
}

// AddNote appends a note, keeping only the most recent maxNotes entries.
func (p *Profile) AddNote(n Note) {
	p.Notes = append(p.Notes, n)
	if len(p.Notes) > maxNotes {
		p.Notes = p.Notes[len(p.Notes)-maxNotes:]
	}
}
