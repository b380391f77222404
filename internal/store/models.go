package store

import (
	"encoding/json"
	"time"
)

type Organization struct {
	ID        string
	Name      string
	Type      string // "client" or "law_firm"
	Email     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// OCG is one version of a client's Outside Counsel Guidelines. Versions
// sharing (ClientID, Name) form an immutable history; only the highest
// version is ever actively negotiated.
type OCG struct {
	ID                     string
	ClientID               string
	Name                   string
	Version                int
	Status                 Status
	TotalPoints            int
	DefaultFirmPointBudget int
	PublishedAt            *time.Time
	SignedAt               *time.Time
	Settings               json.RawMessage
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

// Section is a node in an OCG's ordered guideline tree. ParentID nil
// means top-level. Only negotiable sections carry alternatives.
type Section struct {
	ID           string
	OCGID        string
	ParentID     *string
	Title        string
	Content      string
	IsNegotiable bool
	SortOrder    int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Alternative is one priced text variant of a negotiable section.
type Alternative struct {
	ID        string
	SectionID string
	Title     string
	Content   string
	Points    int
	SortOrder int
	IsDefault bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FirmSelection records a firm's chosen alternative for one section.
// PointsUsed is snapshotted from the alternative at selection time and
// does not change if the alternative is edited later.
type FirmSelection struct {
	ID            string
	OCGID         string
	FirmID        string
	SectionID     string
	AlternativeID string
	PointsUsed    int
	SelectedAt    time.Time
}

// SectionNode is a section with its subsections and alternatives
// resolved, as consumed by rendering and the negotiation view.
type SectionNode struct {
	Section
	Subsections  []SectionNode
	Alternatives []Alternative
}

type MessageThread struct {
	ID          string
	ContextType string
	ContextID   string
	CreatedAt   time.Time
}

type Message struct {
	ID           string
	ThreadID     string
	SenderID     string
	RecipientIDs []string
	Content      string
	CreatedAt    time.Time
}

// OCGUpdate carries the whitelisted partial-update fields for an OCG.
// Nil pointers leave the column untouched.
type OCGUpdate struct {
	Name                   *string
	Status                 *Status
	TotalPoints            *int
	DefaultFirmPointBudget *int
	Settings               json.RawMessage
}

// SectionUpdate carries partial-update fields for a section. ParentID is
// a double pointer so callers can distinguish "leave alone" (nil) from
// "reparent to top level" (pointer to nil).
type SectionUpdate struct {
	Title        *string
	Content      *string
	IsNegotiable *bool
	SortOrder    *int
	ParentID     **string
}

// AlternativeUpdate carries partial-update fields for an alternative.
type AlternativeUpdate struct {
	Title     *string
	Content   *string
	Points    *int
	SortOrder *int
	IsDefault *bool
}
