package models

// MessageLevel classifies a user notice.
type MessageLevel string

const (
	MessageSuccess MessageLevel = "success"
	MessageError   MessageLevel = "error"
	MessageInfo    MessageLevel = "info"
)

// Message is a notice for the user. Transient messages dismiss themselves.
type Message struct {
	Level     MessageLevel
	Text      string
	Transient bool
}

// Section names a view region with its own loading indicator.
type Section string

const (
	SectionZones      Section = "zones"
	SectionIndicators Section = "indicators"
	SectionStats      Section = "stats"
	SectionUsers      Section = "users"
)

// Action names a user control that can be disabled while it runs.
type Action string

const (
	ActionIngest Action = "ingest"
)
