package model

// EventCategory is the kind of a reported event.
type EventCategory string

const (
	EventCategoryInfo     EventCategory = "info"
	EventCategorySuccess  EventCategory = "success"
	EventCategoryError    EventCategory = "error"
	EventCategoryWarning  EventCategory = "warning"
	EventCategoryOutput   EventCategory = "output"
	EventCategoryRealtime EventCategory = "realtime"
)

// Event is a message emitted while running the pipeline.
type Event struct {
	Message  string
	Category EventCategory
}
