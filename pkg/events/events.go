// Package events defines the event types broadcast to UI listeners over
// the event bus.
package events

import "time"

// Topic is the single event-bus topic all canvas events flow through.
const Topic = "patchbay.canvas"

// Metadata keys stamped on bus messages.
const (
	EventMetadataKey     = "event_key"
	EventTypeMetadataKey = "event_type"
)

// EventType tags a canvas event.
type EventType string

const (
	DraftSaveStartedEvent   EventType = "draft.save.started"
	DraftSaveCompletedEvent EventType = "draft.save.completed"
	DraftSaveFailedEvent    EventType = "draft.save.failed"
	DraftDeletedEvent       EventType = "draft.deleted"
	GraphValidatedEvent     EventType = "graph.validated"
)

// DraftSaveStarted is emitted when a save begins.
type DraftSaveStarted struct {
	DraftID   string    `json:"draftId"`
	AutoSave  bool      `json:"autoSave"`
	Timestamp time.Time `json:"timestamp"`
}

func (e DraftSaveStarted) GetType() EventType { return DraftSaveStartedEvent }

// DraftSaveCompleted is emitted after a successful save.
type DraftSaveCompleted struct {
	DraftID   string    `json:"draftId"`
	Version   string    `json:"version"`
	Checksum  uint32    `json:"checksum"`
	AutoSave  bool      `json:"autoSave"`
	Timestamp time.Time `json:"timestamp"`
}

func (e DraftSaveCompleted) GetType() EventType { return DraftSaveCompletedEvent }

// DraftSaveFailed is emitted when a save fails. The previously persisted
// blob is untouched.
type DraftSaveFailed struct {
	DraftID   string    `json:"draftId"`
	Message   string    `json:"message"`
	AutoSave  bool      `json:"autoSave"`
	Timestamp time.Time `json:"timestamp"`
}

func (e DraftSaveFailed) GetType() EventType { return DraftSaveFailedEvent }

// DraftDeleted is emitted after a draft is removed from storage.
type DraftDeleted struct {
	DraftID   string    `json:"draftId"`
	Timestamp time.Time `json:"timestamp"`
}

func (e DraftDeleted) GetType() EventType { return DraftDeletedEvent }

// GraphValidated is emitted after a validation pass pruned connections.
type GraphValidated struct {
	DraftID   string    `json:"draftId"`
	Removed   int       `json:"removed"`
	Timestamp time.Time `json:"timestamp"`
}

func (e GraphValidated) GetType() EventType { return GraphValidatedEvent }
