package core

import "fmt"

// EventKind is the kind of a file change event.
type EventKind int

// Event kinds delivered by a change listener.
const (
	EventCreated EventKind = iota
	EventModified
	EventDeleted
	EventMoved
)

// String returns the lowercase name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	case EventMoved:
		return "moved"
	default:
		return "unknown"
	}
}

// Event is a coarse-grained file change.
// For EventMoved, OldPath is the previous identity and Path the new one.
type Event struct {
	Kind    EventKind
	Path    string
	OldPath string
}

func (e Event) String() string {
	if e.Kind == EventMoved {
		return fmt.Sprintf("moved %s -> %s", e.OldPath, e.Path)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Path)
}
