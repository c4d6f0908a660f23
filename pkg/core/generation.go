package core

import "time"

// Generation records one successful generation of a managed file.
type Generation struct {
	RunID   string
	Source  string // Managed file path
	Stamp   uint64 // Stamp of the source content generated from
	Output  string // Generated artifact path
	Written bool   // False when the artifact was already up to date
	At      time.Time
}
