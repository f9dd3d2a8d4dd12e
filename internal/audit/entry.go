package audit

import "time"

// Entry represents a single audit log record: one executed chain.
type Entry struct {
	Seq       uint64    `json:"seq"`
	Time      time.Time `json:"ts"`
	PrevHash  string    `json:"prev_hash"`
	Pipeline  string    `json:"pipeline"`             // raw pipeline expression
	Programs  []string  `json:"programs"`             // chain members, root first
	PIDs      []int     `json:"pids,omitempty"`       // spawned process IDs
	ExitCodes []int     `json:"exit_codes,omitempty"` // per member, -1 = unavailable
	Error     string    `json:"error,omitempty"`      // error message if the run failed
	Duration  float64   `json:"duration_ms"`          // execution time in milliseconds
	Cwd       string    `json:"cwd"`                  // working directory
	Hash      string    `json:"hash"`                 // SHA-256 of this entry (with hash field empty)
}
