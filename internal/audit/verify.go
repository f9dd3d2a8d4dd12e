package audit

import (
	"encoding/json"
	"fmt"
	"os"
)

// Verify checks the audit log end to end: every record must be a
// well-formed pipeline run, its hash must match its contents, and the
// prev-hash links must chain unbroken from genesis with no sequence gaps.
func Verify(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	lines := splitLines(data)
	if len(lines) == 0 {
		return nil // empty log is valid
	}

	wantPrev := genesisHash()
	var lastSeq uint64

	for i, line := range lines {
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("entry %d: invalid JSON: %w", i+1, err)
		}

		if entry.Seq != lastSeq+1 {
			return fmt.Errorf("entry %d: sequence gap: want %d, got %d", i+1, lastSeq+1, entry.Seq)
		}
		if entry.PrevHash != wantPrev {
			return fmt.Errorf("entry %d: prev_hash mismatch: want %s, got %s", i+1, short(wantPrev), short(entry.PrevHash))
		}
		if computed := computeHash(entry); entry.Hash != computed {
			return fmt.Errorf("entry %d: hash mismatch: want %s, got %s", i+1, short(computed), short(entry.Hash))
		}
		if err := entry.validate(); err != nil {
			return fmt.Errorf("entry %d: %w", i+1, err)
		}

		wantPrev = entry.Hash
		lastSeq = entry.Seq
	}

	return nil
}

// validate checks that the record is internally plausible as the run of one
// chain: a non-empty expression, at least one chain member, and per-member
// pid/exit-code arrays that line up with the member list.
func (e Entry) validate() error {
	if e.Pipeline == "" {
		return fmt.Errorf("empty pipeline expression")
	}
	if len(e.Programs) == 0 {
		return fmt.Errorf("no chain members")
	}
	if len(e.ExitCodes) != 0 && len(e.ExitCodes) != len(e.Programs) {
		return fmt.Errorf("%d exit codes for %d chain members", len(e.ExitCodes), len(e.Programs))
	}
	if len(e.PIDs) != 0 && len(e.PIDs) != len(e.Programs) {
		return fmt.Errorf("%d pids for %d chain members", len(e.PIDs), len(e.Programs))
	}
	return nil
}

func short(hash string) string {
	if len(hash) > 16 {
		return hash[:16] + "..."
	}
	return hash
}

// Tail returns the last n entries from the audit log. Records that fail to
// parse are skipped; Verify is the integrity check, Tail is for display.
func Tail(path string, n int) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	lines := splitLines(data)
	if n > len(lines) {
		n = len(lines)
	}

	entries := make([]Entry, 0, n)
	for _, line := range lines[len(lines)-n:] {
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
