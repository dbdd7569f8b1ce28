package asset

import "sync"

// journal records undo steps for every balance change so a batch of transfers
// can be rolled back. Entries are only retained while a snapshot is open.
type journal struct {
	mu      sync.Mutex
	entries []func()
	open    int
}

func (j *journal) append(undo func()) {
	j.mu.Lock()
	if j.open > 0 {
		j.entries = append(j.entries, undo)
	}
	j.mu.Unlock()
}

func (j *journal) snapshot() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.open++
	return len(j.entries)
}

func (j *journal) revert(id int) {
	j.mu.Lock()
	if id < 0 || id > len(j.entries) {
		j.mu.Unlock()
		return
	}
	undo := make([]func(), len(j.entries)-id)
	copy(undo, j.entries[id:])
	j.entries = j.entries[:id]
	j.close()
	j.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

func (j *journal) discard(id int) {
	j.mu.Lock()
	if id >= 0 && id <= len(j.entries) {
		j.close()
	}
	j.mu.Unlock()
}

func (j *journal) close() {
	if j.open > 0 {
		j.open--
	}
	if j.open == 0 {
		j.entries = nil
	}
}
