package realtime

import (
	"log"
	"sync"
	"time"

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/repository"
)

// saveTimer is the explicit debounce handle each room owns. Arming it
// supersedes any previously armed timer.
type saveTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

func (t *saveTimer) Arm(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, fn)
}

func (t *saveTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Saver coalesces bursts of document mutations into a single durable write
// per quiet window (trailing-edge debounce). A failed write is logged and
// not retried here; the next mutation re-arms the timer and tries again.
type Saver struct {
	boards repository.BoardRepository
	window time.Duration
}

func NewSaver(boards repository.BoardRepository, window time.Duration) *Saver {
	return &Saver{
		boards: boards,
		window: window,
	}
}

// Schedule arms the room's debounce timer. Calls within the window collapse
// into one write containing the state after the last mutation.
func (s *Saver) Schedule(room *Room) {
	room.save.Arm(s.window, func() {
		s.Flush(room)
	})
}

// Flush performs the durable write immediately and updates the room's
// materialized snapshot on success.
func (s *Saver) Flush(room *Room) {
	snapshot := room.EncodeSnapshot()

	if err := s.boards.Write(&snapshot); err != nil {
		log.Printf("failed to persist board %s: %v", room.ProjectID, err)
		return
	}

	room.setSnapshot(snapshot)
}
