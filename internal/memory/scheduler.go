package memory

import (
	"context"
	"errors"
	"time"

	"github.com/opalchat/opal/internal/db"
	"github.com/opalchat/opal/internal/logging"
)

// Scheduler runs inactivity-debounced profile regeneration. Each Schedule
// call is a one-shot fire-and-forget timer; there is no cancellation handle.
// A user returning before the delay elapses is detected by re-checking the
// session's last-active timestamp, so overlapping schedules for the same
// session are safe, just redundant.
type Scheduler struct {
	store      *db.Store
	summarizer *Summarizer
}

// NewScheduler creates a scheduler. The store handle is owned by the process,
// not by any live connection; background runs never share a connection's state.
func NewScheduler(store *db.Store, summarizer *Summarizer) *Scheduler {
	return &Scheduler{store: store, summarizer: summarizer}
}

// Schedule queues a summarization check for the session, to run after delay.
// If the session saw activity after disconnectedAt by the time the delay
// elapses, the run is skipped.
func (s *Scheduler) Schedule(sessionID string, disconnectedAt time.Time, delay time.Duration) {
	logging.Infof("Summarization scheduled for session %s in %s", sessionID, delay)
	go s.run(sessionID, disconnectedAt, delay)
}

func (s *Scheduler) run(sessionID string, disconnectedAt time.Time, delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			logging.Errorf("Summarization task panic for session %s: %v", sessionID, r)
		}
	}()

	time.Sleep(delay)

	ctx := context.Background()
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			// Session deleted while we waited; accepted race.
			logging.Infof("Summarization cancelled: session %s no longer exists", sessionID)
			return
		}
		logging.Errorf("Summarization check failed for session %s: %v", sessionID, err)
		return
	}

	if sess.LastActiveAt.After(disconnectedAt) {
		logging.Infof("Summarization cancelled: session %s became active again", sessionID)
		return
	}

	if err := s.summarizer.Regenerate(ctx, sessionID); err != nil {
		logging.Errorf("Memory regeneration failed for session %s: %v", sessionID, err)
	}
}
