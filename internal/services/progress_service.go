// internal/services/progress_service.go
package services

import (
	"sync"
	"time"

	"github.com/Corphon/SocialGenius/internal/models"
)

const (
	ProgressIdle      = "idle"
	ProgressRunning   = "running"
	ProgressCompleted = "completed"
	ProgressFailed    = "failed"
)

// ProgressUpdate is one snapshot pushed to subscribers of a reel session
type ProgressUpdate struct {
	SessionID string                  `json:"session_id"`
	Progress  int                     `json:"progress"` // 0-100
	Message   string                  `json:"message"`
	Status    string                  `json:"status"`
	Session   *models.ReelSessionView `json:"session,omitempty"`
	Timestamp time.Time               `json:"timestamp"`
}

// ProgressTracker fans updates for one session out to its subscribers
type ProgressTracker struct {
	SessionID   string
	last        ProgressUpdate
	UpdateTime  time.Time
	Subscribers map[chan ProgressUpdate]bool
	Done        chan struct{}
	closed      bool
	mutex       sync.Mutex
}

// ProgressService manages one tracker per reel session
type ProgressService struct {
	trackers map[string]*ProgressTracker
	mutex    sync.RWMutex
}

func NewProgressService() *ProgressService {
	return &ProgressService{
		trackers: make(map[string]*ProgressTracker),
	}
}

// Tracker returns the tracker for sessionID, creating it if needed
func (s *ProgressService) Tracker(sessionID string) *ProgressTracker {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if tracker, exists := s.trackers[sessionID]; exists {
		return tracker
	}

	now := time.Now()
	tracker := &ProgressTracker{
		SessionID:   sessionID,
		last:        ProgressUpdate{SessionID: sessionID, Status: ProgressIdle, Timestamp: now},
		UpdateTime:  now,
		Subscribers: make(map[chan ProgressUpdate]bool),
		Done:        make(chan struct{}),
	}
	s.trackers[sessionID] = tracker
	return tracker
}

func (s *ProgressService) GetTracker(sessionID string) (*ProgressTracker, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	tracker, exists := s.trackers[sessionID]
	return tracker, exists
}

// Publish forwards update to the session's subscribers
func (s *ProgressService) Publish(update ProgressUpdate) {
	s.Tracker(update.SessionID).Publish(update)
}

// Remove closes and forgets the tracker of a deleted session
func (s *ProgressService) Remove(sessionID string) {
	s.mutex.Lock()
	tracker, exists := s.trackers[sessionID]
	delete(s.trackers, sessionID)
	s.mutex.Unlock()

	if exists {
		tracker.Close()
	}
}

// CleanupIdle drops trackers without subscribers that have not changed for maxAge
func (s *ProgressService) CleanupIdle(maxAge time.Duration) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	now := time.Now()
	for id, tracker := range s.trackers {
		tracker.mutex.Lock()
		idle := len(tracker.Subscribers) == 0 && tracker.last.Status != ProgressRunning
		isOld := now.Sub(tracker.UpdateTime) > maxAge
		tracker.mutex.Unlock()

		if idle && isOld {
			delete(s.trackers, id)
			tracker.Close()
			removed++
		}
	}
	return removed
}

// Publish records update and sends it to every subscriber without blocking.
// A subscriber whose buffer is full misses the update.
func (t *ProgressTracker) Publish(update ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		return
	}
	if update.Timestamp.IsZero() {
		update.Timestamp = time.Now()
	}
	t.last = update
	t.UpdateTime = update.Timestamp

	for subscriber := range t.Subscribers {
		select {
		case subscriber <- update:
		default:
		}
	}
}

// Last returns the most recent update
func (t *ProgressTracker) Last() ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.last
}

// Subscribe returns a channel that first receives the current state
func (t *ProgressTracker) Subscribe() chan ProgressUpdate {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	subscriber := make(chan ProgressUpdate, 10)
	if t.closed {
		close(subscriber)
		return subscriber
	}
	t.Subscribers[subscriber] = true
	subscriber <- t.last
	return subscriber
}

func (t *ProgressTracker) Unsubscribe(subscriber chan ProgressUpdate) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if _, ok := t.Subscribers[subscriber]; ok {
		delete(t.Subscribers, subscriber)
		close(subscriber)
	}
}

// Close ends every subscription and signals Done
func (t *ProgressTracker) Close() {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	for subscriber := range t.Subscribers {
		close(subscriber)
	}
	t.Subscribers = make(map[chan ProgressUpdate]bool)
	close(t.Done)
}
