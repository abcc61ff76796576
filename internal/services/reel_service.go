// internal/services/reel_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	apperrors "github.com/Corphon/SocialGenius/internal/errors"
	"github.com/Corphon/SocialGenius/internal/models"
	"github.com/Corphon/SocialGenius/internal/storage"
	"github.com/Corphon/SocialGenius/internal/utils"
)

const (
	MsgReelTopicRequired    = "Please enter an idea for your reel."
	MsgScriptRequired       = "Generate a script before generating videos."
	MsgScriptFieldsRequired = "A script needs both a title and content."
	MsgSessionBusy          = "This reel is still generating. Wait for it to finish."
	MsgSessionNotFound      = "Reel session not found."

	MsgAnalyzingScript   = "Analyzing script to create video scenes..."
	MsgNoVideosGenerated = "Could not generate any videos. Please try again or refine your script."
	msgFoundScenes       = "Found %d scenes. Preparing to generate..."
	msgGeneratingScene   = "Generating video for scene %d of %d. This can take a few minutes..."
)

// ErrUnreadableVideo marks a finished scene whose stored video cannot be decoded
var ErrUnreadableVideo = errors.New("scene video is not a valid data URI")

// SessionObserver receives a snapshot every time a session changes
type SessionObserver func(*models.ReelSession)

type reelEntry struct {
	mu      sync.Mutex
	session *models.ReelSession
}

// ReelService owns every reel session and drives the script and video
// workflows. While a session is busy every other generate call on it is
// rejected with a ConflictError.
type ReelService struct {
	gen      *GenerationService
	cache    *storage.ReelCache
	progress *ProgressService
	metrics  *utils.MetricsCollector
	logger   *utils.Logger
	ttl      time.Duration

	sessions map[string]*reelEntry
	mutex    sync.RWMutex
}

func NewReelService(gen *GenerationService, cache *storage.ReelCache, progress *ProgressService, ttl time.Duration) *ReelService {
	if progress == nil {
		progress = NewProgressService()
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &ReelService{
		gen:      gen,
		cache:    cache,
		progress: progress,
		metrics:  utils.GetMetricsCollector(),
		logger:   utils.GetLogger().WithComponent("reel"),
		ttl:      ttl,
		sessions: make(map[string]*reelEntry),
	}
}

// Progress exposes the hub that session updates are published to
func (s *ReelService) Progress() *ProgressService {
	return s.progress
}

// ------------------------------------------------------------------
// Session registry
// ------------------------------------------------------------------

func (s *ReelService) CreateSession() *models.ReelSession {
	now := time.Now()
	session := &models.ReelSession{
		ID:        ulid.Make().String(),
		Scenes:    []models.ReelScene{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mutex.Lock()
	s.sessions[session.ID] = &reelEntry{session: session}
	count := len(s.sessions)
	s.mutex.Unlock()

	s.metrics.SetGauge("reel.sessions", int64(count))
	return session.Clone()
}

func (s *ReelService) GetSession(id string) (*models.ReelSession, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// ListSessions returns snapshots ordered by creation time
func (s *ReelService) ListSessions() []*models.ReelSession {
	s.mutex.RLock()
	entries := make([]*reelEntry, 0, len(s.sessions))
	for _, e := range s.sessions {
		entries = append(entries, e)
	}
	s.mutex.RUnlock()

	out := make([]*models.ReelSession, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.session.Clone())
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// DeleteSession removes an idle session. The cache entry of its script is kept.
func (s *ReelService) DeleteSession(id string) error {
	e, err := s.entry(id)
	if err != nil {
		return err
	}

	e.mu.Lock()
	busy := e.session.Busy
	e.mu.Unlock()
	if busy {
		return apperrors.NewConflictError(MsgSessionBusy, nil)
	}

	s.mutex.Lock()
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mutex.Unlock()

	s.progress.Remove(id)
	s.metrics.SetGauge("reel.sessions", int64(count))
	return nil
}

// Sweep removes idle sessions untouched for longer than the session TTL
func (s *ReelService) Sweep() int {
	cutoff := time.Now().Add(-s.ttl)

	s.mutex.Lock()
	var expired []string
	for id, e := range s.sessions {
		e.mu.Lock()
		if !e.session.Busy && e.session.UpdatedAt.Before(cutoff) {
			expired = append(expired, id)
			delete(s.sessions, id)
		}
		e.mu.Unlock()
	}
	count := len(s.sessions)
	s.mutex.Unlock()

	for _, id := range expired {
		s.progress.Remove(id)
	}
	s.progress.CleanupIdle(s.ttl)
	s.metrics.SetGauge("reel.sessions", int64(count))
	return len(expired)
}

func (s *ReelService) entry(id string) (*reelEntry, error) {
	s.mutex.RLock()
	e, ok := s.sessions[id]
	s.mutex.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError(MsgSessionNotFound, fmt.Errorf("session %s", id))
	}
	return e, nil
}

// update applies fn under the session lock and returns a snapshot
func (s *ReelService) update(e *reelEntry, fn func(*models.ReelSession)) *models.ReelSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.session)
	e.session.UpdatedAt = time.Now()
	return e.session.Clone()
}

// emit forwards a snapshot to the caller's observer and the progress hub
func (s *ReelService) emit(snapshot *models.ReelSession, status string, onUpdate SessionObserver) {
	if onUpdate != nil {
		onUpdate(snapshot)
	}

	progress := 0
	if total := len(snapshot.Scenes); total > 0 {
		progress = (total - snapshot.PendingScenes()) * 100 / total
	}
	view := snapshot.View()
	s.progress.Publish(ProgressUpdate{
		SessionID: snapshot.ID,
		Progress:  progress,
		Message:   snapshot.Message,
		Status:    status,
		Session:   &view,
	})
}

// loadCachedScenes treats any cache failure as a miss
func (s *ReelService) loadCachedScenes(ctx context.Context, script models.ReelScript) []models.ReelScene {
	scenes, err := s.cache.Load(ctx, script)
	switch {
	case err != nil:
		s.gen.metrics.RecordCache("corrupt")
		s.logger.Error("Failed to read from cache", map[string]interface{}{"error": err.Error()})
		return []models.ReelScene{}
	case scenes == nil:
		s.gen.metrics.RecordCache("miss")
		return []models.ReelScene{}
	}
	s.gen.metrics.RecordCache("hit")
	return scenes
}

// ------------------------------------------------------------------
// Script
// ------------------------------------------------------------------

// GenerateScript replaces the session's script with a new one for topic and
// loads any scenes cached for it.
func (s *ReelService) GenerateScript(ctx context.Context, id, topic string) (*models.ReelSession, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	topic = strings.TrimSpace(topic)
	e.mu.Lock()
	if e.session.Busy {
		e.mu.Unlock()
		return nil, apperrors.NewConflictError(MsgSessionBusy, nil)
	}
	if topic == "" {
		e.session.Error = MsgReelTopicRequired
		e.mu.Unlock()
		return nil, apperrors.NewInputError(MsgReelTopicRequired)
	}
	e.session.Busy = true
	e.session.Loading = true
	e.session.Topic = topic
	e.session.Error = ""
	e.session.Script = nil
	e.session.Scenes = []models.ReelScene{}
	e.session.VideoError = ""
	e.session.Message = ""
	e.session.UpdatedAt = time.Now()
	snapshot := e.session.Clone()
	e.mu.Unlock()
	s.emit(snapshot, ProgressRunning, nil)

	script, genErr := s.gen.GenerateReelScript(ctx, topic)

	var scenes []models.ReelScene
	if genErr == nil {
		snapshot = s.update(e, func(rs *models.ReelSession) { rs.Script = script })
		s.emit(snapshot, ProgressRunning, nil)
		scenes = s.loadCachedScenes(ctx, *script)
	}

	snapshot = s.update(e, func(rs *models.ReelSession) {
		rs.Busy = false
		rs.Loading = false
		if genErr != nil {
			rs.Error = apperrors.UserMessage(genErr)
			return
		}
		rs.Script = script
		rs.Scenes = scenes
	})

	if genErr != nil {
		s.emit(snapshot, ProgressFailed, nil)
		return snapshot, genErr
	}
	s.emit(snapshot, ProgressIdle, nil)
	return snapshot, nil
}

// SelectScript adopts an existing script, restoring its cached scenes
func (s *ReelService) SelectScript(ctx context.Context, id string, script models.ReelScript) (*models.ReelSession, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(script.Title) == "" || strings.TrimSpace(script.Script) == "" {
		return nil, apperrors.NewInputError(MsgScriptFieldsRequired)
	}

	e.mu.Lock()
	busy := e.session.Busy
	e.mu.Unlock()
	if busy {
		return nil, apperrors.NewConflictError(MsgSessionBusy, nil)
	}

	scenes := s.loadCachedScenes(ctx, script)

	e.mu.Lock()
	if e.session.Busy {
		e.mu.Unlock()
		return nil, apperrors.NewConflictError(MsgSessionBusy, nil)
	}
	selected := script
	e.session.Script = &selected
	e.session.Scenes = scenes
	e.session.Error = ""
	e.session.VideoError = ""
	e.session.Message = ""
	e.session.UpdatedAt = time.Now()
	snapshot := e.session.Clone()
	e.mu.Unlock()

	s.emit(snapshot, ProgressIdle, nil)
	return snapshot, nil
}

// ------------------------------------------------------------------
// Videos
// ------------------------------------------------------------------

// GenerateVideos produces a clip for every scene that lacks one.
//
// Scene prompts are derived from the script only when the session has no
// scenes yet. Scenes are processed one at a time and a failed scene never
// stops the batch. The full scene list is cached when at least one scene has
// a video. The returned error is non-nil only when the batch could not start
// or the scene prompts could not be derived; per-scene and batch outcomes are
// reported on the session itself.
func (s *ReelService) GenerateVideos(ctx context.Context, id string, onUpdate SessionObserver) (*models.ReelSession, error) {
	batch, err := s.claim(id)
	if err != nil {
		return nil, err
	}
	return s.runVideos(ctx, batch, onUpdate)
}

// StartVideos claims the session like GenerateVideos and runs the batch on its
// own goroutine. The returned snapshot is already busy; done receives the
// batch result and is then closed.
func (s *ReelService) StartVideos(ctx context.Context, id string, onUpdate SessionObserver) (*models.ReelSession, <-chan error, error) {
	batch, err := s.claim(id)
	if err != nil {
		return nil, nil, err
	}

	done := make(chan error, 1)
	go func() {
		defer close(done)
		_, err := s.runVideos(ctx, batch, onUpdate)
		done <- err
	}()
	return batch.snapshot, done, nil
}

type videoBatch struct {
	id       string
	entry    *reelEntry
	script   models.ReelScript
	scenes   []models.ReelScene
	snapshot *models.ReelSession
}

// claim checks the preconditions of a video batch and marks the session busy
func (s *ReelService) claim(id string) (*videoBatch, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session.Script == nil {
		return nil, apperrors.NewInputError(MsgScriptRequired)
	}
	if e.session.Busy {
		return nil, apperrors.NewConflictError(MsgSessionBusy, nil)
	}
	e.session.Busy = true
	e.session.VideoError = ""
	e.session.UpdatedAt = time.Now()

	s.metrics.IncGauge("reel.busy_sessions")
	return &videoBatch{
		id:       id,
		entry:    e,
		script:   *e.session.Script,
		scenes:   append([]models.ReelScene(nil), e.session.Scenes...),
		snapshot: e.session.Clone(),
	}, nil
}

func (s *ReelService) runVideos(ctx context.Context, batch *videoBatch, onUpdate SessionObserver) (*models.ReelSession, error) {
	defer s.metrics.DecGauge("reel.busy_sessions")
	id, e, script, scenes := batch.id, batch.entry, batch.script, batch.scenes

	if len(scenes) == 0 {
		snapshot := s.update(e, func(rs *models.ReelSession) { rs.Message = MsgAnalyzingScript })
		s.emit(snapshot, ProgressRunning, onUpdate)

		prompts, err := s.gen.GenerateVideoPromptsFromScript(ctx, script.Script)
		if err != nil {
			snapshot = s.update(e, func(rs *models.ReelSession) {
				rs.Busy = false
				rs.Message = ""
				rs.VideoError = apperrors.UserMessage(err)
			})
			s.emit(snapshot, ProgressFailed, onUpdate)
			return snapshot, err
		}

		scenes = make([]models.ReelScene, len(prompts))
		for i, prompt := range prompts {
			scenes[i] = models.ReelScene{Prompt: prompt}
		}
		s.update(e, func(rs *models.ReelSession) { rs.Message = fmt.Sprintf(msgFoundScenes, len(prompts)) })
	}

	for i := range scenes {
		if !scenes[i].Done() {
			scenes[i].IsLoading = true
			scenes[i].Error = ""
		}
	}
	snapshot := s.update(e, func(rs *models.ReelSession) {
		rs.Scenes = append([]models.ReelScene(nil), scenes...)
	})
	s.emit(snapshot, ProgressRunning, onUpdate)

	for i := range scenes {
		if scenes[i].Done() || !scenes[i].IsLoading {
			continue
		}

		snapshot = s.update(e, func(rs *models.ReelSession) {
			rs.Message = fmt.Sprintf(msgGeneratingScene, i+1, len(scenes))
		})
		s.emit(snapshot, ProgressRunning, onUpdate)

		videoURL, err := s.gen.GenerateVideo(ctx, scenes[i].Prompt)
		scenes[i].IsLoading = false
		if err != nil {
			scenes[i].Error = apperrors.UserMessage(err)
			s.logger.Warn("Failed to generate video for scene", map[string]interface{}{
				"session_id": id,
				"scene":      i + 1,
				"error":      err.Error(),
			})
		} else {
			scenes[i].VideoURL = videoURL
		}

		snapshot = s.update(e, func(rs *models.ReelSession) {
			rs.Scenes = append([]models.ReelScene(nil), scenes...)
		})
		s.emit(snapshot, ProgressRunning, onUpdate)
	}

	generated, failed := 0, 0
	for _, scene := range scenes {
		if scene.Done() {
			generated++
		}
		if scene.Error != "" {
			failed++
		}
	}

	videoError := ""
	status := ProgressCompleted
	if generated > 0 {
		if err := s.cache.Save(ctx, script, scenes); err != nil {
			s.gen.metrics.RecordCache("write_failed")
			s.logger.Error("Failed to save to cache", map[string]interface{}{"session_id": id, "error": err.Error()})
			videoError = apperrors.UserMessage(err)
		} else {
			s.gen.metrics.RecordCache("write")
		}
	}
	if generated == 0 && failed > 0 {
		videoError = MsgNoVideosGenerated
		status = ProgressFailed
	}

	snapshot = s.update(e, func(rs *models.ReelSession) {
		rs.Busy = false
		rs.Message = ""
		rs.VideoError = videoError
	})
	s.emit(snapshot, status, onUpdate)

	s.logger.Info("Reel video batch finished", map[string]interface{}{
		"session_id": id,
		"generated":  generated,
		"failed":     failed,
		"total":      len(scenes),
	})
	return snapshot, nil
}

// ClearScenes drops the session's scenes and the cache entry of its script so
// the next batch starts over from scene extraction.
func (s *ReelService) ClearScenes(ctx context.Context, id string) (*models.ReelSession, error) {
	e, err := s.entry(id)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.session.Busy {
		e.mu.Unlock()
		return nil, apperrors.NewConflictError(MsgSessionBusy, nil)
	}
	if e.session.Script == nil {
		e.mu.Unlock()
		return nil, apperrors.NewInputError(MsgScriptRequired)
	}
	script := *e.session.Script
	e.session.Scenes = []models.ReelScene{}
	e.session.VideoError = ""
	e.session.UpdatedAt = time.Now()
	snapshot := e.session.Clone()
	e.mu.Unlock()

	if err := s.cache.Remove(ctx, script); err != nil {
		s.logger.Warn("Failed to remove cache entry", map[string]interface{}{"session_id": id, "error": err.Error()})
	}
	s.emit(snapshot, ProgressIdle, nil)
	return snapshot, nil
}

// SceneVideo returns the decoded video of scene index (zero-based)
func (s *ReelService) SceneVideo(id string, index int) (string, []byte, error) {
	session, err := s.GetSession(id)
	if err != nil {
		return "", nil, err
	}
	if index < 0 || index >= len(session.Scenes) || !session.Scenes[index].Done() {
		return "", nil, apperrors.NewNotFoundError("Scene video not found.", nil)
	}
	mimeType, data, err := ParseDataURI(session.Scenes[index].VideoURL)
	if err != nil {
		return "", nil, apperrors.NewProcessingError("Scene video is unreadable.", fmt.Errorf("%w: %v", ErrUnreadableVideo, err))
	}
	return mimeType, data, nil
}
