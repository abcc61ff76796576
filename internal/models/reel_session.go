// internal/models/reel_session.go
package models

import (
	"fmt"
	"time"
)

// ReelState is derived from a session, never stored
type ReelState string

const (
	ReelStateNoScript         ReelState = "NoScript"
	ReelStateScriptReady      ReelState = "ScriptReady"
	ReelStateScenesUnresolved ReelState = "ScenesUnresolved"
	ReelStateScenesGenerating ReelState = "ScenesGenerating"
	ReelStateScenesPartial    ReelState = "ScenesPartial"
	ReelStateScenesComplete   ReelState = "ScenesComplete"
)

const (
	LabelGenerateVideo  = "Generate Video from Script"
	LabelGenerating     = "Generating Video..."
	LabelRetryVideo     = "Retry Video Generation"
	labelRemainingClips = "Generate Remaining %d Clip(s)"
)

// ReelSession holds the state of one reel creator
type ReelSession struct {
	ID      string      `json:"id"`
	Topic   string      `json:"topic,omitempty"`
	Script  *ReelScript `json:"script,omitempty"`
	Scenes  []ReelScene `json:"scenes"`
	Busy    bool        `json:"busy"`
	Loading bool        `json:"loading"`

	// Error belongs to script generation, VideoError to the scene batch
	Error      string `json:"error,omitempty"`
	VideoError string `json:"videoError,omitempty"`
	Message    string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PendingScenes counts scenes without a video
func (s *ReelSession) PendingScenes() int {
	n := 0
	for _, scene := range s.Scenes {
		if !scene.Done() {
			n++
		}
	}
	return n
}

// State derives the workflow state from the session fields. ScriptReady only
// lasts while a new script is adopted and its cached scenes are looked up.
func (s *ReelSession) State() ReelState {
	switch {
	case s.Script == nil:
		return ReelStateNoScript
	case s.Loading:
		return ReelStateScriptReady
	case s.Busy:
		return ReelStateScenesGenerating
	case len(s.Scenes) == 0:
		return ReelStateScenesUnresolved
	case s.PendingScenes() == 0:
		return ReelStateScenesComplete
	default:
		return ReelStateScenesPartial
	}
}

// NeedsGeneration reports whether the generate-videos action is offered
func (s *ReelSession) NeedsGeneration() bool {
	return s.Script != nil && (len(s.Scenes) == 0 || s.PendingScenes() > 0)
}

// ButtonLabel is the label of the generate-videos action
func (s *ReelSession) ButtonLabel() string {
	if s.Busy && !s.Loading {
		return LabelGenerating
	}
	total, pending := len(s.Scenes), s.PendingScenes()
	if total > 0 && pending > 0 {
		if pending < total {
			return fmt.Sprintf(labelRemainingClips, pending)
		}
		return LabelRetryVideo
	}
	return LabelGenerateVideo
}

// Clone returns a deep copy safe to hand out while the session keeps changing
func (s *ReelSession) Clone() *ReelSession {
	c := *s
	if s.Script != nil {
		script := *s.Script
		c.Script = &script
	}
	c.Scenes = make([]ReelScene, len(s.Scenes))
	copy(c.Scenes, s.Scenes)
	return &c
}

// ReelSessionView is the JSON shape returned by the API, with derived fields
type ReelSessionView struct {
	*ReelSession
	State           ReelState `json:"state"`
	ButtonLabel     string    `json:"buttonLabel"`
	NeedsGeneration bool      `json:"needsGeneration"`
}

func (s *ReelSession) View() ReelSessionView {
	return ReelSessionView{
		ReelSession:     s,
		State:           s.State(),
		ButtonLabel:     s.ButtonLabel(),
		NeedsGeneration: s.NeedsGeneration(),
	}
}
