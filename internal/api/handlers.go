// internal/api/handlers.go
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Corphon/SocialGenius/internal/errors"
	"github.com/Corphon/SocialGenius/internal/models"
	"github.com/Corphon/SocialGenius/internal/services"
	"github.com/Corphon/SocialGenius/internal/utils"
)

// Handler serves the content creator API
type Handler struct {
	CarouselService *services.CarouselService
	PostService     *services.ImagePostService
	ReelService     *services.ReelService
	Metrics         *utils.MetricsCollector
	Response        *ResponseHelper

	// background video batches run on ctx, which ends with the server
	ctx    context.Context
	wg     sync.WaitGroup
	logger *utils.Logger
}

type TopicRequest struct {
	Topic string `json:"topic"`
}

type ScriptRequest struct {
	Title  string `json:"title"`
	Script string `json:"script"`
}

func NewHandler(ctx context.Context, carousel *services.CarouselService, posts *services.ImagePostService, reels *services.ReelService, metrics *utils.MetricsCollector) *Handler {
	if metrics == nil {
		metrics = utils.GetMetricsCollector()
	}
	return &Handler{
		CarouselService: carousel,
		PostService:     posts,
		ReelService:     reels,
		Metrics:         metrics,
		Response:        NewResponseHelper(),
		ctx:             ctx,
		logger:          utils.GetLogger().WithComponent("api"),
	}
}

// Wait blocks until every background batch started by the handler returned
func (h *Handler) Wait() {
	h.wg.Wait()
}

// bindTopic reads {"topic": ...}; an empty body counts as an empty topic
func (h *Handler) bindTopic(c *gin.Context) (string, bool) {
	var req TopicRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.Response.BadRequest(c, "Invalid request body.")
			return "", false
		}
	}
	return req.Topic, true
}

// ========================================
// Service
// ========================================

func (h *Handler) Health(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) GetContentTypes(c *gin.Context) {
	h.Response.Success(c, models.ContentTypes())
}

func (h *Handler) GetMetrics(c *gin.Context) {
	h.Response.Success(c, h.Metrics.GetMetrics())
}

// ========================================
// Carousel and image post
// ========================================

// CreateCarousel generates a carousel. With ?stream=true the slides are sent
// as server-sent events while their images are rendered.
func (h *Handler) CreateCarousel(c *gin.Context) {
	topic, ok := h.bindTopic(c)
	if !ok {
		return
	}

	if c.Query("stream") != "true" {
		result, err := h.CarouselService.Generate(c.Request.Context(), topic, nil)
		if err != nil {
			h.Response.ServiceError(c, err)
			return
		}
		h.Response.Success(c, result)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	result, err := h.CarouselService.Generate(c.Request.Context(), topic, func(slides []models.CarouselSlide) {
		c.SSEvent("slides", slides)
		c.Writer.Flush()
	})
	if err != nil {
		status, code := statusForError(err)
		c.Status(status)
		c.SSEvent("error", &APIError{Code: code, Message: apperrors.UserMessage(err)})
		c.Writer.Flush()
		return
	}
	c.SSEvent("done", result)
	c.Writer.Flush()
}

func (h *Handler) CreateImagePost(c *gin.Context) {
	topic, ok := h.bindTopic(c)
	if !ok {
		return
	}

	post, err := h.PostService.Generate(c.Request.Context(), topic)
	if err != nil {
		h.Response.ServiceError(c, err)
		return
	}
	h.Response.Success(c, post)
}

// ========================================
// Reel sessions
// ========================================

func (h *Handler) CreateReel(c *gin.Context) {
	session := h.ReelService.CreateSession()
	h.Response.Created(c, session.View())
}

func (h *Handler) ListReels(c *gin.Context) {
	sessions := h.ReelService.ListSessions()
	views := make([]models.ReelSessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, s.View())
	}
	h.Response.Success(c, views)
}

func (h *Handler) GetReel(c *gin.Context) {
	session, err := h.ReelService.GetSession(c.Param("id"))
	if err != nil {
		h.Response.ServiceError(c, err)
		return
	}
	h.Response.Success(c, session.View())
}

func (h *Handler) DeleteReel(c *gin.Context) {
	if err := h.ReelService.DeleteSession(c.Param("id")); err != nil {
		h.Response.ServiceError(c, err)
		return
	}
	h.Response.Success(c, nil, "Reel session deleted.")
}

// GenerateReelScript writes a new script for the session from a topic
func (h *Handler) GenerateReelScript(c *gin.Context) {
	topic, ok := h.bindTopic(c)
	if !ok {
		return
	}

	session, err := h.ReelService.GenerateScript(c.Request.Context(), c.Param("id"), topic)
	if err != nil {
		h.Response.ServiceError(c, err)
		return
	}
	h.Response.Success(c, session.View())
}

// SelectReelScript adopts a script supplied by the client
func (h *Handler) SelectReelScript(c *gin.Context) {
	var req ScriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "Invalid request body.")
		return
	}

	script := models.ReelScript{Title: req.Title, Script: req.Script}
	session, err := h.ReelService.SelectScript(c.Request.Context(), c.Param("id"), script)
	if err != nil {
		h.Response.ServiceError(c, err)
		return
	}
	h.Response.Success(c, session.View())
}

// GetReelScriptHTML renders the session's script with headings and bold text
func (h *Handler) GetReelScriptHTML(c *gin.Context) {
	session, err := h.ReelService.GetSession(c.Param("id"))
	if err != nil {
		h.Response.ServiceError(c, err)
		return
	}
	if session.Script == nil {
		h.Response.NotFound(c, services.MsgScriptRequired)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(services.FormatScript(session.Script.Script)))
}

// GenerateReelVideos starts the video batch of a session. By default the batch
// runs in the background and progress is followed over the websocket or the
// progress stream; ?wait=true holds the request until the batch finished.
func (h *Handler) GenerateReelVideos(c *gin.Context) {
	id := c.Param("id")

	if c.Query("wait") == "true" {
		session, err := h.ReelService.GenerateVideos(c.Request.Context(), id, nil)
		if err != nil {
			h.Response.ServiceError(c, err)
			return
		}
		h.Response.Success(c, session.View())
		return
	}

	h.wg.Add(1)
	session, done, err := h.ReelService.StartVideos(h.ctx, id, nil)
	if err != nil {
		h.wg.Done()
		h.Response.ServiceError(c, err)
		return
	}

	go func() {
		defer h.wg.Done()
		if err := <-done; err != nil {
			h.logger.Warn("Video batch ended with an error", map[string]interface{}{
				"session_id": id,
				"error":      err.Error(),
			})
		}
	}()

	h.Response.Accepted(c, session.View(), "Video generation started.")
}

// ClearReelScenes discards generated scenes so the next batch starts over
func (h *Handler) ClearReelScenes(c *gin.Context) {
	session, err := h.ReelService.ClearScenes(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Response.ServiceError(c, err)
		return
	}
	h.Response.Success(c, session.View())
}

// DownloadSceneVideo returns the clip of one scene as an mp4 attachment
func (h *Handler) DownloadSceneVideo(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorInvalidScene, "Scene index must be a number.")
		return
	}

	mimeType, data, err := h.ReelService.SceneVideo(c.Param("id"), index)
	if errors.Is(err, services.ErrUnreadableVideo) {
		h.logger.Error("Stored scene video is unreadable", map[string]interface{}{
			"session_id": c.Param("id"),
			"scene":      index + 1,
			"error":      err.Error(),
		})
		h.Response.InternalError(c, apperrors.UserMessage(err))
		return
	}
	if err != nil {
		h.Response.ServiceError(c, err)
		return
	}
	h.Response.DownloadResponse(c, data, fmt.Sprintf("socialgenius-scene-%d.mp4", index+1), mimeType)
}

// SubscribeReelProgress streams session updates as server-sent events until
// the batch completes or fails.
func (h *Handler) SubscribeReelProgress(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.ReelService.GetSession(id); err != nil {
		h.Response.ServiceError(c, err)
		return
	}

	tracker := h.ReelService.Progress().Tracker(id)
	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			c.SSEvent("progress", update)
			c.Writer.Flush()
			if update.Status == services.ProgressCompleted || update.Status == services.ProgressFailed {
				return
			}
		case <-heartbeat.C:
			c.SSEvent("heartbeat", gin.H{"time": time.Now().Unix()})
			c.Writer.Flush()
		}
	}
}
