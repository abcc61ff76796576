package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Corphon/SocialGenius/internal/config"
	"github.com/Corphon/SocialGenius/internal/llm"
	"github.com/Corphon/SocialGenius/internal/models"
	"github.com/Corphon/SocialGenius/internal/services"
	"github.com/Corphon/SocialGenius/internal/storage"
	"github.com/Corphon/SocialGenius/internal/utils"
)

// stubProvider answers every capability instantly from fixed text
type stubProvider struct {
	failText bool
}

func (p *stubProvider) Initialize(map[string]string) error { return nil }
func (p *stubProvider) GetName() string                    { return "stub" }

func (p *stubProvider) GenerateText(ctx context.Context, req llm.TextRequest) (*llm.TextResponse, error) {
	if p.failText {
		return nil, errors.New("upstream 503")
	}
	switch {
	case strings.HasPrefix(req.Prompt, "Create a carousel plan"):
		return &llm.TextResponse{Text: `[{"imagePrompt":"a","caption":"one"},{"imagePrompt":"b","caption":"two"},{"imagePrompt":"c","caption":"three"}]`}, nil
	case strings.HasPrefix(req.Prompt, "Generate content for a single"):
		return &llm.TextResponse{Text: `{"imagePrompt":"latte","caption":"Coffee time #coffee"}`}, nil
	case strings.HasPrefix(req.Prompt, "Based on the following reel script"):
		return &llm.TextResponse{Text: `["pour","sip"]`}, nil
	case strings.HasPrefix(req.Prompt, "Take the following script"):
		return &llm.TextResponse{Text: `{"title":"Coffee","script":"## Coffee"}`}, nil
	default:
		return &llm.TextResponse{Text: "## Coffee"}, nil
	}
}

func (p *stubProvider) GenerateImage(ctx context.Context, req llm.ImageRequest) (*llm.ImageResponse, error) {
	return &llm.ImageResponse{Images: [][]byte{[]byte("img")}, MIMEType: req.MIMEType}, nil
}

func (p *stubProvider) StartVideo(ctx context.Context, req llm.VideoRequest) (*llm.VideoJob, error) {
	return &llm.VideoJob{Name: req.Prompt, Done: true, URI: "https://files/" + req.Prompt}, nil
}

func (p *stubProvider) PollVideo(ctx context.Context, job *llm.VideoJob) (*llm.VideoJob, error) {
	return job, nil
}

func (p *stubProvider) DownloadVideo(ctx context.Context, uri string) ([]byte, string, error) {
	return []byte("mp4:" + uri), "video/mp4", nil
}

func newTestRouter(t *testing.T, p llm.Provider) *Router {
	t.Helper()
	return newTestRouterWithStore(t, p, storage.NewMemoryStore(100, 1<<20, time.Hour))
}

func newTestRouterWithStore(t *testing.T, p llm.Provider, store storage.KeyValueStore) *Router {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.GetLogger().Enable(false)

	collector := utils.NewMetricsCollector()
	gen := services.NewGenerationService(p, time.Millisecond, utils.NewGenerationMetrics(collector))
	cache := storage.NewReelCache(store)
	reels := services.NewReelService(gen, cache, services.NewProgressService(), time.Hour)

	h := NewHandler(context.Background(),
		services.NewCarouselService(gen),
		services.NewImagePostService(gen),
		reels,
		collector,
	)
	cfg := &config.Config{DebugMode: true, AllowedOrigins: []string{"*"}}
	return SetupRouter(cfg, h)
}

func do(r *Router, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.Engine.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     *APIError       `json:"error"`
	RequestID string          `json:"request_id"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("bad body %q: %v", w.Body.String(), err)
	}
	return env
}

type sessionBody struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Label  string `json:"buttonLabel"`
	Busy   bool   `json:"busy"`
	Scenes []struct {
		VideoURL string `json:"videoUrl"`
	} `json:"scenes"`
}

func TestHealthCarriesRequestID(t *testing.T) {
	r := newTestRouter(t, &stubProvider{})

	w := do(r, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	env := decode(t, w)
	if !env.Success || env.RequestID == "" || env.RequestID != w.Header().Get(requestIDHeader) {
		t.Fatalf("env = %+v header = %q", env, w.Header().Get(requestIDHeader))
	}
}

func TestCarouselEndpoint(t *testing.T) {
	r := newTestRouter(t, &stubProvider{})

	w := do(r, http.MethodPost, "/api/carousel", `{"topic":"coffee"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	var result services.CarouselResult
	if err := json.Unmarshal(decode(t, w).Data, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Slides) != 3 || result.Slides[0].ImageURL == "" {
		t.Fatalf("result = %+v", result)
	}

	w = do(r, http.MethodPost, "/api/carousel", `{"topic":"   "}`)
	env := decode(t, w)
	if w.Code != http.StatusBadRequest || env.Error.Code != ErrorInvalidInput || env.Error.Message != services.MsgCarouselTopicRequired {
		t.Fatalf("status = %d env = %+v", w.Code, env.Error)
	}
}

func TestCarouselStream(t *testing.T) {
	r := newTestRouter(t, &stubProvider{})

	w := do(r, http.MethodPost, "/api/carousel?stream=true", `{"topic":"coffee"}`)
	body := w.Body.String()
	if got := strings.Count(body, "event:slides"); got != 4 {
		t.Fatalf("slide events = %d in %q", got, body)
	}
	if !strings.Contains(body, "event:done") {
		t.Fatalf("no done event in %q", body)
	}
}

func TestImagePostEndpoint(t *testing.T) {
	r := newTestRouter(t, &stubProvider{})

	w := do(r, http.MethodPost, "/api/posts", `{"topic":"coffee"}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Coffee time #coffee") {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
}

func TestGenerationFailureIsBadGateway(t *testing.T) {
	r := newTestRouter(t, &stubProvider{failText: true})

	w := do(r, http.MethodPost, "/api/posts", `{"topic":"coffee"}`)
	env := decode(t, w)
	if w.Code != http.StatusBadGateway || env.Error.Message != services.MsgPostContentFailed {
		t.Fatalf("status = %d error = %+v", w.Code, env.Error)
	}
	if strings.Contains(w.Body.String(), "upstream 503") {
		t.Fatal("technical cause leaked to client")
	}
}

func TestReelWorkflow(t *testing.T) {
	r := newTestRouter(t, &stubProvider{})

	w := do(r, http.MethodPost, "/api/reels", "")
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}
	var session sessionBody
	json.Unmarshal(decode(t, w).Data, &session)
	if session.State != "NoScript" {
		t.Fatalf("state = %s", session.State)
	}
	base := "/api/reels/" + session.ID

	if w := do(r, http.MethodPost, base+"/videos", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("videos without script status = %d", w.Code)
	}

	w = do(r, http.MethodPost, base+"/script", `{"topic":"coffee"}`)
	json.Unmarshal(decode(t, w).Data, &session)
	if w.Code != http.StatusOK || session.State != "ScenesUnresolved" {
		t.Fatalf("script status = %d state = %s", w.Code, session.State)
	}

	w = do(r, http.MethodGet, base+"/script/html", "")
	if w.Body.String() != "<h2>Coffee</h2>" {
		t.Fatalf("html = %q", w.Body.String())
	}

	w = do(r, http.MethodPost, base+"/videos?wait=true", "")
	json.Unmarshal(decode(t, w).Data, &session)
	if w.Code != http.StatusOK || session.State != "ScenesComplete" || len(session.Scenes) != 2 {
		t.Fatalf("videos status = %d session = %+v", w.Code, session)
	}

	w = do(r, http.MethodGet, base+"/scenes/1/video", "")
	if w.Code != http.StatusOK || w.Body.String() != "mp4:https://files/sip" {
		t.Fatalf("download status = %d body = %q", w.Code, w.Body)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="socialgenius-scene-2.mp4"` {
		t.Fatalf("disposition = %q", cd)
	}
	if w := do(r, http.MethodGet, base+"/scenes/x/video", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad index status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, base+"/scenes/9/video", ""); w.Code != http.StatusNotFound {
		t.Fatalf("missing scene status = %d", w.Code)
	}

	w = do(r, http.MethodGet, "/api/reels", "")
	var list []sessionBody
	json.Unmarshal(decode(t, w).Data, &list)
	if len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}

	if w := do(r, http.MethodDelete, base, ""); w.Code != http.StatusOK {
		t.Fatalf("delete status = %d", w.Code)
	}
	if w := do(r, http.MethodGet, base, ""); w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d", w.Code)
	}
}

func TestReelVideosInBackground(t *testing.T) {
	r := newTestRouter(t, &stubProvider{})

	w := do(r, http.MethodPost, "/api/reels", "")
	var session sessionBody
	json.Unmarshal(decode(t, w).Data, &session)
	base := "/api/reels/" + session.ID

	do(r, http.MethodPut, base+"/script", `{"title":"Coffee","script":"## Coffee"}`)
	w = do(r, http.MethodPost, base+"/videos", "")
	json.Unmarshal(decode(t, w).Data, &session)
	if w.Code != http.StatusAccepted || !session.Busy {
		t.Fatalf("status = %d session = %+v", w.Code, session)
	}

	r.Handler.Wait()
	w = do(r, http.MethodGet, base, "")
	json.Unmarshal(decode(t, w).Data, &session)
	if session.State != "ScenesComplete" || session.Busy {
		t.Fatalf("session = %+v", session)
	}
}

func TestSelectScriptValidation(t *testing.T) {
	r := newTestRouter(t, &stubProvider{})
	w := do(r, http.MethodPost, "/api/reels", "")
	var session sessionBody
	json.Unmarshal(decode(t, w).Data, &session)

	w = do(r, http.MethodPut, "/api/reels/"+session.ID+"/script", `{"title":"","script":"x"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	w = do(r, http.MethodPut, "/api/reels/"+session.ID+"/script", `not json`)
	if env := decode(t, w); w.Code != http.StatusBadRequest || env.Error.Code != ErrorBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestMetricsEndpointCountsRequests(t *testing.T) {
	r := newTestRouter(t, &stubProvider{})
	do(r, http.MethodGet, "/api/content-types", "")

	w := do(r, http.MethodGet, "/api/metrics", "")
	var snapshot struct {
		Counters map[string]int64 `json:"counters"`
	}
	json.Unmarshal(decode(t, w).Data, &snapshot)
	if snapshot.Counters["api.GET /api/content-types"] != 1 {
		t.Fatalf("counters = %v", snapshot.Counters)
	}
}

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	limiter := NewRateLimiter(2, time.Minute)
	engine := gin.New()
	engine.Use(RateLimitByIP(limiter, NewResponseHelper()))
	engine.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	codes := make([]int, 3)
	for i := range codes {
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = w.Code
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusNoContent || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}

	limiter.cleanup(time.Now().Add(2 * time.Minute))
	if len(limiter.visitors) != 0 {
		t.Fatal("expired window kept")
	}
}

func TestCORSConfig(t *testing.T) {
	if c := corsConfig([]string{"*"}); !c.AllowAllOrigins {
		t.Fatal("wildcard should allow all origins")
	}
	c := corsConfig([]string{"https://app.example.com"})
	if c.AllowAllOrigins || len(c.AllowOrigins) != 1 {
		t.Fatalf("config = %+v", c)
	}
}

func TestSanitizeErrorMessage(t *testing.T) {
	if got := sanitizeErrorMessage("GET https://x?key=abc failed"); got != "An internal error occurred" {
		t.Fatalf("got %q", got)
	}
	if got := sanitizeErrorMessage("Reel session not found."); got != "Reel session not found." {
		t.Fatalf("got %q", got)
	}
}

func TestClearReelScenes(t *testing.T) {
	r := newTestRouter(t, &stubProvider{})

	var session sessionBody
	json.Unmarshal(decode(t, do(r, http.MethodPost, "/api/reels", "")).Data, &session)
	base := "/api/reels/" + session.ID

	if w := do(r, http.MethodDelete, base+"/scenes", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("clear without script status = %d", w.Code)
	}

	do(r, http.MethodPut, base+"/script", `{"title":"Coffee","script":"## Coffee"}`)
	do(r, http.MethodPost, base+"/videos?wait=true", "")

	w := do(r, http.MethodDelete, base+"/scenes", "")
	json.Unmarshal(decode(t, w).Data, &session)
	if w.Code != http.StatusOK || session.State != "ScenesUnresolved" || len(session.Scenes) != 0 {
		t.Fatalf("status = %d session = %+v", w.Code, session)
	}

	// cache entry is gone, so selecting the script again restores nothing
	w = do(r, http.MethodPut, base+"/script", `{"title":"Coffee","script":"## Coffee"}`)
	json.Unmarshal(decode(t, w).Data, &session)
	if len(session.Scenes) != 0 {
		t.Fatalf("scenes = %+v", session.Scenes)
	}
}

func TestDownloadUnreadableSceneVideo(t *testing.T) {
	store := storage.NewMemoryStore(100, 1<<20, time.Hour)
	script := models.ReelScript{Title: "Coffee", Script: "## Coffee"}
	scenes := []models.ReelScene{{Prompt: "pour", VideoURL: "https://expired/link"}}
	if err := storage.NewReelCache(store).Save(context.Background(), script, scenes); err != nil {
		t.Fatal(err)
	}
	r := newTestRouterWithStore(t, &stubProvider{}, store)

	var session sessionBody
	json.Unmarshal(decode(t, do(r, http.MethodPost, "/api/reels", "")).Data, &session)
	base := "/api/reels/" + session.ID
	do(r, http.MethodPut, base+"/script", `{"title":"Coffee","script":"## Coffee"}`)

	w := do(r, http.MethodGet, base+"/scenes/0/video", "")
	env := decode(t, w)
	if w.Code != http.StatusInternalServerError || env.Error == nil || env.Error.Code != ErrorInternalError {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	if env.Error.Message != "Scene video is unreadable." {
		t.Fatalf("message = %q", env.Error.Message)
	}
}

func TestRejectedBackgroundBatchReleasesWait(t *testing.T) {
	r := newTestRouter(t, &stubProvider{})

	var session sessionBody
	json.Unmarshal(decode(t, do(r, http.MethodPost, "/api/reels", "")).Data, &session)

	if w := do(r, http.MethodPost, "/api/reels/"+session.ID+"/videos", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}

	waited := make(chan struct{})
	go func() {
		r.Handler.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait blocked after a rejected batch")
	}
}
