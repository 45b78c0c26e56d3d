// Package api exposes the progress gate over HTTP.
package api

import (
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Shoaib-2/websiteForYourPartner/pkg/httpx"
	"github.com/Shoaib-2/websiteForYourPartner/pkg/logging"
	"github.com/Shoaib-2/websiteForYourPartner/pkg/stage"
	"github.com/Shoaib-2/websiteForYourPartner/services/progress/internal/gate"
	"github.com/Shoaib-2/websiteForYourPartner/services/progress/internal/guard"
)

const (
	maxBodyBytes   = 16 << 10
	maxAgentLength = 80

	msgThrottled     = "Too many progress updates. Please try again in a minute."
	msgInvalidDay    = "Invalid completed day"
	msgOutOfSequence = "Progress step is out of sequence"
)

type Options struct {
	SecureCookies bool
	Logger        *zap.Logger
	// Pages serves /day/* once the guard lets a request through. Nil uses a
	// small JSON description of the stage.
	Pages http.Handler
	Now   func() time.Time
}

type Handler struct {
	gate   *gate.Service
	secure bool
	logger *zap.Logger
	pages  http.Handler
	now    func() time.Time
}

func New(svc *gate.Service, opts Options) *Handler {
	h := &Handler{
		gate:   svc,
		secure: opts.SecureCookies,
		logger: opts.Logger,
		pages:  opts.Pages,
		now:    opts.Now,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.pages == nil {
		h.pages = http.HandlerFunc(stagePage)
	}
	if h.now == nil {
		h.now = time.Now
	}
	return h
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging.Requests(h.logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/api/progress", func(api chi.Router) {
		api.Use(noStore)
		api.Get("/", h.getProgress)
		api.Post("/", h.postProgress)
	})

	r.Get("/journey", journeyPage)
	r.Route("/day", func(day chi.Router) {
		day.Use(guard.Middleware(h.gate, h.logger))
		day.Handle("/*", h.pages)
	})
	return r
}

func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	res := h.gate.Resolve(gate.ReadTokens(r))
	if res.Reissue {
		gate.SetProgressCookie(w, res.Token, h.secure)
		gate.ClearLegacyCookie(w)
	}
	httpx.WriteJSON(w, http.StatusOK, progressResponse{OK: true, Unlocked: res.Unlocked})
}

type progressRequest struct {
	DayCompleted *float64 `json:"dayCompleted"`
}

type progressResponse struct {
	OK              bool `json:"ok"`
	Unlocked        int  `json:"unlocked"`
	AlreadyUnlocked bool `json:"alreadyUnlocked,omitempty"`
}

func (h *Handler) postProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := httpx.ReadJSON(r, &req, maxBodyBytes); err != nil {
		req = progressRequest{}
	}

	out, err := h.gate.Advance(r.Context(), gate.AdvanceRequest{
		ClientKey:    ClientKey(r),
		Tokens:       gate.ReadTokens(r),
		DayCompleted: req.DayCompleted,
	})
	switch {
	case errors.Is(err, gate.ErrThrottled):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(out.Rate.RetryAfter(h.now()))))
		httpx.WriteError(w, http.StatusTooManyRequests, msgThrottled)
		return
	case errors.Is(err, gate.ErrInvalidDay):
		httpx.WriteError(w, http.StatusBadRequest, msgInvalidDay)
		return
	case errors.Is(err, gate.ErrOutOfSequence):
		httpx.WriteError(w, http.StatusConflict, msgOutOfSequence)
		return
	case err != nil:
		h.logger.Error("advance progress", zap.Error(err))
		httpx.WriteError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if out.Token != "" {
		gate.SetProgressCookie(w, out.Token, h.secure)
		gate.ClearLegacyCookie(w)
	}
	httpx.WriteJSON(w, http.StatusOK, progressResponse{
		OK:              true,
		Unlocked:        out.Unlocked,
		AlreadyUnlocked: out.AlreadyUnlocked,
	})
}

// ClientKey identifies a caller for throttling: forwarded client address and
// a truncated user agent.
func ClientKey(r *http.Request) string {
	agent := strings.TrimSpace(r.UserAgent())
	if agent == "" {
		agent = "unknown"
	}
	if len(agent) > maxAgentLength {
		agent = agent[:maxAgentLength]
	}
	return clientIP(r) + ":" + agent
}

func clientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if v := strings.TrimSpace(first); v != "" {
			return v
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if strings.TrimSpace(r.RemoteAddr) == "" {
		return "unknown"
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

type stageInfo struct {
	Day  int    `json:"day"`
	Name string `json:"name"`
	Date string `json:"date"`
}

func stagePage(w http.ResponseWriter, r *http.Request) {
	n, ok := guard.StageFromPath(r.URL.Path)
	if !ok || !stage.Valid(n) {
		httpx.WriteError(w, http.StatusNotFound, "Unknown day")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":  true,
		"day": stageInfo{Day: n, Name: stage.Name(n), Date: stage.Date(n)},
	})
}

func journeyPage(w http.ResponseWriter, r *http.Request) {
	days := make([]stageInfo, 0, stage.MaxStage)
	for n := stage.MinStage; n <= stage.MaxStage; n++ {
		days = append(days, stageInfo{Day: n, Name: stage.Name(n), Date: stage.Date(n)})
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"locked": r.URL.Query().Get("locked") == "1",
		"days":   days,
	})
}
