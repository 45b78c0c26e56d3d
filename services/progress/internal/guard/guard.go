// Package guard redirects requests for stage pages the visitor has not
// unlocked yet. It trusts only the progress cookies, never client state.
package guard

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Shoaib-2/websiteForYourPartner/pkg/stage"
	"github.com/Shoaib-2/websiteForYourPartner/services/progress/internal/gate"
)

const (
	StagePrefix  = "/day/"
	LockedTarget = "/journey"
)

type Resolver interface {
	Unlocked(t gate.Tokens) (int, gate.Source)
}

// StageFromPath returns the stage named by the leading digits of the first
// segment after /day/. ok is false when there are none.
func StageFromPath(path string) (int, bool) {
	rest, found := strings.CutPrefix(path, StagePrefix)
	if !found {
		return 0, false
	}
	end := 0
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func Middleware(resolver Resolver, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			n, ok := StageFromPath(r.URL.Path)
			if !ok || !stage.Valid(n) || n == stage.MinStage {
				next.ServeHTTP(w, r)
				return
			}
			unlocked, src := resolver.Unlocked(gate.ReadTokens(r))
			if stage.IsAccessible(n, unlocked) {
				next.ServeHTTP(w, r)
				return
			}
			logger.Debug("stage locked",
				zap.Int("stage", n),
				zap.Int("unlocked", unlocked),
				zap.String("source", string(src)),
			)
			http.Redirect(w, r, lockedURL(r), http.StatusFound)
		})
	}
}

func lockedURL(r *http.Request) string {
	q := r.URL.Query()
	q.Set("locked", "1")
	return LockedTarget + "?" + q.Encode()
}
