// Package gate owns the unlock state machine: it resolves the visitor's
// highest unlocked stage from cookies and advances it one stage at a time.
package gate

import (
	"context"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/Shoaib-2/websiteForYourPartner/pkg/progresstoken"
	"github.com/Shoaib-2/websiteForYourPartner/pkg/ratelimit"
	"github.com/Shoaib-2/websiteForYourPartner/pkg/stage"
)

var (
	ErrThrottled     = errors.New("gate: too many progress updates")
	ErrInvalidDay    = errors.New("gate: invalid completed day")
	ErrOutOfSequence = errors.New("gate: progress step is out of sequence")
)

const RateKeyPrefix = "progress:"

type Source string

const (
	SourceSigned  Source = "signed"
	SourceLegacy  Source = "legacy"
	SourceDefault Source = "default"
)

// Tokens are the raw cookie values presented with a request.
type Tokens struct {
	Signed string
	Legacy string
}

type Resolution struct {
	Unlocked int
	Source   Source
	// Reissue is set when the signed token was missing or invalid. The caller
	// must persist Token and clear the legacy cookie.
	Reissue bool
	Token   string
}

type Config struct {
	RateLimit  int
	RateWindow time.Duration
}

func DefaultConfig() Config {
	return Config{RateLimit: 25, RateWindow: 60 * time.Second}
}

type Service struct {
	codec   *progresstoken.Codec
	limiter ratelimit.Limiter
	cfg     Config
	logger  *zap.Logger
}

func New(codec *progresstoken.Codec, limiter ratelimit.Limiter, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = DefaultConfig().RateLimit
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = DefaultConfig().RateWindow
	}
	return &Service{codec: codec, limiter: limiter, cfg: cfg, logger: logger}
}

// Unlocked resolves the current stage without deciding on reissue:
// signed token, then legacy token, then the first stage.
func (s *Service) Unlocked(t Tokens) (int, Source) {
	if n, ok := s.codec.Parse(t.Signed); ok {
		return n, SourceSigned
	}
	if n, ok := progresstoken.ParseLegacy(t.Legacy); ok {
		return n, SourceLegacy
	}
	return stage.MinStage, SourceDefault
}

// Resolve is the read operation. Any request without a valid signed token
// gets a fresh one, so clients converge onto the signed scheme.
func (s *Service) Resolve(t Tokens) Resolution {
	n, src := s.Unlocked(t)
	res := Resolution{Unlocked: n, Source: src}
	if src != SourceSigned {
		res.Reissue = true
		res.Token = s.codec.Encode(n)
	}
	return res
}

type AdvanceRequest struct {
	ClientKey string
	Tokens    Tokens
	// DayCompleted is nil when the body was missing or unparseable.
	DayCompleted *float64
}

type Outcome struct {
	Unlocked        int
	AlreadyUnlocked bool
	// Token is set when a new signed token must be persisted.
	Token string
	Rate  ratelimit.Result
}

// Advance applies a claimed completion. Checks run in a fixed order:
// throttle, input validation, already-unlocked, sequence, advance.
func (s *Service) Advance(ctx context.Context, req AdvanceRequest) (Outcome, error) {
	var out Outcome
	if s.limiter != nil {
		rate, err := s.limiter.Consume(ctx, RateKeyPrefix+req.ClientKey, s.cfg.RateLimit, s.cfg.RateWindow)
		if err != nil {
			s.logger.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		} else {
			out.Rate = rate
			if !rate.Allowed {
				return out, ErrThrottled
			}
		}
	}

	day, err := ParseDay(req.DayCompleted)
	if err != nil {
		return out, err
	}

	current, _ := s.Unlocked(req.Tokens)
	out.Unlocked = current
	if day < current {
		out.AlreadyUnlocked = true
		return out, nil
	}
	if day != current {
		return out, ErrOutOfSequence
	}

	next := stage.Normalize(current + 1)
	out.Unlocked = next
	out.Token = s.codec.Encode(next)
	s.logger.Debug("stage advanced", zap.Int("from", current), zap.Int("to", next))
	return out, nil
}

// ParseDay accepts integral JSON numbers within the stage range.
func ParseDay(v *float64) (int, error) {
	if v == nil {
		return 0, ErrInvalidDay
	}
	f := *v
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, ErrInvalidDay
	}
	if f < stage.MinStage || f > stage.MaxStage {
		return 0, ErrInvalidDay
	}
	return int(f), nil
}
