package progresstoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Shoaib-2/websiteForYourPartner/pkg/stage"
)

const (
	CookieName       = "journey_progress"
	LegacyCookieName = "journey_unlocked"

	SecretEnv = "PROGRESS_COOKIE_SECRET"
	// DevSecret is used when no secret is configured. It is public and only
	// fit for local development.
	DevSecret = "dev-only-change-me"
)

var (
	ErrEmpty             = errors.New("progress token is empty")
	ErrMalformed         = errors.New("progress token is malformed")
	ErrNonNumeric        = errors.New("progress token payload is not numeric")
	ErrSignatureMismatch = errors.New("progress token signature mismatch")
	ErrOutOfRange        = errors.New("progress token stage out of range")
)

// SecretSource yields the raw signing secret. It is called at most once per
// Codec, on first use.
type SecretSource func() string

// EnvSecret reads PROGRESS_COOKIE_SECRET, falling back to DevSecret.
func EnvSecret() string {
	if v := os.Getenv(SecretEnv); v != "" {
		return v
	}
	return DevSecret
}

// StaticSecret returns a SecretSource for a fixed value.
func StaticSecret(secret string) SecretSource {
	return func() string { return secret }
}

type Codec struct {
	source SecretSource
	once   sync.Once
	key    []byte
}

func New(source SecretSource) *Codec {
	if source == nil {
		source = EnvSecret
	}
	return &Codec{source: source}
}

func (c *Codec) signingKey() []byte {
	c.once.Do(func() {
		c.key = []byte(c.source())
	})
	return c.key
}

func (c *Codec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.signingKey())
	_, _ = mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Encode clamps n into the stage range and returns "<stage>.<signature>".
// The result is deterministic for a given stage and secret.
func (c *Codec) Encode(n int) string {
	payload := strconv.Itoa(stage.Normalize(n))
	return payload + "." + c.sign(payload)
}

// Decode verifies a signed token and returns the stage it carries, clamped
// into the stage range. The returned error identifies why verification
// failed.
func (c *Codec) Decode(token string) (int, error) {
	if token == "" {
		return 0, ErrEmpty
	}
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || payload == "" || sig == "" {
		return 0, ErrMalformed
	}
	if !isDigits(payload) {
		return 0, ErrNonNumeric
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(payload))) {
		return 0, ErrSignatureMismatch
	}
	n, err := strconv.Atoi(payload)
	if err != nil {
		return 0, ErrOutOfRange
	}
	return stage.Normalize(n), nil
}

// Parse is Decode collapsed to presence: any failure reads as no token.
func (c *Codec) Parse(token string) (int, bool) {
	n, err := c.Decode(token)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DecodeLegacy reads the unsigned bare-decimal cookie, clamped into the
// stage range.
func DecodeLegacy(value string) (int, error) {
	if value == "" {
		return 0, ErrEmpty
	}
	if !isDigits(value) {
		return 0, ErrNonNumeric
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, ErrOutOfRange
	}
	return stage.Normalize(n), nil
}

func ParseLegacy(value string) (int, bool) {
	n, err := DecodeLegacy(value)
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
