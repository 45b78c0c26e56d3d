package gate

import (
	"net/http"
	"time"

	"github.com/Shoaib-2/websiteForYourPartner/pkg/progresstoken"
)

const CookieMaxAge = 120 * 24 * time.Hour

func ReadTokens(r *http.Request) Tokens {
	var t Tokens
	if c, err := r.Cookie(progresstoken.CookieName); err == nil {
		t.Signed = c.Value
	}
	if c, err := r.Cookie(progresstoken.LegacyCookieName); err == nil {
		t.Legacy = c.Value
	}
	return t
}

func ProgressCookie(token string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     progresstoken.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(CookieMaxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredLegacyCookie deletes the unsigned cookie (Max-Age=0).
func ExpiredLegacyCookie() *http.Cookie {
	return &http.Cookie{
		Name:   progresstoken.LegacyCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	}
}

func SetProgressCookie(w http.ResponseWriter, token string, secure bool) {
	http.SetCookie(w, ProgressCookie(token, secure))
}

func ClearLegacyCookie(w http.ResponseWriter) {
	http.SetCookie(w, ExpiredLegacyCookie())
}
