package guard

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Shoaib-2/websiteForYourPartner/pkg/progresstoken"
	"github.com/Shoaib-2/websiteForYourPartner/pkg/ratelimit"
	"github.com/Shoaib-2/websiteForYourPartner/services/progress/internal/gate"
)

func newRouter(t *testing.T) (http.Handler, *progresstoken.Codec) {
	t.Helper()
	codec := progresstoken.New(progresstoken.StaticSecret("guard-secret"))
	svc := gate.New(codec, ratelimit.NewMemory(), gate.DefaultConfig(), nil)

	r := chi.NewRouter()
	r.Route("/day", func(r chi.Router) {
		r.Use(Middleware(svc, nil))
		r.Get("/*", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	return r, codec
}

func get(h http.Handler, path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStageFromPath(t *testing.T) {
	cases := []struct {
		path string
		want int
		ok   bool
	}{
		{"/day/3", 3, true},
		{"/day/12/extra", 12, true},
		{"/day/4abc", 4, true},
		{"/day/abc", 0, false},
		{"/day/", 0, false},
		{"/journey", 0, false},
	}
	for _, tc := range cases {
		got, ok := StageFromPath(tc.path)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%s: got (%d,%v), want (%d,%v)", tc.path, got, ok, tc.want, tc.ok)
		}
	}
}

func TestFirstStageAlwaysPasses(t *testing.T) {
	h, _ := newRouter(t)
	if rec := get(h, "/day/1"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for stage 1, got %d", rec.Code)
	}
}

func TestLockedStageRedirects(t *testing.T) {
	h, codec := newRouter(t)
	rec := get(h, "/day/5", &http.Cookie{Name: progresstoken.CookieName, Value: codec.Encode(3)})
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/journey?locked=1" {
		t.Fatalf("unexpected redirect target %q", loc)
	}
}

func TestUnlockedStagePasses(t *testing.T) {
	h, codec := newRouter(t)
	for _, path := range []string{"/day/2", "/day/3"} {
		rec := get(h, path, &http.Cookie{Name: progresstoken.CookieName, Value: codec.Encode(3)})
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestOutOfRangeAndNonNumericPassThrough(t *testing.T) {
	h, _ := newRouter(t)
	for _, path := range []string{"/day/0", "/day/9", "/day/42", "/day/secret"} {
		if rec := get(h, path); rec.Code != http.StatusOK {
			t.Fatalf("%s: expected pass-through, got %d", path, rec.Code)
		}
	}
}

func TestLegacyCookieOpensStage(t *testing.T) {
	h, _ := newRouter(t)
	rec := get(h, "/day/4", &http.Cookie{Name: progresstoken.LegacyCookieName, Value: "4"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected legacy cookie to unlock stage 4, got %d", rec.Code)
	}
}

func TestForgedCookieIsIgnored(t *testing.T) {
	h, _ := newRouter(t)
	rec := get(h, "/day/2", &http.Cookie{Name: progresstoken.CookieName, Value: "8.forged"})
	if rec.Code != http.StatusFound {
		t.Fatalf("expected forged token to be treated as stage 1, got %d", rec.Code)
	}
}
