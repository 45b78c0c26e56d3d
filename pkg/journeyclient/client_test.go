package journeyclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/Shoaib-2/websiteForYourPartner/pkg/localprogress"
)

// fakeServer mimics the progress endpoint with the unlocked stage kept in a
// plain cookie.
type fakeServer struct {
	mu       sync.Mutex
	throttle bool
	posts    []int
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("content-type", "application/json")

	current := 1
	if c, err := r.Cookie("journey_progress"); err == nil {
		current, _ = strconv.Atoi(c.Value)
	}
	switch r.Method {
	case http.MethodGet:
		http.SetCookie(w, &http.Cookie{Name: "journey_progress", Value: strconv.Itoa(current), Path: "/"})
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "unlocked": current})
	case http.MethodPost:
		if f.throttle {
			w.Header().Set("Retry-After", "42")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "Too many progress updates. Please try again in a minute."})
			return
		}
		var body struct {
			DayCompleted int `json:"dayCompleted"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.posts = append(f.posts, body.DayCompleted)
		switch {
		case body.DayCompleted < current:
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "unlocked": current, "alreadyUnlocked": true})
		case body.DayCompleted > current:
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "error": "Progress step is out of sequence"})
		default:
			next := min(8, current+1)
			http.SetCookie(w, &http.Cookie{Name: "journey_progress", Value: strconv.Itoa(next), Path: "/"})
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "unlocked": next})
		}
	}
}

func newTestJourney(t *testing.T, fake *fakeServer) (*Journey, *Client) {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	c := New(srv.URL+"/", jar)
	store := localprogress.NewWithClock(localprogress.NewMemoryStorage(), func() time.Time {
		return time.Date(2026, 2, 8, 8, 0, 0, 0, time.UTC)
	})
	return NewJourney(c, store), c
}

func TestClientProgressAndCompleteDay(t *testing.T) {
	_, c := newTestJourney(t, &fakeServer{})
	ctx := context.Background()

	got, err := c.Progress(ctx)
	if err != nil {
		t.Fatalf("Progress() error: %v", err)
	}
	if !got.OK || got.Unlocked != 1 {
		t.Fatalf("Progress() = %+v", got)
	}

	adv, err := c.CompleteDay(ctx, 1)
	if err != nil {
		t.Fatalf("CompleteDay() error: %v", err)
	}
	if adv.Unlocked != 2 || adv.AlreadyUnlocked {
		t.Fatalf("CompleteDay() = %+v", adv)
	}

	again, err := c.CompleteDay(ctx, 1)
	if err != nil {
		t.Fatalf("CompleteDay() repeat error: %v", err)
	}
	if !again.AlreadyUnlocked || again.Unlocked != 2 {
		t.Fatalf("CompleteDay() repeat = %+v", again)
	}
}

func TestClientReturnsAPIError(t *testing.T) {
	_, c := newTestJourney(t, &fakeServer{throttle: true})
	_, err := c.CompleteDay(context.Background(), 1)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusTooManyRequests || apiErr.RetryAfter != 42*time.Second {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if apiErr.Message == "" {
		t.Fatalf("expected server message in error")
	}
}

func TestJourneyCompleteDayAdvancesBoth(t *testing.T) {
	fake := &fakeServer{}
	j, _ := newTestJourney(t, fake)
	ctx := context.Background()

	if _, known := j.ServerUnlocked(); known {
		t.Fatalf("server stage should be unknown before any call")
	}
	if ok, _ := j.CanAccess(ctx, 2); ok {
		t.Fatalf("day 2 must be locked before day 1 is complete")
	}

	rec, err := j.CompleteDay(ctx, 1)
	if err != nil {
		t.Fatalf("CompleteDay() error: %v", err)
	}
	if !rec.IsDayCompleted(1) {
		t.Fatalf("local record not updated: %+v", rec)
	}
	if n, known := j.ServerUnlocked(); !known || n != 2 {
		t.Fatalf("expected server stage 2, got %d %v", n, known)
	}
	if ok, _ := j.CanAccess(ctx, 2); !ok {
		t.Fatalf("day 2 should be accessible")
	}
	if ok, _ := j.CanAccess(ctx, 3); ok {
		t.Fatalf("day 3 should stay locked")
	}
	if len(fake.posts) != 1 || fake.posts[0] != 1 {
		t.Fatalf("unexpected posts: %v", fake.posts)
	}
}

func TestJourneyServerVetoesLocalProgress(t *testing.T) {
	fake := &fakeServer{}
	j, _ := newTestJourney(t, fake)
	ctx := context.Background()

	if _, err := j.Sync(ctx); err != nil {
		t.Fatalf("Sync() error: %v", err)
	}
	if _, err := j.CompleteDay(ctx, 1); err != nil {
		t.Fatalf("CompleteDay(1) error: %v", err)
	}
	// The server never accepts day 2, so only the local record moves.
	fake.mu.Lock()
	fake.throttle = true
	fake.mu.Unlock()
	rec, err := j.CompleteDay(ctx, 2)
	if err == nil {
		t.Fatalf("expected sync error while throttled")
	}
	if !rec.IsDayCompleted(2) {
		t.Fatalf("local progress must be kept on sync failure")
	}
	if ok, _ := j.CanAccess(ctx, 3); ok {
		t.Fatalf("server stage 2 must veto day 3")
	}
}

func TestJourneyUnknownServerDefersToLocal(t *testing.T) {
	j, _ := newTestJourney(t, &fakeServer{})
	ctx := context.Background()
	if _, err := j.store.MarkDayComplete(ctx, 1); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if ok, err := j.CanAccess(ctx, 2); err != nil || !ok {
		t.Fatalf("expected local record to decide while server is unknown, got %v %v", ok, err)
	}
	if done, _ := j.IsDayCompleted(ctx, 1); !done {
		t.Fatalf("expected day 1 completed")
	}
	if _, err := j.UnlockMessage(ctx, "note-1"); err != nil {
		t.Fatalf("UnlockMessage() error: %v", err)
	}
	rec, _ := j.Record(ctx)
	if len(rec.UnlockedMessages) != 1 {
		t.Fatalf("expected one unlocked message, got %v", rec.UnlockedMessages)
	}
}
