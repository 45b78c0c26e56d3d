package journeyclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/Shoaib-2/websiteForYourPartner/pkg/localprogress"
	"github.com/Shoaib-2/websiteForYourPartner/pkg/stage"
)

// Journey combines the local record with the last stage the server reported.
// A stage is reachable only when both agree.
type Journey struct {
	client *Client
	store  *localprogress.Store

	mu             sync.Mutex
	serverUnlocked int
}

func NewJourney(client *Client, store *localprogress.Store) *Journey {
	return &Journey{client: client, store: store}
}

// ServerUnlocked reports the last known server stage; ok is false until a
// call has succeeded.
func (j *Journey) ServerUnlocked() (int, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.serverUnlocked, j.serverUnlocked != 0
}

func (j *Journey) remember(unlocked int) int {
	n := stage.Normalize(unlocked)
	j.mu.Lock()
	j.serverUnlocked = n
	j.mu.Unlock()
	return n
}

func (j *Journey) Sync(ctx context.Context) (int, error) {
	resp, err := j.client.Progress(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch progress: %w", err)
	}
	return j.remember(resp.Unlocked), nil
}

// CompleteDay records the day locally, then reports it to the server. The
// local record is kept even when the server call fails.
func (j *Journey) CompleteDay(ctx context.Context, day int) (localprogress.Record, error) {
	rec, err := j.store.MarkDayComplete(ctx, day)
	if err != nil {
		return rec, err
	}
	resp, err := j.client.CompleteDay(ctx, day)
	if err != nil {
		return rec, fmt.Errorf("sync day %d: %w", day, err)
	}
	j.remember(resp.Unlocked)
	return rec, nil
}

func (j *Journey) UnlockMessage(ctx context.Context, id string) (localprogress.Record, error) {
	return j.store.UnlockMessage(ctx, id)
}

func (j *Journey) CanAccess(ctx context.Context, day int) (bool, error) {
	rec, err := j.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if !rec.CanAccessDay(day) {
		return false, nil
	}
	unlocked, known := j.ServerUnlocked()
	return !known || stage.IsAccessible(day, unlocked), nil
}

func (j *Journey) IsDayCompleted(ctx context.Context, day int) (bool, error) {
	rec, err := j.store.Load(ctx)
	if err != nil {
		return false, err
	}
	return rec.IsDayCompleted(day), nil
}

func (j *Journey) Record(ctx context.Context) (localprogress.Record, error) {
	return j.store.Load(ctx)
}
