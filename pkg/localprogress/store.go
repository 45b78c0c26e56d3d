// Package localprogress is the client-side record of completed stages. It is
// advisory: the server only ever trusts its signed cookie.
package localprogress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/Shoaib-2/websiteForYourPartner/pkg/stage"
)

const (
	StorageKey = "valentine_journey_progress"
	Version    = "1.0"
	fullScore  = 100
)

var ErrInvalidDay = errors.New("localprogress: day out of range")

type PuzzleProgress struct {
	Completed   bool   `json:"completed"`
	Attempts    int    `json:"attempts"`
	Score       int    `json:"score,omitempty"`
	CompletedAt string `json:"completedAt,omitempty"`
}

type Record struct {
	Version          string                    `json:"version"`
	CurrentDay       int                       `json:"currentDay"`
	CompletedDays    []int                     `json:"completedDays"`
	PuzzleProgress   map[string]PuzzleProgress `json:"puzzleProgress"`
	UnlockedMessages []string                  `json:"unlockedMessages"`
	StartDate        string                    `json:"startDate"`
	LastVisit        string                    `json:"lastVisit"`
}

func (r Record) IsDayCompleted(day int) bool {
	return slices.Contains(r.CompletedDays, day)
}

func (r Record) CanAccessDay(day int) bool {
	return CanAccessDay(day, r.CompletedDays)
}

// CanAccessDay opens the first day and any day whose predecessor is done.
func CanAccessDay(day int, completed []int) bool {
	if day == stage.MinStage {
		return true
	}
	return slices.Contains(completed, day-1)
}

func PuzzleKey(day int) string { return "day" + strconv.Itoa(day) }

type Store struct {
	storage Storage
	now     func() time.Time
}

func New(storage Storage) *Store {
	return NewWithClock(storage, time.Now)
}

func NewWithClock(storage Storage, now func() time.Time) *Store {
	return &Store{storage: storage, now: now}
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format("2006-01-02T15:04:05.000Z")
}

func (s *Store) defaults() Record {
	ts := s.timestamp()
	return Record{
		Version:          Version,
		CurrentDay:       stage.MinStage,
		CompletedDays:    []int{},
		PuzzleProgress:   map[string]PuzzleProgress{},
		UnlockedMessages: []string{},
		StartDate:        ts,
		LastVisit:        ts,
	}
}

// Load returns the stored record merged over defaults. Missing, unreadable
// or other-version data yields a fresh record; unreadable data is also
// removed. Only storage failures error.
func (s *Store) Load(ctx context.Context) (Record, error) {
	raw, ok, err := s.storage.GetItem(ctx, StorageKey)
	if err != nil {
		return s.defaults(), err
	}
	rec := s.defaults()
	if !ok || raw == "" {
		return rec, nil
	}
	var probe struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return rec, s.storage.RemoveItem(ctx, StorageKey)
	}
	if probe.Version != Version {
		return rec, nil
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return s.defaults(), s.storage.RemoveItem(ctx, StorageKey)
	}
	if rec.CompletedDays == nil {
		rec.CompletedDays = []int{}
	}
	if rec.PuzzleProgress == nil {
		rec.PuzzleProgress = map[string]PuzzleProgress{}
	}
	if rec.UnlockedMessages == nil {
		rec.UnlockedMessages = []string{}
	}
	rec.LastVisit = s.timestamp()
	return rec, nil
}

// Save loads the current record, applies patch and writes it back with the
// version and lastVisit stamped.
func (s *Store) Save(ctx context.Context, patch func(*Record)) (Record, error) {
	rec, err := s.Load(ctx)
	if err != nil {
		return rec, err
	}
	if patch != nil {
		patch(&rec)
	}
	rec.Version = Version
	rec.LastVisit = s.timestamp()
	raw, err := json.Marshal(rec)
	if err != nil {
		return rec, fmt.Errorf("encode progress: %w", err)
	}
	if err := s.storage.SetItem(ctx, StorageKey, string(raw)); err != nil {
		return rec, err
	}
	return rec, nil
}

func (s *Store) MarkDayComplete(ctx context.Context, day int) (Record, error) {
	if !stage.Valid(day) {
		return Record{}, fmt.Errorf("%w: %d", ErrInvalidDay, day)
	}
	return s.Save(ctx, func(r *Record) {
		if !slices.Contains(r.CompletedDays, day) {
			r.CompletedDays = append(r.CompletedDays, day)
			slices.Sort(r.CompletedDays)
		}
		key := PuzzleKey(day)
		r.PuzzleProgress[key] = PuzzleProgress{
			Completed:   true,
			Attempts:    r.PuzzleProgress[key].Attempts + 1,
			Score:       fullScore,
			CompletedAt: s.timestamp(),
		}
		if day < stage.MaxStage {
			r.CurrentDay = max(r.CurrentDay, day+1)
		}
	})
}

// UnlockMessage records a message id once. The record is only rewritten when
// the id is new.
func (s *Store) UnlockMessage(ctx context.Context, id string) (Record, error) {
	rec, err := s.Load(ctx)
	if err != nil {
		return rec, err
	}
	if slices.Contains(rec.UnlockedMessages, id) {
		return rec, nil
	}
	return s.Save(ctx, func(r *Record) {
		r.UnlockedMessages = append(r.UnlockedMessages, id)
	})
}
