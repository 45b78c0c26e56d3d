package stage

import "time"

const (
	MinStage = 1
	MaxStage = 8
)

var names = map[int]string{
	1: "Rose Day",
	2: "Propose Day",
	3: "Chocolate Day",
	4: "Teddy Day",
	5: "Promise Day",
	6: "Hug Day",
	7: "Kiss Day",
	8: "Valentine's Day",
}

var dates = map[int]string{
	1: "February 7",
	2: "February 8",
	3: "February 9",
	4: "February 10",
	5: "February 11",
	6: "February 12",
	7: "February 13",
	8: "February 14",
}

// Normalize clamps n into [MinStage, MaxStage].
func Normalize(n int) int {
	if n < MinStage {
		return MinStage
	}
	if n > MaxStage {
		return MaxStage
	}
	return n
}

func Valid(n int) bool { return n >= MinStage && n <= MaxStage }

// IsAccessible reports whether a visitor whose highest unlocked stage is
// unlocked may open stage. The first stage is the entry point and is always
// open. Both the server route guard and the client-side guard call this.
func IsAccessible(stage, unlocked int) bool {
	if stage == MinStage {
		return true
	}
	if !Valid(stage) {
		return false
	}
	return stage <= unlocked
}

func Name(n int) string {
	if v, ok := names[n]; ok {
		return v
	}
	return "Day"
}

func Date(n int) string { return dates[n] }

// WeekStart is the first calendar day of the journey (Rose Day), local time.
var WeekStart = time.Date(2026, time.February, 7, 0, 0, 0, 0, time.Local)

// CalendarDay returns the stage matching now on the Valentine's week
// calendar: 0 before the week starts, capped at MaxStage afterwards.
func CalendarDay(now time.Time) int {
	start := time.Date(WeekStart.Year(), WeekStart.Month(), WeekStart.Day(), 0, 0, 0, 0, now.Location())
	if now.Before(start) {
		return 0
	}
	days := int(now.Sub(start)/(24*time.Hour)) + 1
	if days > MaxStage {
		return MaxStage
	}
	return days
}
