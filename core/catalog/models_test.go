package catalog

import (
	"testing"
	"time"
)

func TestScheduleEntry_IsLive(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	entry := ScheduleEntry{StartsAt: start, EndsAt: start.Add(time.Hour), MeetingURL: "https://meet.test/abc"}

	tests := []struct {
		name  string
		entry ScheduleEntry
		now   time.Time
		want  bool
	}{
		{name: "too early", entry: entry, now: start.Add(-11 * time.Minute), want: false},
		{name: "join window", entry: entry, now: start.Add(-JoinWindow), want: true},
		{name: "running", entry: entry, now: start.Add(30 * time.Minute), want: true},
		{name: "ended", entry: entry, now: start.Add(time.Hour), want: false},
		{name: "no meeting url", entry: ScheduleEntry{StartsAt: start, EndsAt: start.Add(time.Hour)}, now: start, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.entry.IsLive(tt.now); got != tt.want {
				t.Errorf("IsLive() = %v; want %v", got, tt.want)
			}
		})
	}
}
