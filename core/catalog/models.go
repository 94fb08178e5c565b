// Package catalog holds the course catalog rows: courses, bundles and the
// class schedule.
package catalog

import (
	"time"
)

// Course is a single course of the catalog.
type Course struct {
	ID          string    `json:"courseId"`
	Name        string    `json:"name"`
	Instructor  string    `json:"instructor"`
	Price       int64     `json:"price"` // minor units
	AcceptsCash bool      `json:"acceptsCash"`
	IsPublished bool      `json:"isPublished"`
	StartsOn    time.Time `json:"startsOn"`
}

func (c Course) Key() string { return c.ID }

// Bundle is a priced grouping of courses sold and enrolled as one unit.
type Bundle struct {
	ID          string    `json:"bundleId"`
	Name        string    `json:"name"`
	CourseIDs   []string  `json:"courseIds"`
	Price       int64     `json:"price"`
	AcceptsCash bool      `json:"acceptsCash"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (b Bundle) Key() string { return b.ID }

// ScheduleEntry is one scheduled class occurrence of a course.
type ScheduleEntry struct {
	ID           string    `json:"scheduleId"`
	CourseID     string    `json:"courseId"`
	CourseName   string    `json:"courseName"`
	SeriesNumber int       `json:"seriesNumber"`
	StartsAt     time.Time `json:"startsAt"`
	EndsAt       time.Time `json:"endsAt"`
	MeetingURL   string    `json:"meetingUrl"`
}

func (s ScheduleEntry) Key() string { return s.ID }

// JoinWindow is how early before the start a class can be joined.
const JoinWindow = 10 * time.Minute

// IsLive reports whether the class can be joined at now.
func (s ScheduleEntry) IsLive(now time.Time) bool {
	if s.MeetingURL == "" {
		return false
	}
	return !now.Before(s.StartsAt.Add(-JoinWindow)) && now.Before(s.EndsAt)
}

// Enrollable is anything a student can enroll in (a course or a bundle).
type Enrollable struct {
	Kind        string `json:"kind"` // "course" | "bundle"
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       int64  `json:"price"`
	AcceptsCash bool   `json:"acceptsCash"`
}

const (
	KindCourse = "course"
	KindBundle = "bundle"
)

func (c Course) Enrollable() Enrollable {
	return Enrollable{Kind: KindCourse, ID: c.ID, Name: c.Name, Price: c.Price, AcceptsCash: c.AcceptsCash}
}

func (b Bundle) Enrollable() Enrollable {
	return Enrollable{Kind: KindBundle, ID: b.ID, Name: b.Name, Price: b.Price, AcceptsCash: b.AcceptsCash}
}
