package store

import (
	"context"

	"geoattend/internal/attendance"
	"geoattend/internal/schedule"
)

// Document is the single per-user document the service keeps: subjects,
// weekly schedule, the minimum-attendance setting, and all attendance
// records. The store is the durable owner; sessions hold a working copy.
type Document struct {
	Subjects             []schedule.Subject   `json:"subjects"`
	Schedule             schedule.Week        `json:"schedule"`
	MinAttendancePercent int                  `json:"min_attendance_percent"`
	AttendanceRecords    attendance.RecordSet `json:"attendance_records"`
}

// DefaultMinAttendancePercent seeds new documents.
const DefaultMinAttendancePercent = 75

// NewDocument returns an empty document with defaults applied.
func NewDocument() Document {
	return Document{
		Subjects:             []schedule.Subject{},
		Schedule:             schedule.Week{}.Normalize(),
		MinAttendancePercent: DefaultMinAttendancePercent,
		AttendanceRecords:    attendance.RecordSet{},
	}
}

// Partial names the top-level fields a write replaces; nil fields are left
// untouched (partial merge semantics).
type Partial struct {
	Subjects             *[]schedule.Subject
	Schedule             *schedule.Week
	MinAttendancePercent *int
	AttendanceRecords    *attendance.RecordSet
}

// Apply merges the partial into a document copy.
func (p Partial) Apply(doc Document) Document {
	if p.Subjects != nil {
		doc.Subjects = *p.Subjects
	}
	if p.Schedule != nil {
		doc.Schedule = *p.Schedule
	}
	if p.MinAttendancePercent != nil {
		doc.MinAttendancePercent = *p.MinAttendancePercent
	}
	if p.AttendanceRecords != nil {
		doc.AttendanceRecords = *p.AttendanceRecords
	}
	return doc
}

// Store persists one document per user. Writes replace only the fields
// named in the Partial. Subscribe delivers the full document on every
// change until the returned stop function is called; concurrent sessions
// see last-write-wins, not read-your-own-write.
type Store interface {
	Read(ctx context.Context, userID string) (Document, bool, error)
	Write(ctx context.Context, userID string, p Partial) error
	Subscribe(ctx context.Context, userID string, fn func(Document)) (func(), error)
}
