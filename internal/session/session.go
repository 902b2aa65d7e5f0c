package session

import (
	"context"
	"fmt"
	"log"
	"sync"

	"geoattend/internal/attendance"
	"geoattend/internal/notify"
	"geoattend/internal/schedule"
	"geoattend/internal/store"
)

// Session owns one user's working copy of the document: subjects, weekly
// schedule, settings, and attendance records. Every mutation updates the
// copy optimistically and writes through to the store; a write failure is
// returned as a PersistenceError while the in-memory state is kept, so the
// session can diverge from the store until the next subscription replace.
//
// The store subscription replaces the working copy wholesale whenever
// another session writes, which is last-write-wins across sessions.
type Session struct {
	userID   string
	store    store.Store
	notifier notify.Notifier

	mu   sync.RWMutex
	doc  store.Document
	stop func()
}

// Open loads (or seeds) the user's document and starts the change
// subscription.
func Open(ctx context.Context, userID string, st store.Store, notifier notify.Notifier) (*Session, error) {
	doc, found, err := st.Read(ctx, userID)
	if err != nil {
		return nil, &attendance.PersistenceError{Op: "read document", Err: err}
	}
	if !found {
		doc = store.NewDocument()
		seed := store.Partial{
			Subjects:             &doc.Subjects,
			Schedule:             &doc.Schedule,
			MinAttendancePercent: &doc.MinAttendancePercent,
			AttendanceRecords:    &doc.AttendanceRecords,
		}
		if err := st.Write(ctx, userID, seed); err != nil {
			return nil, &attendance.PersistenceError{Op: "seed document", Err: err}
		}
	}
	doc.Schedule = doc.Schedule.Normalize()
	if doc.AttendanceRecords == nil {
		doc.AttendanceRecords = attendance.RecordSet{}
	}

	s := &Session{userID: userID, store: st, notifier: notifier, doc: doc}
	// The subscription outlives the opening request; only Close ends it.
	stop, err := st.Subscribe(context.WithoutCancel(ctx), userID, s.replace)
	if err != nil {
		return nil, &attendance.PersistenceError{Op: "subscribe", Err: err}
	}
	s.stop = stop
	return s, nil
}

// Close stops the store subscription.
func (s *Session) Close() {
	if s.stop != nil {
		s.stop()
	}
}

// replace swaps in a fresh document from the store, discarding any local
// state that has not been flushed.
func (s *Session) replace(doc store.Document) {
	doc.Schedule = doc.Schedule.Normalize()
	if doc.AttendanceRecords == nil {
		doc.AttendanceRecords = attendance.RecordSet{}
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
}

// UserID returns the owning user.
func (s *Session) UserID() string { return s.userID }

// Subjects returns the current subject list.
func (s *Session) Subjects() []schedule.Subject {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]schedule.Subject, len(s.doc.Subjects))
	copy(out, s.doc.Subjects)
	return out
}

// Schedule returns the normalized weekly schedule.
func (s *Session) Schedule() schedule.Week {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Schedule
}

// Records returns the attendance record set.
func (s *Session) Records() attendance.RecordSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.AttendanceRecords
}

// MinAttendancePercent returns the minimum-attendance setting.
func (s *Session) MinAttendancePercent() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.MinAttendancePercent
}

func (s *Session) writeThrough(ctx context.Context, op string, p store.Partial) error {
	if err := s.store.Write(ctx, s.userID, p); err != nil {
		log.Printf("%s: write-through failed for %s: %v", op, s.userID, err)
		return &attendance.PersistenceError{Op: op, Err: err}
	}
	return nil
}

// AddSubject creates a subject and persists the list.
func (s *Session) AddSubject(ctx context.Context, name string) (schedule.Subject, error) {
	sub, err := schedule.NewSubject(name)
	if err != nil {
		return schedule.Subject{}, &attendance.ValidationError{Msg: err.Error()}
	}
	s.mu.Lock()
	s.doc.Subjects = append(s.doc.Subjects, sub)
	subjects := s.doc.Subjects
	s.mu.Unlock()
	return sub, s.writeThrough(ctx, "save subjects", store.Partial{Subjects: &subjects})
}

// DeleteSubject removes a subject by id. Slots referencing the subject are
// left in place; their denormalized subject name keeps working.
func (s *Session) DeleteSubject(ctx context.Context, id string) error {
	s.mu.Lock()
	kept := make([]schedule.Subject, 0, len(s.doc.Subjects))
	found := false
	for _, sub := range s.doc.Subjects {
		if sub.ID == id {
			found = true
			continue
		}
		kept = append(kept, sub)
	}
	if !found {
		s.mu.Unlock()
		return attendance.NewValidationError("unknown subject %q", id)
	}
	s.doc.Subjects = kept
	s.mu.Unlock()
	return s.writeThrough(ctx, "save subjects", store.Partial{Subjects: &kept})
}

// AddSlot validates and inserts a slot into the named day, keeping the
// day's slots sorted by start time.
func (s *Session) AddSlot(ctx context.Context, day, from, to, subjectID string, loc schedule.Location, exclude bool) (schedule.Slot, error) {
	s.mu.Lock()
	sub, ok := schedule.FindSubject(s.doc.Subjects, subjectID)
	if !ok {
		s.mu.Unlock()
		return schedule.Slot{}, attendance.NewValidationError("unknown subject %q", subjectID)
	}
	slot, err := schedule.NewSlot(day, from, to, sub, loc, exclude)
	if err != nil {
		s.mu.Unlock()
		return schedule.Slot{}, &attendance.ValidationError{Msg: err.Error()}
	}
	s.doc.Schedule = s.doc.Schedule.AddSlot(slot)
	week := s.doc.Schedule
	s.mu.Unlock()
	return slot, s.writeThrough(ctx, "save schedule", store.Partial{Schedule: &week})
}

// DeleteSlot removes a slot from the named day.
func (s *Session) DeleteSlot(ctx context.Context, day, slotID string) error {
	s.mu.Lock()
	week, removed := s.doc.Schedule.RemoveSlot(day, slotID)
	if !removed {
		s.mu.Unlock()
		return attendance.NewValidationError("no slot %q on %s", slotID, day)
	}
	s.doc.Schedule = week
	s.mu.Unlock()
	return s.writeThrough(ctx, "save schedule", store.Partial{Schedule: &week})
}

// SetMinAttendancePercent updates the minimum-attendance setting.
func (s *Session) SetMinAttendancePercent(ctx context.Context, percent int) error {
	if percent < 0 || percent > 100 {
		return attendance.NewValidationError("percentage must be between 0 and 100")
	}
	s.mu.Lock()
	s.doc.MinAttendancePercent = percent
	s.mu.Unlock()
	return s.writeThrough(ctx, "save settings", store.Partial{MinAttendancePercent: &percent})
}

// CommitRecord writes an automatic attendance decision for (date, slotID).
func (s *Session) CommitRecord(ctx context.Context, date, slotID string, rec attendance.Record) error {
	s.mu.Lock()
	s.doc.AttendanceRecords = s.doc.AttendanceRecords.Set(date, slotID, rec)
	records := s.doc.AttendanceRecords
	s.mu.Unlock()
	return s.writeThrough(ctx, "save attendance", store.Partial{AttendanceRecords: &records})
}

// ToggleAttendance flips a record between attended and not-attended and
// marks it manually modified. Toggling a record that does not exist is a
// no-op returning a PreconditionError.
func (s *Session) ToggleAttendance(ctx context.Context, date, slotID string) (attendance.Record, error) {
	return s.mutateRecord(ctx, date, slotID, attendance.ToggleAttendance, func(rec attendance.Record) string {
		return fmt.Sprintf("Attendance for %s on %s manually changed to %s.", rec.SubjectName, date, rec.Status)
	})
}

// ToggleExclude flips a record's exclude flag in place.
func (s *Session) ToggleExclude(ctx context.Context, date, slotID string) (attendance.Record, error) {
	return s.mutateRecord(ctx, date, slotID, attendance.ToggleExclude, func(rec attendance.Record) string {
		if rec.Exclude {
			return fmt.Sprintf("Slot %s on %s is now excluded from calculation.", rec.SubjectName, date)
		}
		return fmt.Sprintf("Slot %s on %s is now included in calculation.", rec.SubjectName, date)
	})
}

func (s *Session) mutateRecord(ctx context.Context, date, slotID string, mutate func(attendance.Record) attendance.Record, describe func(attendance.Record) string) (attendance.Record, error) {
	s.mu.Lock()
	rec, ok := s.doc.AttendanceRecords.Get(date, slotID)
	if !ok {
		s.mu.Unlock()
		return attendance.Record{}, &attendance.PreconditionError{Date: date, SlotID: slotID}
	}
	rec = mutate(rec)
	s.doc.AttendanceRecords = s.doc.AttendanceRecords.Set(date, slotID, rec)
	records := s.doc.AttendanceRecords
	s.mu.Unlock()

	if err := s.writeThrough(ctx, "save attendance", store.Partial{AttendanceRecords: &records}); err != nil {
		return rec, err
	}
	s.say(ctx, describe(rec))
	return rec, nil
}

// Stats aggregates attendance over the query range and warns when the
// modified percentage falls below the minimum-attendance setting.
func (s *Session) Stats(ctx context.Context, q attendance.Query) ([]attendance.SubjectStats, error) {
	s.mu.RLock()
	records := s.doc.AttendanceRecords
	subjects := s.doc.Subjects
	minPercent := s.doc.MinAttendancePercent
	s.mu.RUnlock()

	rows, err := attendance.Aggregate(records, subjects, q)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.TotalConsideredModified > 0 && row.PercentModified < float64(minPercent) {
			s.sayWarning(ctx, fmt.Sprintf(
				"Warning: your attendance (%.2f%%) is below the minimum required (%d%%).",
				row.PercentModified, minPercent))
		}
	}
	return rows, nil
}

func (s *Session) say(ctx context.Context, msg string) {
	s.emit(ctx, notify.SeverityInfo, msg)
}

func (s *Session) sayWarning(ctx context.Context, msg string) {
	s.emit(ctx, notify.SeverityWarning, msg)
}

func (s *Session) emit(ctx context.Context, sev notify.Severity, msg string) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.Notify(ctx, notify.Notification{UserID: s.userID, Message: msg, Severity: sev})
	if err != nil {
		log.Printf("notify failed for %s: %v", s.userID, err)
	}
}
