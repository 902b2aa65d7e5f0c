package attendance

import (
	"context"
	"fmt"
	"log"
	"time"

	"geoattend/internal/geo"
	"geoattend/internal/location"
	"geoattend/internal/metrics"
	"geoattend/internal/notify"
	"geoattend/internal/schedule"
)

// Session is the per-user state the evaluator reads and commits into.
type Session interface {
	UserID() string
	Schedule() schedule.Week
	Records() RecordSet
	CommitRecord(ctx context.Context, date, slotID string, rec Record) error
}

// Evaluator decides attendance for the slots of "today" on a fixed cadence.
// Each slot gets exactly one automatic decision per day, committed inside a
// 10-minute window centered on the slot's midpoint.
type Evaluator struct {
	locations location.Provider
	notifier  notify.Notifier
	radius    float64
	now       func() time.Time
}

// NewEvaluator builds an evaluator with the given geofence radius in meters.
func NewEvaluator(locations location.Provider, notifier notify.Notifier, radiusMeters float64) *Evaluator {
	if radiusMeters <= 0 {
		radiusMeters = 100
	}
	return &Evaluator{
		locations: locations,
		notifier:  notifier,
		radius:    radiusMeters,
		now:       time.Now,
	}
}

// SetClock swaps the evaluator's clock; tests pin wall time with it.
func (e *Evaluator) SetClock(now func() time.Time) { e.now = now }

// Tick runs one evaluation pass for the session. A location failure aborts
// the whole pass with no partial writes; the next scheduled tick retries.
func (e *Evaluator) Tick(ctx context.Context, sess Session) error {
	metrics.EvaluatorTicks.Inc()

	now := e.now()
	today := sess.Schedule().Day(schedule.DayOf(now))
	if len(today.Slots) == 0 {
		return nil
	}
	nowMin := geo.MinutesSinceMidnight(now.Hour(), now.Minute())
	date := now.Format(DateLayout)

	fix, err := e.locations.Current(ctx, sess.UserID())
	if err != nil {
		metrics.LocationErrors.Inc()
		e.say(ctx, sess.UserID(), notify.SeverityWarning,
			"Could not get your current location to mark attendance.")
		return &LocationError{Err: err}
	}

	for _, slot := range today.Slots {
		start, err := geo.ParseClock(slot.From)
		if err != nil {
			continue
		}
		end, err := geo.ParseClock(slot.To)
		if err != nil {
			continue
		}
		halfTime := start + (end-start)/2

		rec, exists := sess.Records().Get(date, slot.ID)
		if exists && rec.Status != StatusPending {
			// Already finalized today; later ticks never overwrite.
			continue
		}

		// Early reminder inside the first ten minutes, only while no record
		// exists yet. Repeats on every tick in the window.
		if nowMin > start && nowMin <= start+10 && !exists {
			dist := geo.DistanceMeters(fix.Lat, fix.Lng, slot.Location.Lat, slot.Location.Lng)
			if dist >= e.radius {
				metrics.RemindersTotal.Inc()
				e.say(ctx, sess.UserID(), notify.SeverityWarning,
					fmt.Sprintf("Reminder: you are not at the location for %s (%s-%s)!",
						slot.SubjectName, slot.From, slot.To))
			}
		}

		if nowMin >= halfTime-5 && nowMin <= halfTime+5 {
			dist := geo.DistanceMeters(fix.Lat, fix.Lng, slot.Location.Lat, slot.Location.Lng)
			status := StatusNotAttended
			if dist < e.radius {
				status = StatusAttended
			}
			committed := Record{
				Status:       status,
				Modified:     false,
				SubjectID:    slot.SubjectID,
				SubjectName:  slot.SubjectName,
				TimeSlot:     slot.From + "-" + slot.To,
				Exclude:      slot.Exclude,
				LocationName: slot.Location.Label(),
			}
			if err := sess.CommitRecord(ctx, date, slot.ID, committed); err != nil {
				metrics.PersistenceErrors.Inc()
				log.Printf("commit for slot %s on %s failed: %v", slot.ID, date, err)
				e.say(ctx, sess.UserID(), notify.SeverityError,
					fmt.Sprintf("Saving attendance for %s failed.", slot.SubjectName))
				continue
			}
			metrics.CommitsTotal.WithLabelValues(string(status)).Inc()
			e.say(ctx, sess.UserID(), notify.SeveritySuccess,
				fmt.Sprintf("Attendance for %s (%s-%s) marked as %s.",
					slot.SubjectName, slot.From, slot.To, status))
		}
	}
	return nil
}

func (e *Evaluator) say(ctx context.Context, userID string, sev notify.Severity, msg string) {
	err := e.notifier.Notify(ctx, notify.Notification{
		UserID:   userID,
		Message:  msg,
		Severity: sev,
	})
	if err != nil {
		log.Printf("notify failed for %s: %v", userID, err)
	}
}
