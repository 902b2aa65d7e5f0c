package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geoattend/internal/attendance"
	"geoattend/internal/notify"
	"geoattend/internal/schedule"
	"geoattend/internal/store"
)

func openTestSession(t *testing.T) (*Session, *store.Memory, *notify.InMemory) {
	t.Helper()
	st := store.NewMemory()
	notifier := notify.NewInMemory()
	sess, err := Open(context.Background(), "user-1", st, notifier)
	require.NoError(t, err)
	t.Cleanup(sess.Close)
	return sess, st, notifier
}

func TestOpenSeedsMissingDocument(t *testing.T) {
	sess, st, _ := openTestSession(t)

	doc, found, err := st.Read(context.Background(), "user-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, store.DefaultMinAttendancePercent, doc.MinAttendancePercent)
	assert.Len(t, doc.Schedule, 5)
	assert.Equal(t, store.DefaultMinAttendancePercent, sess.MinAttendancePercent())
}

func TestSubjectLifecycle(t *testing.T) {
	ctx := context.Background()
	sess, st, _ := openTestSession(t)

	sub, err := sess.AddSubject(ctx, "Physics")
	require.NoError(t, err)
	assert.NotEmpty(t, sub.ID)

	doc, _, err := st.Read(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, doc.Subjects, 1)
	assert.Equal(t, "Physics", doc.Subjects[0].Name)

	t.Run("empty name rejected", func(t *testing.T) {
		_, err := sess.AddSubject(ctx, "")
		var vErr *attendance.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("unknown delete rejected", func(t *testing.T) {
		err := sess.DeleteSubject(ctx, "sub-missing")
		var vErr *attendance.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("delete does not cascade to slots", func(t *testing.T) {
		_, err := sess.AddSlot(ctx, "Monday", "09:00", "10:00", sub.ID,
			schedule.Location{Lat: 10.76, Lng: 78.81, Name: "Orion"}, false)
		require.NoError(t, err)

		require.NoError(t, sess.DeleteSubject(ctx, sub.ID))
		assert.Empty(t, sess.Subjects())
		// The slot survives with its denormalized subject name.
		slots := sess.Schedule().Day("Monday").Slots
		require.Len(t, slots, 1)
		assert.Equal(t, "Physics", slots[0].SubjectName)
	})
}

func TestAddSlot(t *testing.T) {
	ctx := context.Background()
	sess, _, _ := openTestSession(t)

	sub, err := sess.AddSubject(ctx, "Maths")
	require.NoError(t, err)

	t.Run("unknown subject", func(t *testing.T) {
		_, err := sess.AddSlot(ctx, "Monday", "09:00", "10:00", "sub-missing", schedule.Location{}, false)
		var vErr *attendance.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("invalid times", func(t *testing.T) {
		_, err := sess.AddSlot(ctx, "Monday", "10:00", "09:00", sub.ID, schedule.Location{}, false)
		var vErr *attendance.ValidationError
		require.ErrorAs(t, err, &vErr)
	})

	t.Run("keeps day sorted", func(t *testing.T) {
		for _, from := range []string{"11:00", "09:00"} {
			_, err := sess.AddSlot(ctx, "Tuesday", from, "12:00", sub.ID, schedule.Location{}, false)
			require.NoError(t, err)
		}
		slots := sess.Schedule().Day("Tuesday").Slots
		require.Len(t, slots, 2)
		assert.Equal(t, "09:00", slots[0].From)
	})

	t.Run("delete removes slot", func(t *testing.T) {
		slot, err := sess.AddSlot(ctx, "Wednesday", "09:00", "10:00", sub.ID, schedule.Location{}, false)
		require.NoError(t, err)
		require.NoError(t, sess.DeleteSlot(ctx, "Wednesday", slot.ID))
		assert.Empty(t, sess.Schedule().Day("Wednesday").Slots)

		err = sess.DeleteSlot(ctx, "Wednesday", slot.ID)
		var vErr *attendance.ValidationError
		require.ErrorAs(t, err, &vErr)
	})
}

func TestSetMinAttendancePercent(t *testing.T) {
	ctx := context.Background()
	sess, st, _ := openTestSession(t)

	require.NoError(t, sess.SetMinAttendancePercent(ctx, 80))
	assert.Equal(t, 80, sess.MinAttendancePercent())

	doc, _, err := st.Read(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 80, doc.MinAttendancePercent)

	for _, bad := range []int{-1, 101} {
		err := sess.SetMinAttendancePercent(ctx, bad)
		var vErr *attendance.ValidationError
		require.ErrorAs(t, err, &vErr)
	}
}

func TestToggleAttendance(t *testing.T) {
	ctx := context.Background()
	sess, st, notifier := openTestSession(t)

	t.Run("missing record", func(t *testing.T) {
		_, err := sess.ToggleAttendance(ctx, "2026-03-02", "slot-1")
		var pErr *attendance.PreconditionError
		require.ErrorAs(t, err, &pErr)
	})

	require.NoError(t, sess.CommitRecord(ctx, "2026-03-02", "slot-1", attendance.Record{
		Status: attendance.StatusAttended, SubjectName: "Physics",
	}))

	rec, err := sess.ToggleAttendance(ctx, "2026-03-02", "slot-1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusNotAttended, rec.Status)
	assert.True(t, rec.Modified)

	rec, err = sess.ToggleAttendance(ctx, "2026-03-02", "slot-1")
	require.NoError(t, err)
	assert.Equal(t, attendance.StatusAttended, rec.Status)
	assert.True(t, rec.Modified, "modified never reverts")

	doc, _, err := st.Read(ctx, "user-1")
	require.NoError(t, err)
	stored, ok := doc.AttendanceRecords.Get("2026-03-02", "slot-1")
	require.True(t, ok)
	assert.True(t, stored.Modified)

	msgs, err := notifier.Drain(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestToggleExclude(t *testing.T) {
	ctx := context.Background()
	sess, _, _ := openTestSession(t)

	require.NoError(t, sess.CommitRecord(ctx, "2026-03-02", "slot-1", attendance.Record{
		Status: attendance.StatusAttended,
	}))

	rec, err := sess.ToggleExclude(ctx, "2026-03-02", "slot-1")
	require.NoError(t, err)
	assert.True(t, rec.Exclude)
	assert.Equal(t, attendance.StatusAttended, rec.Status)
	assert.False(t, rec.Modified, "exclude toggle leaves modified alone")
}

func TestStatsWarnsBelowMinimum(t *testing.T) {
	ctx := context.Background()
	sess, _, notifier := openTestSession(t)

	require.NoError(t, sess.CommitRecord(ctx, "2026-03-02", "slot-1", attendance.Record{
		Status: attendance.StatusNotAttended, SubjectID: "sub-1",
	}))

	q := attendance.Query{
		Start:     mustDate("2026-03-01"),
		End:       mustDate("2026-03-31"),
		SubjectID: attendance.AllSubjects,
	}
	rows, err := sess.Stats(ctx, q)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Zero(t, rows[0].PercentModified)

	msgs, err := notifier.Drain(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, notify.SeverityWarning, msgs[0].Severity)
	assert.Contains(t, msgs[0].Message, "below the minimum")
}

func TestSubscriptionReplacesDocumentWholesale(t *testing.T) {
	ctx := context.Background()
	sess, st, _ := openTestSession(t)

	records := attendance.RecordSet{}.Set("2026-03-02", "slot-9", attendance.Record{
		Status: attendance.StatusAttended,
	})
	// Simulates another session writing to the shared store.
	require.NoError(t, st.Write(ctx, "user-1", store.Partial{AttendanceRecords: &records}))

	rec, ok := sess.Records().Get("2026-03-02", "slot-9")
	require.True(t, ok)
	assert.Equal(t, attendance.StatusAttended, rec.Status)
}

func mustDate(s string) time.Time {
	d, err := time.Parse(attendance.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}
