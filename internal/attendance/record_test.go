package attendance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToggleAttendance(t *testing.T) {
	rec := Record{Status: StatusAttended}

	rec = ToggleAttendance(rec)
	assert.Equal(t, StatusNotAttended, rec.Status)
	assert.True(t, rec.Modified)

	// Toggling back keeps the record marked as manually modified.
	rec = ToggleAttendance(rec)
	assert.Equal(t, StatusAttended, rec.Status)
	assert.True(t, rec.Modified)
}

func TestToggleAttendanceFromPending(t *testing.T) {
	rec := ToggleAttendance(Record{Status: StatusPending})
	assert.Equal(t, StatusAttended, rec.Status)
	assert.True(t, rec.Modified)
}

func TestToggleExclude(t *testing.T) {
	rec := Record{Status: StatusAttended, Modified: true}

	rec = ToggleExclude(rec)
	assert.True(t, rec.Exclude)
	assert.Equal(t, StatusAttended, rec.Status)
	assert.True(t, rec.Modified)

	rec = ToggleExclude(rec)
	assert.False(t, rec.Exclude)
}

func TestRecordSetIsCopyOnWrite(t *testing.T) {
	base := RecordSet{}
	next := base.Set("2026-03-02", "slot-1", Record{Status: StatusAttended})

	_, ok := base.Get("2026-03-02", "slot-1")
	assert.False(t, ok, "original set must stay untouched")

	rec, ok := next.Get("2026-03-02", "slot-1")
	require.True(t, ok)
	assert.Equal(t, StatusAttended, rec.Status)

	// Overwriting in a later generation leaves earlier ones intact.
	final := next.Set("2026-03-02", "slot-1", Record{Status: StatusNotAttended})
	rec, _ = next.Get("2026-03-02", "slot-1")
	assert.Equal(t, StatusAttended, rec.Status)
	rec, _ = final.Get("2026-03-02", "slot-1")
	assert.Equal(t, StatusNotAttended, rec.Status)
}
