package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSlot(t *testing.T) {
	sub := Subject{ID: "sub-1", Name: "Physics"}
	loc := Location{Lat: 10.76, Lng: 78.81, Name: "Orion"}

	t.Run("ok", func(t *testing.T) {
		s, err := NewSlot("Monday", "09:00", "10:00", sub, loc, false)
		require.NoError(t, err)
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, "Physics", s.SubjectName)
		assert.Equal(t, "sub-1", s.SubjectID)
	})

	t.Run("rejects inverted times", func(t *testing.T) {
		_, err := NewSlot("Monday", "10:00", "09:00", sub, loc, false)
		require.Error(t, err)
	})

	t.Run("rejects zero-length slot", func(t *testing.T) {
		_, err := NewSlot("Monday", "09:00", "09:00", sub, loc, false)
		require.Error(t, err)
	})

	t.Run("rejects bad clock", func(t *testing.T) {
		_, err := NewSlot("Monday", "9:00", "10:00", sub, loc, false)
		require.Error(t, err)
	})

	t.Run("rejects weekend", func(t *testing.T) {
		_, err := NewSlot("Saturday", "09:00", "10:00", sub, loc, false)
		require.Error(t, err)
	})

	t.Run("rejects out-of-range coordinates", func(t *testing.T) {
		_, err := NewSlot("Monday", "09:00", "10:00", sub, Location{Lat: 91, Lng: 0}, false)
		require.Error(t, err)
	})
}

func TestWeekNormalize(t *testing.T) {
	w := Week{{Day: "Wednesday", Slots: []Slot{{ID: "s1", Day: "Wednesday"}}}}
	n := w.Normalize()
	require.Len(t, n, 5)
	for i, day := range Weekdays {
		assert.Equal(t, day, n[i].Day)
	}
	assert.Len(t, n.Day("Wednesday").Slots, 1)
	assert.Empty(t, n.Day("Monday").Slots)
	assert.Empty(t, n.Day("Sunday").Slots)
}

func TestWeekAddSlotKeepsOrder(t *testing.T) {
	sub := Subject{ID: "sub-1", Name: "Maths"}
	loc := Location{Lat: 0, Lng: 0, Name: "Hall"}

	var w Week
	for _, from := range []string{"11:00", "09:00", "10:00"} {
		s, err := NewSlot("Monday", from, "12:30", sub, loc, false)
		require.NoError(t, err)
		w = w.AddSlot(s)
	}

	slots := w.Day("Monday").Slots
	require.Len(t, slots, 3)
	assert.Equal(t, "09:00", slots[0].From)
	assert.Equal(t, "10:00", slots[1].From)
	assert.Equal(t, "11:00", slots[2].From)
}

func TestWeekRemoveSlot(t *testing.T) {
	sub := Subject{ID: "sub-1", Name: "Maths"}
	s, err := NewSlot("Friday", "09:00", "10:00", sub, Location{}, false)
	require.NoError(t, err)

	w := Week{}.AddSlot(s)
	w, removed := w.RemoveSlot("Friday", s.ID)
	assert.True(t, removed)
	assert.Empty(t, w.Day("Friday").Slots)

	_, removed = w.RemoveSlot("Friday", "slot-missing")
	assert.False(t, removed)
}

func TestLocationLabel(t *testing.T) {
	assert.Equal(t, "Orion", Location{Lat: 1, Lng: 2, Name: "Orion"}.Label())
	assert.Equal(t, "10.76, 78.81", Location{Lat: 10.76, Lng: 78.81}.Label())
}

func TestDayOf(t *testing.T) {
	// 2026-08-24 is a Monday.
	mon := time.Date(2026, 8, 24, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "Monday", DayOf(mon))
	assert.Equal(t, "Sunday", DayOf(mon.AddDate(0, 0, -1)))
}
