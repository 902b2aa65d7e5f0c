package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"geoattend/internal/geo"
)

// Weekdays are the tracked days, in schedule order. Weekend days carry no
// slots and are never evaluated.
var Weekdays = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}

// Subject is a user-defined course or class.
type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Location is a fixed point a slot is held at. Name is optional.
type Location struct {
	Lat  float64 `json:"lat" validate:"gte=-90,lte=90"`
	Lng  float64 `json:"lng" validate:"gte=-180,lte=180"`
	Name string  `json:"name,omitempty"`
}

// Label returns the display name, falling back to raw coordinates.
func (l Location) Label() string {
	if l.Name != "" {
		return l.Name
	}
	return fmt.Sprintf("%v, %v", l.Lat, l.Lng)
}

// Slot is one scheduled session on a weekday. SubjectName is denormalized
// at creation time; renaming the subject afterwards does not update it.
type Slot struct {
	ID          string   `json:"id"`
	Day         string   `json:"day" validate:"required"`
	From        string   `json:"from" validate:"required,hhmm"`
	To          string   `json:"to" validate:"required,hhmm"`
	SubjectID   string   `json:"subject_id" validate:"required"`
	SubjectName string   `json:"subject_name"`
	Location    Location `json:"location"`
	Exclude     bool     `json:"exclude"`
}

// DaySchedule holds one weekday's slots, sorted ascending by From.
type DaySchedule struct {
	Day   string `json:"day"`
	Slots []Slot `json:"slots"`
}

// Week is exactly one DaySchedule per weekday Monday through Friday.
type Week []DaySchedule

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := geo.ParseClock(fl.Field().String())
		return err == nil
	})
}

// NewSubject creates a subject with a fresh id.
func NewSubject(name string) (Subject, error) {
	if name == "" {
		return Subject{}, errors.New("subject name required")
	}
	return Subject{ID: "sub-" + uuid.NewString(), Name: name}, nil
}

// NewSlot validates the fields and builds a slot with a fresh id. The
// subject name is captured from the subject at this point and never synced.
func NewSlot(day, from, to string, subject Subject, loc Location, exclude bool) (Slot, error) {
	s := Slot{
		ID:          "slot-" + uuid.NewString(),
		Day:         day,
		From:        from,
		To:          to,
		SubjectID:   subject.ID,
		SubjectName: subject.Name,
		Location:    loc,
		Exclude:     exclude,
	}
	if !ValidDay(day) {
		return Slot{}, fmt.Errorf("invalid day %q", day)
	}
	if err := validate.Struct(s); err != nil {
		return Slot{}, err
	}
	fromMin, _ := geo.ParseClock(from)
	toMin, _ := geo.ParseClock(to)
	if fromMin >= toMin {
		return Slot{}, fmt.Errorf("slot must start before it ends (%s-%s)", from, to)
	}
	return s, nil
}

// ValidDay reports whether day is a tracked weekday.
func ValidDay(day string) bool {
	for _, d := range Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// DayOf maps a wall-clock time to the schedule's day name. Weekend days
// return their name too; they simply never match a DaySchedule.
func DayOf(t time.Time) string {
	return t.Weekday().String()
}

// Normalize returns a week with every weekday present in order, keeping
// existing slots and synthesizing empty days.
func (w Week) Normalize() Week {
	byDay := make(map[string]DaySchedule, len(w))
	for _, d := range w {
		byDay[d.Day] = d
	}
	out := make(Week, 0, len(Weekdays))
	for _, day := range Weekdays {
		d, ok := byDay[day]
		if !ok {
			d = DaySchedule{Day: day, Slots: []Slot{}}
		}
		out = append(out, d)
	}
	return out
}

// Day returns the schedule for the named day, empty when not tracked.
func (w Week) Day(day string) DaySchedule {
	for _, d := range w {
		if d.Day == day {
			return d
		}
	}
	return DaySchedule{Day: day, Slots: []Slot{}}
}

// AddSlot inserts a slot into its day, keeping slots sorted by start time.
func (w Week) AddSlot(s Slot) Week {
	out := w.Normalize()
	for i := range out {
		if out[i].Day != s.Day {
			continue
		}
		slots := append(append([]Slot{}, out[i].Slots...), s)
		sort.SliceStable(slots, func(a, b int) bool {
			return slots[a].From < slots[b].From
		})
		out[i].Slots = slots
	}
	return out
}

// RemoveSlot drops the slot with the given id from the named day. It
// reports whether anything was removed.
func (w Week) RemoveSlot(day, slotID string) (Week, bool) {
	out := w.Normalize()
	removed := false
	for i := range out {
		if out[i].Day != day {
			continue
		}
		kept := make([]Slot, 0, len(out[i].Slots))
		for _, s := range out[i].Slots {
			if s.ID == slotID {
				removed = true
				continue
			}
			kept = append(kept, s)
		}
		out[i].Slots = kept
	}
	return out, removed
}

// FindSubject looks a subject up by id.
func FindSubject(subjects []Subject, id string) (Subject, bool) {
	for _, s := range subjects {
		if s.ID == id {
			return s, true
		}
	}
	return Subject{}, false
}
