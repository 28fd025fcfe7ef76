package schedule

import (
	"fmt"
	"sort"
	"time"
)

type Period string

const (
	PeriodMorning   Period = "morning"
	PeriodAfternoon Period = "afternoon"
)

// ParsePeriod accepts "morning", "afternoon" or the empty string (whole day).
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodMorning, PeriodAfternoon:
		return Period(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

func (p Period) rank() int {
	if p == PeriodMorning {
		return 0
	}
	return 1
}

// TimeSlot is a bookable time of day. Label is "HH:MM" on a 24h clock and
// identifies the slot within a catalog.
type TimeSlot struct {
	Label  string `json:"label"`
	Period Period `json:"period"`
}

// Minutes returns the slot start as minutes after midnight.
func (s TimeSlot) Minutes() int {
	m, _ := parseClock(s.Label)
	return m
}

func parseClock(label string) (int, error) {
	t, err := time.Parse("15:04", label)
	if err != nil || len(label) != 5 {
		return 0, fmt.Errorf("%w: bad slot label %q", ErrInvalidCatalog, label)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Catalog is the fixed, ordered set of slots a clinician offers per day.
type Catalog struct {
	slots []TimeSlot
	index map[string]int
	step  time.Duration
}

// NewCatalog validates slots and stores them in canonical order: morning
// before afternoon, ascending time within each period.
func NewCatalog(step time.Duration, slots []TimeSlot) (*Catalog, error) {
	if step <= 0 {
		return nil, fmt.Errorf("%w: step must be positive", ErrInvalidCatalog)
	}

	ordered := make([]TimeSlot, len(slots))
	copy(ordered, slots)

	index := make(map[string]int, len(ordered))
	for _, s := range ordered {
		if s.Period != PeriodMorning && s.Period != PeriodAfternoon {
			return nil, fmt.Errorf("%w: slot %s has period %q", ErrInvalidCatalog, s.Label, s.Period)
		}
		if _, err := parseClock(s.Label); err != nil {
			return nil, err
		}
		if _, dup := index[s.Label]; dup {
			return nil, fmt.Errorf("%w: duplicate slot %s", ErrInvalidCatalog, s.Label)
		}
		index[s.Label] = 0
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Period != ordered[j].Period {
			return ordered[i].Period.rank() < ordered[j].Period.rank()
		}
		return ordered[i].Minutes() < ordered[j].Minutes()
	})
	for i, s := range ordered {
		index[s.Label] = i
	}

	return &Catalog{slots: ordered, index: index, step: step}, nil
}

// GenerateCatalog builds perPeriod slots starting at each period's start
// time, step apart.
func GenerateCatalog(morningStart, afternoonStart string, perPeriod int, step time.Duration) (*Catalog, error) {
	if perPeriod <= 0 {
		return nil, fmt.Errorf("%w: slots per period must be positive", ErrInvalidCatalog)
	}
	stepMin := int(step / time.Minute)
	if stepMin <= 0 {
		return nil, fmt.Errorf("%w: step must be at least a minute", ErrInvalidCatalog)
	}

	var slots []TimeSlot
	for _, p := range []struct {
		start  string
		period Period
	}{
		{morningStart, PeriodMorning},
		{afternoonStart, PeriodAfternoon},
	} {
		start, err := parseClock(p.start)
		if err != nil {
			return nil, err
		}
		for i := 0; i < perPeriod; i++ {
			m := start + i*stepMin
			if m >= 24*60 {
				return nil, fmt.Errorf("%w: %s slots run past midnight", ErrInvalidCatalog, p.period)
			}
			slots = append(slots, TimeSlot{Label: formatClock(m), Period: p.period})
		}
	}

	return NewCatalog(step, slots)
}

// DefaultCatalog is 09:00-11:30 and 15:00-17:30 in 30 minute slots.
func DefaultCatalog() *Catalog {
	c, err := GenerateCatalog("09:00", "15:00", 6, 30*time.Minute)
	if err != nil {
		panic(err)
	}
	return c
}

// Slots returns the catalog's slots for period, or every slot when period
// is empty.
func (c *Catalog) Slots(period Period) []TimeSlot {
	out := make([]TimeSlot, 0, len(c.slots))
	for _, s := range c.slots {
		if period == "" || s.Period == period {
			out = append(out, s)
		}
	}
	return out
}

func (c *Catalog) Lookup(label string) (TimeSlot, bool) {
	i, ok := c.index[label]
	if !ok {
		return TimeSlot{}, false
	}
	return c.slots[i], true
}

func (c *Catalog) Len() int { return len(c.slots) }

// Step is the slot granularity, used as the default appointment duration.
func (c *Catalog) Step() time.Duration { return c.step }

// Catalogs resolves the catalog for a clinician, falling back to a default.
type Catalogs struct {
	def       *Catalog
	overrides map[string]*Catalog
}

func NewCatalogs(def *Catalog) *Catalogs {
	return &Catalogs{def: def, overrides: make(map[string]*Catalog)}
}

// Set configures a clinician specific catalog.
func (cs *Catalogs) Set(clinicianID string, c *Catalog) {
	cs.overrides[clinicianID] = c
}

func (cs *Catalogs) For(clinicianID string) *Catalog {
	if c, ok := cs.overrides[clinicianID]; ok {
		return c
	}
	return cs.def
}
