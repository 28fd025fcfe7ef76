package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(slots []TimeSlot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.Label)
	}
	return out
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()

	assert.Equal(t, 12, c.Len())
	assert.Equal(t, 30*time.Minute, c.Step())
	assert.Equal(t,
		[]string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"},
		labels(c.Slots(PeriodMorning)))
	assert.Equal(t,
		[]string{"15:00", "15:30", "16:00", "16:30", "17:00", "17:30"},
		labels(c.Slots(PeriodAfternoon)))
	assert.Equal(t,
		append(labels(c.Slots(PeriodMorning)), labels(c.Slots(PeriodAfternoon))...),
		labels(c.Slots("")))
}

func TestNewCatalog_CanonicalOrder(t *testing.T) {
	c, err := NewCatalog(time.Hour, []TimeSlot{
		{Label: "14:00", Period: PeriodAfternoon},
		{Label: "10:00", Period: PeriodMorning},
		{Label: "13:00", Period: PeriodAfternoon},
		{Label: "08:00", Period: PeriodMorning},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"08:00", "10:00", "13:00", "14:00"}, labels(c.Slots("")))

	s, ok := c.Lookup("13:00")
	require.True(t, ok)
	assert.Equal(t, PeriodAfternoon, s.Period)

	_, ok = c.Lookup("12:00")
	assert.False(t, ok)
}

func TestNewCatalog_Rejects(t *testing.T) {
	t.Run("duplicate label", func(t *testing.T) {
		_, err := NewCatalog(time.Hour, []TimeSlot{
			{Label: "09:00", Period: PeriodMorning},
			{Label: "09:00", Period: PeriodAfternoon},
		})
		assert.ErrorIs(t, err, ErrInvalidCatalog)
	})

	t.Run("bad label", func(t *testing.T) {
		_, err := NewCatalog(time.Hour, []TimeSlot{{Label: "9am", Period: PeriodMorning}})
		assert.ErrorIs(t, err, ErrInvalidCatalog)
	})

	t.Run("unknown period", func(t *testing.T) {
		_, err := NewCatalog(time.Hour, []TimeSlot{{Label: "09:00", Period: "evening"}})
		assert.ErrorIs(t, err, ErrInvalidCatalog)
	})

	t.Run("runs past midnight", func(t *testing.T) {
		_, err := GenerateCatalog("09:00", "23:00", 4, time.Hour)
		assert.ErrorIs(t, err, ErrInvalidCatalog)
	})
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("morning")
	require.NoError(t, err)
	assert.Equal(t, PeriodMorning, p)

	p, err = ParsePeriod("")
	require.NoError(t, err)
	assert.Equal(t, Period(""), p)

	_, err = ParsePeriod("night")
	assert.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestCatalogs_Override(t *testing.T) {
	small, err := GenerateCatalog("08:00", "14:00", 2, time.Hour)
	require.NoError(t, err)

	cs := NewCatalogs(DefaultCatalog())
	cs.Set("C2", small)

	assert.Equal(t, 12, cs.For("C1").Len())
	assert.Equal(t, []string{"08:00", "09:00", "14:00", "15:00"}, labels(cs.For("C2").Slots("")))
}
