package redisclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockKeys_SortedAndDeduped(t *testing.T) {
	keys := lockKeys([]DayKey{
		{ClinicianID: "C1", Date: "2025-05-02"},
		{ClinicianID: "C1", Date: "2025-05-01"},
		{ClinicianID: "C1", Date: "2025-05-02"},
	})

	assert.Equal(t, []string{
		"lock:day:C1:2025-05-01",
		"lock:day:C1:2025-05-02",
	}, keys)
}

func TestLocalDayLocker(t *testing.T) {
	l := NewLocalDayLocker()
	ctx := context.Background()
	day := DayKey{ClinicianID: "C1", Date: "2025-05-01"}
	other := DayKey{ClinicianID: "C2", Date: "2025-05-01"}

	err := l.WithDayLock(ctx, []DayKey{day}, func(ctx context.Context) error {
		err := l.WithDayLock(ctx, []DayKey{other, day}, func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrLockNotAcquired)

		return l.WithDayLock(ctx, []DayKey{other}, func(context.Context) error { return nil })
	})
	require.NoError(t, err)

	// released after fn returns
	called := false
	err = l.WithDayLock(ctx, []DayKey{day}, func(context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}
