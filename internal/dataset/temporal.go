package dataset

import (
	"fmt"
	"time"

	"capfactor/internal/types"
)

// AddTemporalFeatures derives year, month, day, hour and weekday from the
// instant column, all in UTC. Weekday counts Monday as 0 and Sunday as 6.
func AddTemporalFeatures(f *Frame) error {
	instants := f.Text(types.ColInstant)
	if instants == nil {
		return types.NewAppErrorWithDetails(types.ErrCodeConfigFeatureMismatch,
			"frame has no instant column", nil, map[string]any{"missing": []string{types.ColInstant}})
	}

	n := f.Len()
	year, month, day := make([]float64, n), make([]float64, n), make([]float64, n)
	hour, weekday := make([]float64, n), make([]float64, n)
	for i, s := range instants {
		t, err := ParseInstant(s)
		if err != nil {
			return types.NewAppError(types.ErrCodeValidationMissingField, fmt.Sprintf("row %d: bad instant %q", i, s), err)
		}
		year[i] = float64(t.Year())
		month[i] = float64(t.Month())
		day[i] = float64(t.Day())
		hour[i] = float64(t.Hour())
		weekday[i] = float64(MondayIndex(t.Weekday()))
	}

	for _, c := range []struct {
		name   string
		values []float64
	}{
		{types.ColYear, year},
		{types.ColMonth, month},
		{types.ColDay, day},
		{types.ColHour, hour},
		{types.ColWeekday, weekday},
	} {
		if err := f.SetFloat(c.name, c.values); err != nil {
			return err
		}
	}
	return nil
}

// MondayIndex maps Monday..Sunday to 0..6.
func MondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
