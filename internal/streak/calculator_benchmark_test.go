package streak

import (
	"testing"
	"time"
)

func BenchmarkCalculatorConsecutive(b *testing.B) {
	calc := NewCalculator(time.Sunday)

	// A year of Monday-Saturday attendance ending today.
	today := time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC)
	history := make([]Entry, 0, 365)
	for i := 0; i < 365; i++ {
		d := today.AddDate(0, 0, -i)
		if d.Weekday() == time.Sunday {
			continue
		}
		history = append(history, Entry{Day: d, Status: StatusPresent})
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		streak := calc.Consecutive(history, today)
		if streak == 0 {
			b.Fatal("expected an unbroken streak")
		}
	}
}
