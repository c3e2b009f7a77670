package jobs

import (
	"fmt"
	"math/rand"
	"sort"
	"time"
)

// RandomTimes picks count publish instants inside day's calendar day,
// pairwise separated by at least separation. The day is cut into
// separation-sized slots; count distinct slots are sampled and every chosen
// slot gets the same random in-slot jitter, which preserves the minimum
// separation while keeping the actual wall-clock times unpredictable.
// Results are sorted ascending.
func RandomTimes(count, separationMinutes int, day time.Time) ([]time.Time, error) {
	if count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", count)
	}
	if separationMinutes <= 0 {
		return nil, fmt.Errorf("separation must be positive, got %d", separationMinutes)
	}

	totalSlots := 24 * 60 / separationMinutes
	if count > totalSlots {
		return nil, fmt.Errorf("cannot place %d times %d minutes apart within one day", count, separationMinutes)
	}

	slots := rand.Perm(totalSlots)[:count]
	jitter := rand.Intn(separationMinutes)

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	times := make([]time.Time, 0, count)
	for _, slot := range slots {
		times = append(times, midnight.Add(time.Duration(slot*separationMinutes+jitter)*time.Minute))
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times, nil
}
