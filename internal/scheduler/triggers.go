package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Trigger computes the next firing strictly after a reference time. A zero
// result means the trigger never fires again.
type Trigger interface {
	Next(after time.Time) time.Time
}

// secondsParser accepts 6-field cron expressions so triggers get second
// resolution, matching the hour/minute/second stored on schedules.
var secondsParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

type cronTrigger struct{ sched cron.Schedule }

func (t cronTrigger) Next(after time.Time) time.Time { return t.sched.Next(after) }

// Daily fires once a day at the given wall-clock time.
func Daily(hour, minute, second int) (Trigger, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return nil, fmt.Errorf("invalid daily trigger %02d:%02d:%02d", hour, minute, second)
	}
	sched, err := secondsParser.Parse(fmt.Sprintf("%d %d %d * * *", second, minute, hour))
	if err != nil {
		return nil, err
	}
	return cronTrigger{sched: sched}, nil
}

type intervalTrigger struct{ every time.Duration }

func (t intervalTrigger) Next(after time.Time) time.Time { return after.Add(t.every) }

// Every fires repeatedly with a fixed delay.
func Every(every time.Duration) Trigger {
	return intervalTrigger{every: every}
}

type dateTrigger struct{ at time.Time }

func (t dateTrigger) Next(after time.Time) time.Time {
	if t.at.After(after) {
		return t.at
	}
	return time.Time{}
}

// At fires exactly once at the given instant. Once the instant has passed
// the job unregisters itself.
func At(at time.Time) Trigger {
	return dateTrigger{at: at}
}
