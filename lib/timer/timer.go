package timer

import (
	"fmt"
	"strings"
	"time"
)

// MarkPoint define data structure of marked point
type MarkPoint struct {
	tag   string
	delta time.Duration
}

// XTimer records the cost of each phase of one operation
type XTimer struct {
	bornTime   time.Time
	latestTime time.Time
	points     []*MarkPoint
}

// NewXTimer create new XTimer instance
func NewXTimer() *XTimer {
	now := time.Now()
	return &XTimer{
		bornTime:   now,
		latestTime: now,
	}
}

// Mark mark a point and record the tag of the point with time delta
func (timer *XTimer) Mark(tag string) {
	now := time.Now()
	timer.points = append(timer.points, &MarkPoint{
		tag:   tag,
		delta: now.Sub(timer.latestTime),
	})
	timer.latestTime = now
}

// Cost returns the accumulated delta of points marked with tag
func (timer *XTimer) Cost(tag string) time.Duration {
	var total time.Duration
	for _, point := range timer.points {
		if point.tag == tag {
			total += point.delta
		}
	}
	return total
}

// Elapsed returns time since the timer was created
func (timer *XTimer) Elapsed() time.Duration {
	return time.Since(timer.bornTime)
}

// Print all record points and timestamp information
func (timer *XTimer) Print() string {
	msg := make([]string, 0, len(timer.points)+1)
	for _, point := range timer.points {
		msg = append(msg, fmt.Sprintf("%s:%.2fms", point.tag, float64(point.delta)/float64(time.Millisecond)))
	}
	msg = append(msg, fmt.Sprintf("total:%.2fms", float64(timer.Elapsed())/float64(time.Millisecond)))
	return strings.Join(msg, ",")
}
