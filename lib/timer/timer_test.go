package timer

import (
	"strings"
	"testing"
	"time"
)

func TestMark(t *testing.T) {
	tmr := NewXTimer()
	time.Sleep(10 * time.Millisecond)
	tmr.Mark("step_1")
	time.Sleep(10 * time.Millisecond)
	tmr.Mark("step_2")

	out := tmr.Print()
	if !strings.Contains(out, "step_1:") || !strings.Contains(out, "step_2:") || !strings.Contains(out, "total:") {
		t.Errorf("unexpected print:%s", out)
	}
	if tmr.Cost("step_1") < 10*time.Millisecond {
		t.Errorf("step_1 cost too small:%v", tmr.Cost("step_1"))
	}
	if tmr.Cost("missing") != 0 {
		t.Error("unknown tag should cost 0")
	}
	if tmr.Elapsed() < tmr.Cost("step_1")+tmr.Cost("step_2") {
		t.Error("elapsed less than sum of marks")
	}
}
