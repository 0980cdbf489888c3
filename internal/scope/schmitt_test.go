package scope

import "testing"

func TestSchmittTrigger_FiresOncePerEdge(t *testing.T) {
	var s SchmittTrigger
	s.SetThresholds(0.9, 1.0)

	if s.Process(0) {
		t.Fatal("first low value should not fire")
	}
	if s.Process(0.95) {
		t.Error("value between thresholds should not fire")
	}
	if !s.Process(1.0) {
		t.Error("crossing the high threshold should fire")
	}
	if s.Process(2.0) {
		t.Error("staying high should not fire again")
	}
	if s.Process(0.95) {
		t.Error("dropping into the hysteresis band should not fire")
	}
	if s.Process(1.5) {
		t.Error("should not re-fire without going below the low threshold")
	}
	s.Process(0.9)
	if !s.Process(1.2) {
		t.Error("expected fire after re-arming below the low threshold")
	}
}

func TestSchmittTrigger_ResetIgnoresStaleLevel(t *testing.T) {
	var s SchmittTrigger
	s.SetThresholds(0.9, 1.0)

	s.Process(0)
	s.Reset()

	if s.Process(5) {
		t.Error("first value after reset must not fire")
	}
	if !s.IsHigh() {
		t.Error("expected trigger to latch high after reset")
	}
	if s.Process(5) {
		t.Error("holding high should not fire")
	}
}

func TestSchmittTrigger_ThresholdChange(t *testing.T) {
	var s SchmittTrigger
	s.SetThresholds(-0.1, 0)
	s.Process(-1)

	s.SetThresholds(1.9, 2)
	if s.Process(1) {
		t.Error("1V should not reach the new 2V threshold")
	}
	if !s.Process(2) {
		t.Error("expected fire at the new threshold")
	}
}
