package tock

import (
	"testing"
	"time"
)

func TestSimEngineProducesSamples(t *testing.T) {
	eng := NewSimEngine(2)
	if eng.NChannels() != 2 {
		t.Errorf("NChannels = %d, want 2", eng.NChannels())
	}
	min, max := eng.FrequencyLimits()
	if min <= 0 || max <= min {
		t.Errorf("implausible frequency limits [%d, %d]", min, max)
	}

	samples := make(chan RawType, 1000)
	eng.SetSampleFunc(func(v RawType) { samples <- v })
	if err := eng.Start(0, 10000); err != nil {
		t.Fatalf("Start returned %v", err)
	}
	defer eng.Stop()

	for i := 0; i < 3; i++ {
		select {
		case v := <-samples:
			if v > eng.maxval {
				t.Errorf("sample %d out of range: %d", i, v)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("no sample %d after 2 s at 10 kHz", i)
		}
	}
}

func TestSimEngineStartValidation(t *testing.T) {
	eng := NewSimEngine(2)
	eng.SetSampleFunc(func(RawType) {})
	if err := eng.Start(5, 1000); err == nil {
		t.Error("Start on a nonexistent channel succeeded")
		eng.Stop()
	}
	if err := eng.Start(0, 1000); err != nil {
		t.Fatalf("Start returned %v", err)
	}
	if err := eng.Start(0, 1000); err == nil {
		t.Error("second Start while running succeeded")
	}
	eng.Stop()
}

func TestSimEngineStopIdempotent(t *testing.T) {
	eng := NewSimEngine(1)
	if err := eng.Stop(); err != nil {
		t.Errorf("Stop before any Start returned %v", err)
	}
	eng.SetSampleFunc(func(RawType) {})
	if err := eng.Start(0, 1000); err != nil {
		t.Fatalf("Start returned %v", err)
	}
	if err := eng.Stop(); err != nil {
		t.Errorf("Stop returned %v", err)
	}
	if err := eng.Stop(); err != nil {
		t.Errorf("second Stop returned %v", err)
	}
	// The engine is restartable after a stop.
	if err := eng.Start(0, 1000); err != nil {
		t.Errorf("restart after Stop returned %v", err)
	}
	eng.Stop()
}
