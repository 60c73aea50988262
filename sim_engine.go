package tock

import (
	"fmt"
	"sync"
	"time"
)

// Frequency bounds for the simulated chip, in Hz. Real engines inject their
// own chip-specific limits through FrequencyLimits.
const (
	simMinFreq = 10
	simMaxFreq = 250000
)

// simSingleRate paces one-shot conversions when no frequency was requested.
const simSingleRate = 1000

// SimEngine is a software sampling engine that synthesizes a triangle wave.
// Each channel's wave is phase-shifted so tests and demos can tell channels
// apart.
type SimEngine struct {
	nchan  int
	minval RawType
	maxval RawType

	sampleFunc func(RawType)

	mu      sync.Mutex
	running bool
	abort   chan struct{}
}

// NewSimEngine creates a simulated engine with the given channel count,
// sweeping the full default range.
func NewSimEngine(nchan int) *SimEngine {
	return &SimEngine{nchan: nchan, minval: 0, maxval: 4095}
}

// Name identifies the engine in logs and status reports.
func (e *SimEngine) Name() string { return "SimEngine" }

// NChannels returns the simulated channel count.
func (e *SimEngine) NChannels() int { return e.nchan }

// FrequencyLimits returns the simulated chip's sampling bounds in Hz.
func (e *SimEngine) FrequencyLimits() (min, max int) { return simMinFreq, simMaxFreq }

// SetSampleFunc registers the sample-ready handler.
func (e *SimEngine) SetSampleFunc(f func(RawType)) { e.sampleFunc = f }

// Start begins synthesizing conversions on one channel. It rejects a second
// Start while running, which a correct session manager never issues.
func (e *SimEngine) Start(channel, freqHz int) error {
	if channel < 0 || channel >= e.nchan {
		return fmt.Errorf("SimEngine has no channel %d", channel)
	}
	if e.sampleFunc == nil {
		return fmt.Errorf("SimEngine started with no sample function")
	}
	if freqHz == 0 {
		freqHz = simSingleRate
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("SimEngine is already running")
	}
	e.running = true
	e.abort = make(chan struct{})

	interval := time.Duration(float64(time.Second) / float64(freqHz))
	go e.generate(e.abort, interval, channel)
	return nil
}

// Stop cancels conversions. Safe when not running and safe from inside the
// sample function: it closes the abort channel and returns without waiting.
func (e *SimEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	e.running = false
	close(e.abort)
	return nil
}

// generate paces the triangle wave until aborted. It rechecks the abort
// channel immediately before each delivery so at most one conversion can be
// in flight when Stop is called.
func (e *SimEngine) generate(abort chan struct{}, interval time.Duration, channel int) {
	nrise := int(e.maxval - e.minval)
	cycleLen := 2 * nrise
	pos := (channel * cycleLen) / (e.nchan + 1) // phase offset per channel

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-abort:
			return
		case <-ticker.C:
		}
		select {
		case <-abort:
			return
		default:
		}

		var v RawType
		if pos < nrise {
			v = e.minval + RawType(pos)
		} else {
			v = e.maxval - RawType(pos-nrise)
		}
		pos = (pos + 1) % cycleLen
		e.sampleFunc(v)
	}
}
