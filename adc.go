// Package tock implements an analog-to-digital sampling driver behind a
// narrow command/subscribe/allow boundary, plus the shared-allow memory
// consistency discipline that lets a client read a capture buffer the driver
// is concurrently filling.
package tock

import (
	"sync"
)

// ADC is the sampling session manager. It arbitrates exclusive access to the
// single hardware sampling engine across the four sampling modes, validates
// command arguments, owns the buffer pool, and drives the completion
// notifier.
//
// All commands are synchronous and non-blocking: a start command validates,
// kicks the engine, and returns. Results arrive later through the subscribed
// handler.
type ADC struct {
	engine   SamplingEngine
	notifier *Notifier
	logger   SessionLogger

	mu      sync.Mutex
	session *Session
	pool    bufferPool
}

// NewADC wires a session manager to its sampling engine. A nil engine is
// legal and models a board without the device: every start command then
// fails with ErrNoDevice.
func NewADC(engine SamplingEngine) *ADC {
	a := &ADC{
		engine:   engine,
		notifier: NewNotifier(),
	}
	if engine != nil {
		engine.SetSampleFunc(a.onSample)
	}
	return a
}

// SetSessionLogger installs an optional session lifecycle recorder.
func (a *ADC) SetSessionLogger(l SessionLogger) { a.logger = l }

// Subscribe replaces the registered completion handler. See Notifier.Subscribe.
func (a *ADC) Subscribe(h Handler) { a.notifier.Subscribe(h) }

// Notifier returns the completion notifier, mainly so callers can Close it
// on shutdown.
func (a *ADC) Notifier() *Notifier { return a.notifier }

// ChannelCount reports the number of board-assigned input channels.
func (a *ADC) ChannelCount() (int, error) {
	if a.engine == nil {
		return 0, ErrNoDevice
	}
	return a.engine.NChannels(), nil
}

// Active returns a copy of the live session, if any.
func (a *ADC) Active() (Session, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil {
		return Session{}, false
	}
	return *a.session, true
}

// SampleSingle captures one conversion on the given channel and delivers it
// through one callback, after which the driver is Idle again.
func (a *ADC) SampleSingle(channel int) error {
	return a.start(ModeSingle, channel, 0)
}

// SampleRepeated captures conversions on the given channel at freqHz,
// delivering one callback per sample until Stop.
func (a *ADC) SampleRepeated(channel, freqHz int) error {
	return a.start(ModeRepeatedSingle, channel, freqHz)
}

// SampleBuffered fills allow slot 0 once with conversions at freqHz, delivers
// the full buffer in one callback, and returns to Idle. The buffer is not
// refilled without a new start command.
func (a *ADC) SampleBuffered(channel, freqHz int) error {
	return a.start(ModeRepeatedBuffered, channel, freqHz)
}

// SampleContinuous fills allow slots 0 and 1 alternately, delivering one
// callback per filled buffer, until Stop. The first fill always lands in
// slot 0.
func (a *ADC) SampleContinuous(channel, freqHz int) error {
	return a.start(ModeContinuous, channel, freqHz)
}

// start checks the preconditions in their specified order, then creates the
// session and kicks the engine. A conflicting start returns ErrBusy
// immediately; nothing is ever queued.
func (a *ADC) start(mode Mode, channel, freqHz int) error {
	if a.engine == nil {
		return ErrNoDevice
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		return ErrBusy
	}
	if channel < 0 || channel >= a.engine.NChannels() {
		return ErrInvalidArgument
	}
	if mode != ModeSingle {
		min, max := a.engine.FrequencyLimits()
		if freqHz < min || freqHz > max {
			return ErrInvalidArgument
		}
	}
	if n := mode.slotsRequired(); n > 0 && !a.pool.populated(n) {
		return ErrOutOfMemory
	}
	s := newSession(mode, channel, freqHz)
	if mode.buffered() {
		a.pool.begin(0)
	}
	a.session = s

	// Holding the lock across Start keeps every engine start and stop in
	// session order. Engines deliver from their own goroutines, never from
	// inside Start, so this cannot deadlock against onSample.
	if err := a.engine.Start(channel, freqHz); err != nil {
		a.pool.abandon()
		a.session = nil
		ProblemLogger.Printf("ADC engine %s failed to start %v on channel %d: %v",
			a.engine.Name(), mode, channel, err)
		return ErrHardwareFault
	}
	if a.logger != nil {
		a.logger.SessionStarted(*s)
	}
	return nil
}

// Stop cancels the live session, if any, and always succeeds. It returns
// with the driver Idle; a sample in flight at the moment of the call is
// discarded, not delivered.
func (a *ADC) Stop() error {
	a.mu.Lock()
	s := a.session
	a.session = nil
	a.pool.abandon()
	if s != nil {
		if err := a.engine.Stop(); err != nil {
			ProblemLogger.Printf("ADC engine %s reported an error on stop: %v", a.engine.Name(), err)
		}
	}
	a.mu.Unlock()
	if s != nil && a.logger != nil {
		a.logger.SessionEnded(*s)
	}
	return nil
}

// onSample is the sample-ready handler, called from the engine's event
// context. It does only the O(1) bookkeeping here; callback delivery is
// deferred to the notifier's dispatch goroutine so the next hardware event is
// never delayed by a slow subscriber.
func (a *ADC) onSample(v RawType) {
	a.mu.Lock()
	s := a.session
	if s == nil {
		// Stop won the race; the sample is discarded.
		a.mu.Unlock()
		return
	}
	switch s.Mode {
	case ModeSingle:
		// The engine is stopped before the session slot is released: a start
		// command racing this completion must find the engine already
		// stopped, or its fresh run would be cancelled by this stale stop.
		a.session = nil
		a.engine.Stop()
		a.mu.Unlock()
		a.endSession(s)
		a.notifier.post(Event{SessionID: s.ID, Mode: s.Mode, Channel: s.Channel, Value: v})

	case ModeRepeatedSingle:
		a.mu.Unlock()
		a.notifier.post(Event{SessionID: s.ID, Mode: s.Mode, Channel: s.Channel, Value: v})

	case ModeRepeatedBuffered:
		if !a.pool.writeSample(v) {
			a.mu.Unlock()
			return
		}
		buf := a.pool.end()
		a.session = nil
		a.engine.Stop()
		a.mu.Unlock()
		a.endSession(s)
		a.notifier.post(Event{SessionID: s.ID, Mode: s.Mode, Channel: s.Channel, Buffer: buf})

	case ModeContinuous:
		if !a.pool.writeSample(v) {
			a.mu.Unlock()
			return
		}
		buf := a.pool.end()
		if !a.pool.advance() {
			// The other slot was cleared mid-session; there is nowhere to
			// put the next cycle, so the session ends here.
			a.session = nil
			a.engine.Stop()
			a.mu.Unlock()
			a.endSession(s)
			a.notifier.post(Event{SessionID: s.ID, Mode: s.Mode, Channel: s.Channel, Buffer: buf})
			return
		}
		a.mu.Unlock()
		a.notifier.post(Event{SessionID: s.ID, Mode: s.Mode, Channel: s.Channel, Buffer: buf})
	}
}

func (a *ADC) endSession(s *Session) {
	if a.logger != nil {
		a.logger.SessionEnded(*s)
	}
}

// Allow grants (or replaces) the shared buffer for one allow slot. The prior
// descriptor is discarded without preserving its contents. Allow is legal in
// any session state; replacing a slot during an active fill cycle leaves the
// cycle on the buffer it borrowed and takes effect for the next cycle.
// Passing a nil region clears the slot.
func (a *ADC) Allow(slot int, r *Region) AllowResult {
	if slot < 0 || slot >= nslots {
		return AllowResult{Err: ErrInvalidArgument}
	}
	a.mu.Lock()
	a.pool.setSlot(slot, r)
	a.mu.Unlock()
	res := AllowResult{OK: true}
	if r != nil {
		res.Data = r.Data()
		res.Size = r.Len()
	}
	return res
}
