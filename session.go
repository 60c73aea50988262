package tock

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Mode is the tagged sampling-mode variant. Each start command constructs a
// Session carrying exactly one of these, so illegal combinations (say, a
// continuous session without a second slot) cannot be represented after
// validation.
type Mode int

// The four sampling modes.
const (
	ModeSingle Mode = iota
	ModeRepeatedSingle
	ModeRepeatedBuffered
	ModeContinuous
)

func (m Mode) String() string {
	switch m {
	case ModeSingle:
		return "Single"
	case ModeRepeatedSingle:
		return "RepeatedSingle"
	case ModeRepeatedBuffered:
		return "RepeatedBuffered"
	case ModeContinuous:
		return "Continuous"
	}
	return "InvalidMode"
}

// buffered reports whether the mode fills allow slots rather than delivering
// per-sample values.
func (m Mode) buffered() bool {
	return m == ModeRepeatedBuffered || m == ModeContinuous
}

// slotsRequired is the number of populated allow slots the mode needs at
// start time.
func (m Mode) slotsRequired() int {
	switch m {
	case ModeRepeatedBuffered:
		return 1
	case ModeContinuous:
		return 2
	}
	return 0
}

// A Session is the live state of one in-progress sampling operation. Exactly
// one Session exists at a time; holding the ADC's session slot is the
// ownership token for the hardware engine. Sessions are created by a
// successful start command and destroyed by Stop or natural completion.
type Session struct {
	ID      ulid.ULID
	Mode    Mode
	Channel int
	FreqHz  int
	Start   time.Time
}

func newSession(mode Mode, channel, freqHz int) *Session {
	return &Session{
		ID:      ulid.Make(),
		Mode:    mode,
		Channel: channel,
		FreqHz:  freqHz,
		Start:   time.Now(),
	}
}

// SessionLogger receives session lifecycle notifications, e.g. for recording
// to a database. Implementations must not block: calls happen on command and
// dispatch paths.
type SessionLogger interface {
	SessionStarted(s Session)
	SessionEnded(s Session)
}
