package tock

// SamplingEngine is the boundary to the single hardware conversion engine.
// Implementations trigger conversions on one channel at a time and push each
// result through the sample function.
//
// The sample function is called from the engine's event context, the moral
// equivalent of an interrupt handler: it must do O(1) bookkeeping and return.
// Anything slower (callback delivery, publishing, archiving) is deferred work.
type SamplingEngine interface {
	// Name identifies the engine for status reports and logs.
	Name() string

	// NChannels returns the number of board-assigned input channels.
	NChannels() int

	// FrequencyLimits returns the chip-specific sampling bounds in Hz.
	FrequencyLimits() (min, max int)

	// SetSampleFunc registers the sample-ready handler. Must be called before
	// the first Start and not changed while running.
	SetSampleFunc(f func(RawType))

	// Start begins conversions on one channel at the given frequency. A
	// freqHz of zero asks for a single conversion at the engine's default
	// rate. A synchronous error means the hardware faulted and nothing was
	// started. Deliveries begin on the engine's own goroutine after Start
	// returns; Start never invokes the sample function itself.
	Start(channel, freqHz int) error

	// Stop cancels conversions. It must be safe to call when not running and
	// safe to call from inside the sample function.
	Stop() error
}
