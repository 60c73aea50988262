package tock

import "sync/atomic"

// A Region is a buffer granted through the shared-allow mechanism: it stays
// mapped to both the driver (writer) and the granting client (reader) at the
// same time, with no revoke/re-grant round trip per fill cycle.
//
// Consistency contract, writer side (this driver):
//  1. Within one fill cycle, samples land at strictly increasing offsets and
//     no offset is rewritten.
//  2. The completion callback is issued only after the final offset of the
//     cycle has been written. A reader that starts no earlier than the
//     callback and finishes before the next cycle begins overwriting the same
//     slot sees a complete, non-torn buffer.
//  3. In continuous mode that leaves exactly one buffer-period of margin
//     between a slot becoming readable and being overwritten. The driver does
//     not police the margin; pick frequency and buffer length so it exceeds
//     your read latency.
//
// Of the recognized shared-allow disciplines (trailing sequence counter,
// write-then-signal ordering, non-overlapping regions), this driver relies on
// write-then-signal ordering. The sequence counter below is debug
// instrumentation only: it lets tests catch discipline violations, and
// production readers may ignore it.
type Region struct {
	data []RawType
	seq  atomic.Uint32 // odd while a fill cycle is writing
}

// Share wraps a caller-owned buffer as a shared-allow Region. The driver
// never copies or reallocates the underlying memory.
func Share(data []RawType) *Region {
	return &Region{data: data}
}

// NewRegion allocates a fresh Region of n samples.
func NewRegion(n int) *Region {
	return Share(make([]RawType, n))
}

// Data exposes the shared memory. Readers observing it concurrently with an
// active session are bound by the consistency contract above.
func (r *Region) Data() []RawType { return r.data }

// Len returns the region length in samples.
func (r *Region) Len() int { return len(r.data) }

// Sequence returns the current value of the debug canary.
func (r *Region) Sequence() uint32 { return r.seq.Load() }

// Snapshot copies the region into dst if it can do so without racing a fill
// cycle. It retries a few times, then reports failure. Intended for tests and
// cautious readers; the production guarantee comes from write-then-signal
// ordering, not from this canary.
func (r *Region) Snapshot(dst []RawType) bool {
	const maxTries = 4
	for try := 0; try < maxTries; try++ {
		s1 := r.seq.Load()
		if s1&1 != 0 {
			continue // a fill cycle is open
		}
		copy(dst, r.data)
		if r.seq.Load() == s1 {
			return true
		}
	}
	return false
}

// beginFill marks the start of a fill cycle (canary goes odd).
func (r *Region) beginFill() { r.seq.Add(1) }

// endFill marks the end of a fill cycle, complete or abandoned (canary goes
// even, but distinct from the pre-cycle value).
func (r *Region) endFill() { r.seq.Add(1) }

// AllowResult is the general shared-allow ABI shape, reusable across drivers:
// a success flag, the buffer now shared, its size, and an error code. The
// buffer stays mapped to both sides until the next allow call on its slot.
type AllowResult struct {
	OK   bool
	Data []RawType
	Size int
	Err  error
}
