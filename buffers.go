package tock

// RawType holds one raw conversion result from the sampling engine.
type RawType uint16

// nslots is the number of allow slots. Slot 0 is the general capture buffer
// and the first continuous buffer; slot 1 exists only for continuous mode.
const nslots = 2

// bufferPool owns the allow slots, the fill cursor, and the active-slot
// alternation for continuous capture. All methods are called with the ADC
// session lock held.
//
// A fill cycle borrows the slot's Region when it begins. Replacing a slot
// mid-cycle therefore never redirects the writes in flight: the cycle keeps
// filling the borrowed region, and the replacement takes effect when the next
// cycle begins.
type bufferPool struct {
	slots  [nslots]*Region
	active int     // slot index the current/next cycle fills
	cursor int     // samples written in the current cycle
	cur    *Region // region borrowed by the current cycle, nil when no cycle is open
}

// setSlot replaces the descriptor for one allow slot unconditionally. A nil
// region clears the slot. Legal in any session state.
func (p *bufferPool) setSlot(index int, r *Region) {
	p.slots[index] = r
}

// populated reports whether the first n slots hold non-empty buffers.
func (p *bufferPool) populated(n int) bool {
	for i := 0; i < n; i++ {
		if p.slots[i] == nil || p.slots[i].Len() == 0 {
			return false
		}
	}
	return true
}

// begin opens a fill cycle on the given slot.
func (p *bufferPool) begin(slot int) {
	p.active = slot
	p.cursor = 0
	p.cur = p.slots[slot]
	p.cur.beginFill()
}

// writeSample stores one conversion result at the fill cursor and reports
// whether the buffer is now full. This is the entirety of the work done on
// the sample-ready path for buffered modes.
func (p *bufferPool) writeSample(v RawType) (full bool) {
	p.cur.data[p.cursor] = v
	p.cursor++
	return p.cursor == p.cur.Len()
}

// end closes the current fill cycle and returns the region that was filled.
// The caller signals completion only after this returns, which is what makes
// the write-then-signal ordering hold.
func (p *bufferPool) end() *Region {
	r := p.cur
	r.endFill()
	p.cur = nil
	return r
}

// advance toggles to the other slot and opens the next fill cycle there.
// Continuous capture always starts on slot 0, so the sequence of filled slots
// is strictly 0,1,0,1,... It reports false if the other slot has been cleared
// since the session started, in which case no cycle is opened.
func (p *bufferPool) advance() bool {
	next := p.active ^ 1
	if p.slots[next] == nil || p.slots[next].Len() == 0 {
		return false
	}
	p.begin(next)
	return true
}

// abandon closes a cycle cut short by stop without signalling anyone. The
// canary still advances so a concurrent Snapshot cannot validate the torn
// contents against a pre-cycle sequence value.
func (p *bufferPool) abandon() {
	if p.cur != nil {
		p.cur.endFill()
		p.cur = nil
	}
}
