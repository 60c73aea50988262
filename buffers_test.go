package tock

import "testing"

func TestPoolPopulated(t *testing.T) {
	var p bufferPool
	if p.populated(1) {
		t.Error("empty pool claims slot 0 is populated")
	}
	p.setSlot(0, NewRegion(4))
	if !p.populated(1) {
		t.Error("slot 0 not seen after setSlot")
	}
	if p.populated(2) {
		t.Error("pool claims slot 1 is populated")
	}
	p.setSlot(1, NewRegion(0)) // zero-length buffers don't count
	if p.populated(2) {
		t.Error("zero-length slot 1 counted as populated")
	}
	p.setSlot(1, NewRegion(4))
	if !p.populated(2) {
		t.Error("slot 1 not seen after setSlot")
	}
	p.setSlot(0, nil)
	if p.populated(1) {
		t.Error("cleared slot 0 still counted as populated")
	}
}

func TestPoolFillAndAlternate(t *testing.T) {
	var p bufferPool
	r0, r1 := NewRegion(2), NewRegion(2)
	p.setSlot(0, r0)
	p.setSlot(1, r1)

	p.begin(0)
	if full := p.writeSample(10); full {
		t.Error("buffer reported full after 1 of 2 samples")
	}
	if full := p.writeSample(11); !full {
		t.Error("buffer not reported full after 2 of 2 samples")
	}
	if got := p.end(); got != r0 {
		t.Error("first cycle did not fill slot 0")
	}

	// Alternation: 0 -> 1 -> 0.
	if !p.advance() {
		t.Fatal("advance to slot 1 failed")
	}
	p.writeSample(20)
	p.writeSample(21)
	if got := p.end(); got != r1 {
		t.Error("second cycle did not fill slot 1")
	}
	if !p.advance() {
		t.Fatal("advance back to slot 0 failed")
	}
	if p.active != 0 {
		t.Errorf("active slot = %d after two advances, want 0", p.active)
	}

	if got := []RawType{r0.Data()[0], r0.Data()[1], r1.Data()[0], r1.Data()[1]}; got[0] != 10 || got[1] != 11 || got[2] != 20 || got[3] != 21 {
		t.Errorf("buffers hold %v, want [10 11 20 21]", got)
	}
}

func TestPoolAdvanceToClearedSlot(t *testing.T) {
	var p bufferPool
	p.setSlot(0, NewRegion(1))
	p.setSlot(1, NewRegion(1))
	p.begin(0)
	p.writeSample(1)
	p.end()
	p.setSlot(1, nil)
	if p.advance() {
		t.Error("advance succeeded onto a cleared slot")
	}
}

func TestPoolAbandonClosesCanary(t *testing.T) {
	var p bufferPool
	r := NewRegion(4)
	p.setSlot(0, r)
	p.begin(0)
	if r.Sequence()&1 == 0 {
		t.Error("canary not odd during an open fill cycle")
	}
	p.abandon()
	if r.Sequence()&1 != 0 {
		t.Error("canary left odd after abandon")
	}
	p.abandon() // idempotent when no cycle is open
}
