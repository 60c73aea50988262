package tock

import (
	"encoding/json"
	"testing"
)

func TestRawTypeByteConversion(t *testing.T) {
	in := []RawType{0, 1, 0x1234, 0xffff}
	b := rawTypeToBytes(in)
	if len(b) != 2*len(in) {
		t.Fatalf("byte slice has %d bytes, want %d", len(b), 2*len(in))
	}
	out := bytesToRawType(b)
	for i, v := range out {
		if v != in[i] {
			t.Errorf("round trip [%d] = %d, want %d", i, v, in[i])
		}
	}
	if len(rawTypeToBytes(nil)) != 0 || len(bytesToRawType(nil)) != 0 {
		t.Error("empty slices should convert to empty slices")
	}
}

func TestEventPublisherMessages(t *testing.T) {
	updates := make(chan ClientUpdate, 10)
	publish := EventPublisher(updates)

	publish(Event{Mode: ModeRepeatedSingle, Channel: 3, Value: 2048})
	u := <-updates
	if u.tag != "SAMPLE" {
		t.Fatalf("tag = %s, want SAMPLE", u.tag)
	}
	var sm SampleMessage
	if err := json.Unmarshal(u.message, &sm); err != nil {
		t.Fatalf("sample message does not parse: %v", err)
	}
	if sm.Mode != "RepeatedSingle" || sm.Channel != 3 || sm.Value != 2048 {
		t.Errorf("sample message = %+v", sm)
	}

	r := NewRegion(4)
	copy(r.Data(), []RawType{10, 20, 30, 40})
	publish(Event{Mode: ModeContinuous, Channel: 2, Buffer: r})
	u = <-updates
	if u.tag != "BUFFER" {
		t.Fatalf("tag = %s, want BUFFER", u.tag)
	}
	var bm BufferMessage
	if err := json.Unmarshal(u.message, &bm); err != nil {
		t.Fatalf("buffer message does not parse: %v", err)
	}
	if bm.Mode != "Continuous" || bm.Channel != 2 || bm.Length != 4 {
		t.Errorf("buffer message = %+v", bm)
	}
	if bm.Packed != uint32(4)<<8|2 {
		t.Errorf("packed = 0x%x, want 0x%x", bm.Packed, uint32(4)<<8|2)
	}
	data := bytesToRawType(bm.Data)
	for i, want := range []RawType{10, 20, 30, 40} {
		if data[i] != want {
			t.Errorf("data[%d] = %d, want %d", i, data[i], want)
		}
	}
}
