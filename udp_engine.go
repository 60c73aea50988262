package tock

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	sysctl "github.com/lorenzosaino/go-sysctl"
)

// Wire format for one conversion result from a UDP-attached digitizer:
// a 4-byte magic, the channel index, a reserved byte, a 16-bit sequence
// number, and the 16-bit sample value, all big-endian.
const (
	samplePacketMagic = 0x41444331 // "ADC1"
	samplePacketSize  = 10
)

// udpDesiredRcvbuf is the socket receive buffer we ask for. Kernels cap
// SO_RCVBUF at net.core.rmem_max, so we warn when the cap is lower.
const udpDesiredRcvbuf = 4 << 20

// parseSamplePacket decodes one digitizer packet.
func parseSamplePacket(p []byte) (channel int, seq uint16, value RawType, err error) {
	if len(p) != samplePacketSize {
		return 0, 0, 0, fmt.Errorf("sample packet has %d bytes, want %d", len(p), samplePacketSize)
	}
	if magic := binary.BigEndian.Uint32(p[0:4]); magic != samplePacketMagic {
		return 0, 0, 0, fmt.Errorf("sample packet magic 0x%x, want 0x%x", magic, samplePacketMagic)
	}
	channel = int(p[4])
	seq = binary.BigEndian.Uint16(p[6:8])
	value = RawType(binary.BigEndian.Uint16(p[8:10]))
	return channel, seq, value, nil
}

// UDPEngine is a sampling engine backed by a digitizer front-end that streams
// conversion results as UDP packets. The digitizer owns the conversion
// pacing; the requested frequency is validated against the configured limits
// but the packets arrive at whatever rate the front-end was programmed for.
type UDPEngine struct {
	addr   string // local bind address, e.g. "0.0.0.0:6600"
	nchan  int
	minHz  int
	maxHz  int

	sampleFunc func(RawType)

	mu      sync.Mutex
	conn    net.PacketConn
	running bool

	// Diagnostic counters, written by the read loop and readable from any
	// goroutine.
	SeqGaps atomic.Int64 // packets lost according to sequence numbers
	Dropped atomic.Int64 // packets ignored (bad magic, bad size, foreign channel)
}

// NewUDPEngine creates an engine listening on addr for a digitizer with the
// given channel count and frequency bounds.
func NewUDPEngine(addr string, nchan, minHz, maxHz int) *UDPEngine {
	return &UDPEngine{addr: addr, nchan: nchan, minHz: minHz, maxHz: maxHz}
}

// Name identifies the engine in logs and status reports.
func (e *UDPEngine) Name() string { return "UDPEngine" }

// NChannels returns the digitizer's channel count.
func (e *UDPEngine) NChannels() int { return e.nchan }

// FrequencyLimits returns the digitizer's sampling bounds in Hz.
func (e *UDPEngine) FrequencyLimits() (min, max int) { return e.minHz, e.maxHz }

// SetSampleFunc registers the sample-ready handler.
func (e *UDPEngine) SetSampleFunc(f func(RawType)) { e.sampleFunc = f }

// LocalAddr returns the bound address once started, or nil.
func (e *UDPEngine) LocalAddr() net.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conn == nil {
		return nil
	}
	return e.conn.LocalAddr()
}

// Start opens the UDP socket and begins delivering conversions for one
// channel. Packets for other channels are counted and dropped.
func (e *UDPEngine) Start(channel, freqHz int) error {
	if channel < 0 || channel >= e.nchan {
		return fmt.Errorf("UDPEngine has no channel %d", channel)
	}
	if e.sampleFunc == nil {
		return fmt.Errorf("UDPEngine started with no sample function")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return fmt.Errorf("UDPEngine is already running")
	}
	conn, err := net.ListenPacket("udp", e.addr)
	if err != nil {
		return fmt.Errorf("UDPEngine could not listen on %s: %v", e.addr, err)
	}
	if uc, ok := conn.(*net.UDPConn); ok {
		uc.SetReadBuffer(udpDesiredRcvbuf)
	}
	checkRmemMax(udpDesiredRcvbuf)

	e.conn = conn
	e.running = true
	go e.readLoop(conn, channel)
	return nil
}

// Stop closes the socket; the read loop exits on the resulting read error.
// Safe when not running and safe from inside the sample function.
func (e *UDPEngine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	e.running = false
	err := e.conn.Close()
	e.conn = nil
	return err
}

func (e *UDPEngine) readLoop(conn net.PacketConn, channel int) {
	var lastSeq uint16
	haveSeq := false
	buf := make([]byte, 2048)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			return // socket closed by Stop
		}
		ch, seq, value, perr := parseSamplePacket(buf[:n])
		if perr != nil || ch != channel {
			e.Dropped.Add(1)
			continue
		}
		if haveSeq && seq != lastSeq+1 {
			e.SeqGaps.Add(int64(seq - lastSeq - 1))
		}
		lastSeq, haveSeq = seq, true
		e.sampleFunc(value)
	}
}

// checkRmemMax warns when the kernel's receive-buffer cap is below what a
// fast digitizer needs to ride out scheduling hiccups.
func checkRmemMax(want int) {
	v, err := sysctl.Get("net.core.rmem_max")
	if err != nil {
		return // not fatal, and not available on all systems
	}
	max, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return
	}
	if max < want {
		ProblemLogger.Printf("net.core.rmem_max is %d, want at least %d; "+
			"UDP sample packets may be lost under load", max, want)
	}
}
