package tock

import (
	"encoding/json"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"sync"
	"time"
)

// AdcControl is the sub-server that exposes the sampling driver's command
// surface over JSON-RPC. Every method is synchronous: it validates, possibly
// kicks the engine, and returns. Sample data never travels on this path; it
// is published on the status port by the client updater.
type AdcControl struct {
	adc           *ADC
	clientUpdates chan<- ClientUpdate

	mu     sync.Mutex // guards status, shared by the ticker and RPC goroutines
	status ServerStatus
}

// NewAdcControl creates the command server for one driver instance.
func NewAdcControl(adc *ADC, clientUpdates chan<- ClientUpdate) *AdcControl {
	s := &AdcControl{adc: adc, clientUpdates: clientUpdates}
	if n, err := adc.ChannelCount(); err == nil {
		s.status.Nchannels = n
	}
	return s
}

// ServerStatus is the status that AdcControl reports to clients.
type ServerStatus struct {
	Running   bool
	Mode      string
	Channel   int
	FreqHz    int
	Nchannels int
	SessionID string
}

// SampleArgs holds the arguments of the sampling start commands.
type SampleArgs struct {
	Channel int
	FreqHz  int
}

// AllowArgs holds the arguments of the Allow command. The buffer is
// allocated server-side and shared with subscribers through the publish path.
type AllowArgs struct {
	Slot   int
	Length int
}

// AllowReply mirrors the shared-allow ABI shape: success flag, size of the
// buffer now shared, and an error code.
type AllowReply struct {
	OK    bool
	Size  int
	Error string
}

// ChannelCount reports the number of input channels, or NoDevice.
func (s *AdcControl) ChannelCount(dummy *string, reply *int) error {
	n, err := s.adc.ChannelCount()
	*reply = n
	return err
}

// SampleSingle starts a one-shot conversion (command 1).
func (s *AdcControl) SampleSingle(args *SampleArgs, reply *bool) error {
	err := s.adc.SampleSingle(args.Channel)
	s.finishStart(err, reply)
	return err
}

// SampleRepeated starts per-sample delivery at a fixed rate (command 2).
func (s *AdcControl) SampleRepeated(args *SampleArgs, reply *bool) error {
	err := s.adc.SampleRepeated(args.Channel, args.FreqHz)
	s.finishStart(err, reply)
	return err
}

// SampleBuffered starts a one-shot fill of allow slot 0 (command 3).
func (s *AdcControl) SampleBuffered(args *SampleArgs, reply *bool) error {
	err := s.adc.SampleBuffered(args.Channel, args.FreqHz)
	s.finishStart(err, reply)
	return err
}

// SampleContinuous starts double-buffered continuous capture (command 4).
func (s *AdcControl) SampleContinuous(args *SampleArgs, reply *bool) error {
	err := s.adc.SampleContinuous(args.Channel, args.FreqHz)
	s.finishStart(err, reply)
	return err
}

// Stop cancels the active session, if any (command 5). It never errors.
func (s *AdcControl) Stop(dummy *string, reply *bool) error {
	s.adc.Stop()
	*reply = true
	s.broadcastUpdate()
	return nil
}

// Allow allocates a shared buffer of the requested length and installs it in
// the given slot, replacing any prior buffer there.
func (s *AdcControl) Allow(args *AllowArgs, reply *AllowReply) error {
	var r *Region
	if args.Length > 0 {
		r = NewRegion(args.Length)
	}
	res := s.adc.Allow(args.Slot, r)
	reply.OK = res.OK
	reply.Size = res.Size
	if res.Err != nil {
		reply.Error = res.Err.Error()
	}
	return nil
}

// SendAllStatus causes a broadcast to clients containing all broadcastable
// status info.
func (s *AdcControl) SendAllStatus(dummy *string, reply *bool) error {
	s.broadcastUpdate()
	*reply = true
	return nil
}

func (s *AdcControl) finishStart(err error, reply *bool) {
	*reply = err == nil
	if err == nil {
		s.broadcastUpdate()
	}
}

func (s *AdcControl) broadcastUpdate() {
	if s.clientUpdates == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.adc.Active(); ok {
		s.status.Running = true
		s.status.Mode = sess.Mode.String()
		s.status.Channel = sess.Channel
		s.status.FreqHz = sess.FreqHz
		s.status.SessionID = sess.ID.String()
	} else {
		s.status = ServerStatus{Nchannels: s.status.Nchannels}
	}
	msg, err := json.Marshal(s.status)
	if err != nil {
		return
	}
	s.clientUpdates <- ClientUpdate{tag: "STATUS", message: msg}
}

// RunRPCServer sets up and runs a permanent JSON-RPC server for the given
// command sub-server. It also broadcasts the server status every 2 seconds.
func RunRPCServer(control *AdcControl, portrpc int) {
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			control.broadcastUpdate()
		}
	}()

	// Now launch the connection handler and accept connections.
	server := rpc.NewServer()
	server.Register(control)
	port := fmt.Sprintf(":%d", portrpc)
	listener, err := net.Listen("tcp", port)
	if err != nil {
		ProblemLogger.Fatal("listen error:", err)
	}
	for {
		conn, err := listener.Accept()
		if err != nil {
			ProblemLogger.Fatal("accept error: " + err.Error())
		}
		UpdateLogger.Printf("new connection established\n")
		go server.ServeCodec(jsonrpc.NewServerCodec(conn))
	}
}
