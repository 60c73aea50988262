package tock

// Contains the client updater, which publishes JSON-encoded messages giving
// the latest driver state and the completion events of every session.

import (
	"encoding/json"
	"fmt"
	"unsafe"

	"github.com/davecgh/go-spew/spew"
	zmq "github.com/pebbe/zmq4"
)

// ClientUpdate carries one message to be published on the status port.
type ClientUpdate struct {
	tag     string
	message []byte
}

// SampleMessage is the published body of a single-value completion event.
type SampleMessage struct {
	Mode    string
	Channel int
	Value   RawType
}

// BufferMessage is the published body of a buffer completion event. Data
// holds the raw little-endian sample bytes (base64 in the JSON encoding);
// Packed repeats the channel/length word exactly as a native subscriber
// would receive it.
type BufferMessage struct {
	Mode     string
	Channel  int
	Length   int
	Packed   uint32
	Sequence uint32
	Data     []byte
}

// PublishEvents subscribes to the driver's completion notifier and forwards
// every event to the status port as a tagged JSON message.
func PublishEvents(adc *ADC, updates chan<- ClientUpdate) {
	adc.Subscribe(EventPublisher(updates))
}

// EventPublisher returns a Handler that converts completion events to tagged
// JSON messages for the status port. The handler runs on the notifier's
// dispatch goroutine, so even a stalled ZMQ consumer never touches the
// sample-ready path.
func EventPublisher(updates chan<- ClientUpdate) Handler {
	return func(e Event) {
		if e.Buffer == nil {
			msg, err := json.Marshal(SampleMessage{
				Mode:    e.Mode.String(),
				Channel: e.Channel,
				Value:   e.Value,
			})
			if err != nil {
				return
			}
			updates <- ClientUpdate{tag: "SAMPLE", message: msg}
			return
		}
		msg, err := json.Marshal(BufferMessage{
			Mode:     e.Mode.String(),
			Channel:  e.Channel,
			Length:   e.Buffer.Len(),
			Packed:   e.PackedArg(),
			Sequence: e.Buffer.Sequence(),
			Data:     rawTypeToBytes(e.Buffer.Data()),
		})
		if err != nil {
			return
		}
		updates <- ClientUpdate{tag: "BUFFER", message: msg}
	}
}

// RunClientUpdater forwards any message from its input channel to the ZMQ
// publisher socket, to publish any information that clients need to know.
// It terminates when the abort channel closes.
func RunClientUpdater(messages <-chan ClientUpdate, portstatus int, abort <-chan struct{}) {
	pubSocket, err := zmq.NewSocket(zmq.PUB)
	if err != nil {
		ProblemLogger.Printf("could not create client updater socket: %v", err)
		return
	}
	defer pubSocket.Close()
	hostname := fmt.Sprintf("tcp://*:%d", portstatus)
	if err = pubSocket.Bind(hostname); err != nil {
		ProblemLogger.Printf("could not bind client updater to %s: %v", hostname, err)
		return
	}

	for {
		select {
		case <-abort:
			return
		case update := <-messages:
			if _, err := pubSocket.SendMessage(update.tag, update.message); err != nil {
				ProblemLogger.Printf("could not publish %s update: %v", update.tag, err)
			}
			if verboseUpdates {
				UpdateLogger.Print(spew.Sdump(update))
			} else {
				UpdateLogger.Printf("published %s (%d bytes)", update.tag, len(update.message))
			}
		}
	}
}

// verboseUpdates makes the updater spew entire messages to the update log.
var verboseUpdates bool

// SetVerboseUpdates turns full message dumps on or off.
func SetVerboseUpdates(v bool) { verboseUpdates = v }

// rawTypeToBytes converts a []RawType to []byte using unsafe.Slice.
func rawTypeToBytes(sliceIn []RawType) []byte {
	if len(sliceIn) == 0 {
		return []byte{}
	}
	outlength := uintptr(len(sliceIn)) * unsafe.Sizeof(sliceIn[0])
	return unsafe.Slice((*byte)(unsafe.Pointer(&sliceIn[0])), outlength)
}

// bytesToRawType converts a []byte back to []RawType using unsafe.Slice.
func bytesToRawType(sliceIn []byte) []RawType {
	if len(sliceIn) == 0 {
		return []RawType{}
	}
	outlength := uintptr(len(sliceIn)) / unsafe.Sizeof(RawType(0))
	return unsafe.Slice((*RawType)(unsafe.Pointer(&sliceIn[0])), outlength)
}
