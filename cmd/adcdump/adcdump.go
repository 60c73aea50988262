// adcdump subscribes to a running adcd's status port and prints every
// published message, with summary statistics for each completed buffer.
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"

	zmq "github.com/pebbe/zmq4"
	"gonum.org/v1/gonum/stat"
)

type sampleMessage struct {
	Mode    string
	Channel int
	Value   uint16
}

type bufferMessage struct {
	Mode     string
	Channel  int
	Length   int
	Packed   uint32
	Sequence uint32
	Data     []byte
}

func main() {
	host := flag.String("host", "localhost", "adcd host")
	port := flag.Int("port", 6501, "adcd status port")
	nmsg := flag.Int("n", 0, "number of messages to print (<=0 means run indefinitely)")
	flag.Parse()

	subSocket, err := zmq.NewSocket(zmq.SUB)
	if err != nil {
		log.Fatal("could not create SUB socket: ", err)
	}
	defer subSocket.Close()
	if err = subSocket.Connect(fmt.Sprintf("tcp://%s:%d", *host, *port)); err != nil {
		log.Fatal("could not connect: ", err)
	}
	for _, tag := range []string{"STATUS", "SAMPLE", "BUFFER"} {
		subSocket.SetSubscribe(tag)
	}

	for count := 0; *nmsg <= 0 || count < *nmsg; count++ {
		parts, err := subSocket.RecvMessageBytes(0)
		if err != nil {
			log.Fatal("receive error: ", err)
		}
		if len(parts) < 2 {
			continue
		}
		tag, body := string(parts[0]), parts[1]
		switch tag {
		case "BUFFER":
			var m bufferMessage
			if err := json.Unmarshal(body, &m); err != nil {
				log.Printf("bad BUFFER message: %v", err)
				continue
			}
			printBuffer(&m)
		default:
			fmt.Printf("%-7s %s\n", tag, body)
		}
	}
}

func printBuffer(m *bufferMessage) {
	values := make([]float64, len(m.Data)/2)
	for i := range values {
		values[i] = float64(binary.LittleEndian.Uint16(m.Data[2*i:]))
	}
	mean, std := stat.MeanStdDev(values, nil)
	fmt.Printf("BUFFER  %s channel=%d length=%d packed=0x%08x mean=%.1f std=%.1f\n",
		m.Mode, m.Channel, m.Length, m.Packed, mean, std)
}
