package sessiondb

import "time"

// The composite types used for messages to the ClickHouse database.

// ActivityMessage is the information for the adcactivity table: one row per
// daemon run.
type ActivityMessage struct {
	ID        string
	Hostname  string
	Githash   string
	Version   string
	GoVersion string
	CPUs      int
	Start     time.Time
	End       time.Time
}

// SessionMessage is the information required to make an entry in the
// adcsessions table: one row per sampling session.
type SessionMessage struct {
	ID         string
	ActivityID string
	Mode       string
	Channel    int
	FreqHz     int
	BufferLen  int
	Start      time.Time
	End        time.Time
}
