package model

import (
	"net"
	"strconv"
	"time"
)

// Service identifies which emulated protocol produced an event.
type Service string

const (
	ServiceWeb   Service = "web"
	ServiceShell Service = "shell"
	ServiceFTP   Service = "ftp"
)

// Classification is the inferred category of a remote client.
type Classification string

const (
	ClassificationScanner Classification = "scanner"
	ClassificationBot     Classification = "bot"
	ClassificationHuman   Classification = "human"
)

// Event is one immutable record of an observed interaction. Events are
// created by the protocol services and handed to the event sink; the durable
// store assigns ID on insert.
type Event struct {
	ID             int64             `json:"id,omitempty"`
	SessionID      string            `json:"session_id"`
	Timestamp      time.Time         `json:"timestamp"`
	Service        Service           `json:"service"`
	RequestType    string            `json:"request_type"`
	Target         string            `json:"target,omitempty"`
	Payload        string            `json:"payload,omitempty"`
	SourceIP       string            `json:"source_ip"`
	SourcePort     int               `json:"source_port"`
	Tool           string            `json:"tool,omitempty"`
	Classification Classification    `json:"classification"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// SourceAddr returns the event source formatted as host:port.
func (e *Event) SourceAddr() string {
	return net.JoinHostPort(e.SourceIP, strconv.Itoa(e.SourcePort))
}

// SetMeta records a metadata key, allocating the map on first use.
func (e *Event) SetMeta(key, value string) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
}

// SplitAddr breaks a remote address into its host and port parts. Addresses
// without a port component are returned as-is with port 0.
func SplitAddr(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return host, 0
	}
	return host, port
}

// Truncate caps s at max bytes. A non-positive max disables the cap.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max]
}
