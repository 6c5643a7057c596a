package sockets

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding is a client socket's negotiated wire format (spec.md §4.6,
// §6: "binary MsgPack vs text JSON").
type Encoding int

const (
	EncodingMsgPack Encoding = iota
	EncodingJSON
)

// NegotiateEncoding picks a client's delivery format from its
// WebSocket subprotocol, defaulting to JSON for plain text clients.
func NegotiateEncoding(subprotocol string) Encoding {
	if subprotocol == "msgpack" {
		return EncodingMsgPack
	}
	return EncodingJSON
}

// Conn is the narrow slice of *websocket.Conn a Session needs, so
// tests can substitute a recording fake without opening a real socket.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session is one client socket: a connection plus its negotiated
// encoding. Grounded on the teacher's per-connection goroutine
// convention (harpoon-agent's HTTP handlers each own their own
// request/response lifecycle); generalized here to an explicit codec
// seam instead of a single wire format.
type Session struct {
	conn     Conn
	encoding Encoding
}

func NewSession(conn Conn, encoding Encoding) *Session {
	return &Session{conn: conn, encoding: encoding}
}

// Send encodes and writes msg using the session's negotiated format.
func (s *Session) Send(msg DomainServerMessage) error {
	switch s.encoding {
	case EncodingMsgPack:
		data, err := msgpack.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encoding message as msgpack: %w", err)
		}
		return s.conn.WriteMessage(websocket.BinaryMessage, data)
	default:
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encoding message as json: %w", err)
		}
		return s.conn.WriteMessage(websocket.TextMessage, data)
	}
}

func (s *Session) Close() error {
	return s.conn.Close()
}
