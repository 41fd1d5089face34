// Package tcpframe implements the DNS-over-TCP length-prefix framing
// state machine: each wire message is preceded by a 16-bit big-endian
// length, and a single TCP read may deliver a partial message, exactly
// one message, or several pipelined messages at once.
package tcpframe

import "encoding/binary"

// MinMessageSize and MaxMessageSize bound the length prefix a Session
// will accept. 17 is the minimum wire size of a DNS query with a
// 1-byte root qname; 512 is the classic message size ceiling this tool
// uses for interoperability with TCP responders it was built against.
// These bounds are load-bearing for the test corpus and must not change.
const (
	MinMessageSize = 17
	MaxMessageSize = 512
)

// Session owns an append-only receive buffer for one TCP connection and
// drains it into complete DNS messages as they become available.
type Session struct {
	buf     []byte
	onQuery func(msg []byte)
	onError func()
}

// New creates a session that invokes onQuery once per complete framed
// message (in arrival order) and onError on a framing violation. After
// onError fires, the session stops draining — the caller is expected to
// close the underlying connection.
func New(onQuery func(msg []byte), onError func()) *Session {
	return &Session{onQuery: onQuery, onError: onError}
}

// Receive appends newly-read bytes and drains every complete message
// currently available in the buffer.
func (s *Session) Receive(data []byte) {
	s.buf = append(s.buf, data...)

	for {
		if len(s.buf) < 2 {
			return
		}
		length := int(binary.BigEndian.Uint16(s.buf[:2]))

		if length < MinMessageSize || length > MaxMessageSize {
			if s.onError != nil {
				s.onError()
			}
			return
		}

		if len(s.buf) < 2+length {
			return
		}

		msg := make([]byte, length)
		copy(msg, s.buf[2:2+length])
		s.buf = s.buf[2+length:]

		if s.onQuery != nil {
			s.onQuery(msg)
		}
	}
}

// Reset discards any partially buffered data, for reuse across
// connections without reallocating a new Session.
func (s *Session) Reset() {
	s.buf = s.buf[:0]
}
