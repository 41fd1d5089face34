// Package dnswire reads just enough of a DNS message header to drive the
// traffic generator's send/receive reconciliation: the 16-bit transaction
// ID and the 4-bit response code. It does not interpret answer sections
// or otherwise decode DNS messages; that is the query builder's and any
// downstream tool's job.
package dnswire

import (
	"encoding/binary"
	"errors"
)

// HeaderSize is the fixed length of a DNS message header.
const HeaderSize = 12

// flagRCode masks the low 4 bits of the second header word.
const flagRCode = 0x000F

// ErrTooShort is returned when data is smaller than a DNS header.
var ErrTooShort = errors.New("dnswire: message shorter than a DNS header")

// ReadIDAndRCode extracts the transaction ID and response code from a
// raw DNS message, the minimal decode the UDP and TCP senders need to
// match a response against the in-flight table.
func ReadIDAndRCode(data []byte) (id uint16, rcode uint8, err error) {
	if len(data) < HeaderSize {
		return 0, 0, ErrTooShort
	}
	id = binary.BigEndian.Uint16(data[0:2])
	flags := binary.BigEndian.Uint16(data[2:4])
	rcode = uint8(flags & flagRCode)
	return id, rcode, nil
}
