// Package querybuilder owns wire-format DNS query construction so the
// generator engine never has to know how a query was produced, only
// that it can ask for one by transaction ID.
//
// Every concrete generator here except randompkt builds real messages
// with github.com/miekg/dns; randompkt emits random bytes.
package querybuilder

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

// Builder is the contract the traffic generator's core drives queries
// through. Implementations need not be safe for concurrent use; when one
// Builder is shared by several generator runtimes (internal/generator),
// each on its own goroutine, it is wrapped with Synchronized.
type Builder interface {
	// NextUDP returns one wire-format DNS query carrying id in its
	// header, advancing the generator's internal cursor.
	NextUDP(id uint16) ([]byte, error)
	// NextTCP returns len(ids) wire-format DNS queries, each prefixed
	// by its 2-byte big-endian length, concatenated in order, with
	// ids assigned in the order given.
	NextTCP(ids []uint16) ([]byte, error)
	// Finished reports whether this generator has emitted all its
	// work, respecting any configured loop count. Generators with an
	// unlimited loop count never report true.
	Finished() bool
	// Size is the number of distinct records this generator holds.
	Size() int
	// Name identifies the generator, for banners and diagnostics.
	Name() string
	// Loops is the configured loop count (0 = unlimited).
	Loops() int
	// Randomize shuffles the record list in place, once.
	Randomize()

	// SetQName, SetQType, SetQClass, SetDNSSEC, SetLoops, and SetArgs
	// are the setup setters every generator implements. SetArgs receives
	// the trailing KEY=VAL CLI arguments verbatim.
	SetQName(name string)
	SetQType(qtype string) error
	SetQClass(class string) error
	SetDNSSEC(enabled bool)
	SetLoops(n int)
	SetArgs(kv []string) error

	// Init finalizes construction after all setters have run,
	// returning a startup error if the generator's configuration (or
	// record file) is invalid.
	Init() error
}

// Record is one qname/qtype pair a generator can emit as a query.
type Record struct {
	Name  string
	QType uint16
}

// classFromString restricts --class to IN/CH.
func classFromString(s string) (uint16, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "IN":
		return dns.ClassINET, nil
	case "CH":
		return dns.ClassCHAOS, nil
	default:
		return 0, fmt.Errorf("querybuilder: query class must be IN or CH, got %q", s)
	}
}

// typeFromString resolves a query type name (e.g. "A", "AAAA", "ANY") to
// its wire value using miekg/dns's type table.
func typeFromString(s string) (uint16, error) {
	t, ok := dns.StringToType[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("querybuilder: unknown query type %q", s)
	}
	return t, nil
}

// buildQuery packs a single DNS query message for id/name/qtype/qclass,
// flipping the DO bit when dnssec is requested. This only signals
// interest in DNSSEC records; it never validates signatures.
func buildQuery(id uint16, name string, qtype, qclass uint16, dnssec bool) ([]byte, error) {
	m := new(dns.Msg)
	m.RecursionDesired = true
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.Id = id
	m.Question[0].Qclass = qclass

	if dnssec {
		m.SetEdns0(4096, true)
	}

	return m.Pack()
}

// parseGenOpts turns a trailing KEY=VAL argument list into a lookup map
// with upper-cased keys, so option names are case-insensitive.
func parseGenOpts(kv []string) (map[string]string, error) {
	opts := make(map[string]string, len(kv))
	for _, pair := range kv {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("querybuilder: malformed generator option %q, want KEY=VAL", pair)
		}
		opts[strings.ToUpper(parts[0])] = parts[1]
	}
	return opts, nil
}

func intOpt(opts map[string]string, key string, def int) (int, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("querybuilder: option %s must be an integer, got %q", key, v)
	}
	return n, nil
}

// cycler walks a fixed record list in order, wrapping around and
// counting loops, shared by every generator whose queries come from a
// precomputed []Record (static, file, numberqname, randomqname,
// randomlabel).
type cycler struct {
	records []Record
	qclass  uint16
	dnssec  bool
	loops   int // 0 = unlimited
	index   int
	done    int // completed laps
}

func (c *cycler) next() (Record, bool) {
	if len(c.records) == 0 {
		return Record{}, false
	}
	if c.loops > 0 && c.done >= c.loops {
		return Record{}, false
	}

	rec := c.records[c.index]
	c.index++
	if c.index >= len(c.records) {
		c.index = 0
		c.done++
	}
	return rec, true
}

func (c *cycler) finished() bool {
	return c.loops > 0 && c.done >= c.loops
}

func (c *cycler) randomizeRecords(shuffle func(n int, swap func(i, j int))) {
	shuffle(len(c.records), func(i, j int) {
		c.records[i], c.records[j] = c.records[j], c.records[i]
	})
}

// packTCPBatch builds one length-prefixed query per id via build, in
// order, and concatenates them into the wire shape NextTCP returns.
func packTCPBatch(ids []uint16, build func(id uint16) ([]byte, error)) ([]byte, error) {
	var out []byte
	for _, id := range ids {
		msg, err := build(id)
		if err != nil {
			return nil, err
		}
		var prefix [2]byte
		binary.BigEndian.PutUint16(prefix[:], uint16(len(msg)))
		out = append(out, prefix[:]...)
		out = append(out, msg...)
	}
	return out, nil
}
