package querybuilder

import (
	"fmt"
	"math/rand"
)

// Static is the default generator: a single qname/qtype pair repeated
// according to the configured loop count. It takes no KEY=VAL options.
type Static struct {
	qname  string
	qtype  string
	cycler cycler
}

// NewStatic constructs a Static generator. Callers must still call the
// setters and Init before use.
func NewStatic() *Static {
	return &Static{qname: "test.com", qtype: "A"}
}

func (s *Static) Name() string { return "static" }
func (s *Static) Size() int    { return len(s.cycler.records) }
func (s *Static) Loops() int   { return s.cycler.loops }

func (s *Static) SetQName(name string)    { s.qname = name }
func (s *Static) SetQType(qtype string) error {
	s.qtype = qtype
	return nil
}

func (s *Static) SetQClass(class string) error {
	c, err := classFromString(class)
	if err != nil {
		return err
	}
	s.cycler.qclass = c
	return nil
}

func (s *Static) SetDNSSEC(enabled bool) { s.cycler.dnssec = enabled }
func (s *Static) SetLoops(n int)         { s.cycler.loops = n }

func (s *Static) SetArgs(kv []string) error {
	if len(kv) > 0 {
		return nil // the static generator has no KEY=VAL options; extras are ignored
	}
	return nil
}

func (s *Static) Init() error {
	qtype, err := typeFromString(s.qtype)
	if err != nil {
		return err
	}
	if s.cycler.qclass == 0 {
		s.cycler.qclass = 1 // dns.ClassINET
	}
	s.cycler.records = []Record{{Name: s.qname, QType: qtype}}
	return nil
}

func (s *Static) Randomize() {
	s.cycler.randomizeRecords(func(n int, swap func(i, j int)) {
		rand.Shuffle(n, swap)
	})
}

func (s *Static) Finished() bool { return s.cycler.finished() }

func (s *Static) NextUDP(id uint16) ([]byte, error) {
	rec, ok := s.cycler.next()
	if !ok {
		return nil, fmt.Errorf("querybuilder: static generator exhausted")
	}
	return buildQuery(id, rec.Name, rec.QType, s.cycler.qclass, s.cycler.dnssec)
}

func (s *Static) NextTCP(ids []uint16) ([]byte, error) {
	return packTCPBatch(ids, func(id uint16) ([]byte, error) {
		return s.NextUDP(id)
	})
}
