package querybuilder

import (
	"fmt"
	"math/rand"
)

const qnameAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomQName precomputes count records under the base zone, each with
// a single label of random length in [1, size], capped at the 63-byte
// DNS label limit, then cycles through them like Static.
//
// Labels are drawn from a printable alphanumeric alphabet rather than
// arbitrary bytes, since github.com/miekg/dns's Name API works on the
// escaped textual presentation format and cannot cleanly round-trip
// raw null bytes in a label.
type RandomQName struct {
	zone   string
	qtype  string
	count  int
	size   int
	cycler cycler
}

// NewRandomQName constructs a RandomQName generator.
func NewRandomQName() *RandomQName {
	return &RandomQName{zone: "test.com", qtype: "A", count: 1000, size: 255}
}

func (g *RandomQName) Name() string { return "randomqname" }
func (g *RandomQName) Size() int    { return len(g.cycler.records) }
func (g *RandomQName) Loops() int   { return g.cycler.loops }

func (g *RandomQName) SetQName(name string) { g.zone = name }
func (g *RandomQName) SetQType(qtype string) error {
	g.qtype = qtype
	return nil
}
func (g *RandomQName) SetDNSSEC(e bool) { g.cycler.dnssec = e }
func (g *RandomQName) SetLoops(n int)   { g.cycler.loops = n }

func (g *RandomQName) SetQClass(class string) error {
	c, err := classFromString(class)
	if err != nil {
		return err
	}
	g.cycler.qclass = c
	return nil
}

func (g *RandomQName) SetArgs(kv []string) error {
	opts, err := parseGenOpts(kv)
	if err != nil {
		return err
	}
	if g.count, err = intOpt(opts, "COUNT", g.count); err != nil {
		return err
	}
	if g.size, err = intOpt(opts, "SIZE", g.size); err != nil {
		return err
	}
	return nil
}

func (g *RandomQName) Init() error {
	if g.count <= 0 {
		return fmt.Errorf("querybuilder: randomqname COUNT must be positive, got %d", g.count)
	}
	if g.size <= 0 {
		return fmt.Errorf("querybuilder: randomqname SIZE must be positive, got %d", g.size)
	}
	qtype, err := typeFromString(g.qtype)
	if err != nil {
		return err
	}
	if g.cycler.qclass == 0 {
		g.cycler.qclass = 1 // dns.ClassINET
	}

	records := make([]Record, g.count)
	for i := range records {
		label := randomLabel(1 + rand.Intn(g.size))
		records[i] = Record{Name: label + "." + g.zone, QType: qtype}
	}
	g.cycler.records = records
	return nil
}

func randomLabel(n int) string {
	if n > 63 {
		n = 63 // DNS label length ceiling
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = qnameAlphabet[rand.Intn(len(qnameAlphabet))]
	}
	return string(b)
}

func (g *RandomQName) Randomize() {
	g.cycler.randomizeRecords(func(n int, swap func(i, j int)) {
		rand.Shuffle(n, swap)
	})
}

func (g *RandomQName) Finished() bool { return g.cycler.finished() }

func (g *RandomQName) NextUDP(id uint16) ([]byte, error) {
	rec, ok := g.cycler.next()
	if !ok {
		return nil, fmt.Errorf("querybuilder: randomqname generator exhausted")
	}
	return buildQuery(id, rec.Name, rec.QType, g.cycler.qclass, g.cycler.dnssec)
}

func (g *RandomQName) NextTCP(ids []uint16) ([]byte, error) {
	return packTCPBatch(ids, g.NextUDP)
}
