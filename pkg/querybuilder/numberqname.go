package querybuilder

import (
	"fmt"
	"math/rand"
)

// NumberQName synthesizes one record per integer in [low, high] under
// the configured base zone (n.zone), then cycles through them like
// Static, selected with -g numberqname.
type NumberQName struct {
	zone   string
	qtype  string
	low    int
	high   int
	cycler cycler
}

// NewNumberQName constructs a NumberQName generator.
func NewNumberQName() *NumberQName {
	return &NumberQName{zone: "test.com", qtype: "A", low: 0, high: 100000}
}

func (g *NumberQName) Name() string { return "numberqname" }
func (g *NumberQName) Size() int    { return len(g.cycler.records) }
func (g *NumberQName) Loops() int   { return g.cycler.loops }

func (g *NumberQName) SetQName(name string) { g.zone = name }
func (g *NumberQName) SetQType(qtype string) error {
	g.qtype = qtype
	return nil
}
func (g *NumberQName) SetDNSSEC(e bool) { g.cycler.dnssec = e }
func (g *NumberQName) SetLoops(n int)   { g.cycler.loops = n }

func (g *NumberQName) SetQClass(class string) error {
	c, err := classFromString(class)
	if err != nil {
		return err
	}
	g.cycler.qclass = c
	return nil
}

func (g *NumberQName) SetArgs(kv []string) error {
	opts, err := parseGenOpts(kv)
	if err != nil {
		return err
	}
	if g.low, err = intOpt(opts, "LOW", g.low); err != nil {
		return err
	}
	if g.high, err = intOpt(opts, "HIGH", g.high); err != nil {
		return err
	}
	return nil
}

func (g *NumberQName) Init() error {
	if g.high < g.low {
		return fmt.Errorf("querybuilder: numberqname HIGH (%d) must be >= LOW (%d)", g.high, g.low)
	}
	qtype, err := typeFromString(g.qtype)
	if err != nil {
		return err
	}
	if g.cycler.qclass == 0 {
		g.cycler.qclass = 1 // dns.ClassINET
	}

	records := make([]Record, 0, g.high-g.low+1)
	for n := g.low; n <= g.high; n++ {
		records = append(records, Record{Name: fmt.Sprintf("%d.%s", n, g.zone), QType: qtype})
	}
	g.cycler.records = records
	return nil
}

func (g *NumberQName) Randomize() {
	g.cycler.randomizeRecords(func(n int, swap func(i, j int)) {
		rand.Shuffle(n, swap)
	})
}

func (g *NumberQName) Finished() bool { return g.cycler.finished() }

func (g *NumberQName) NextUDP(id uint16) ([]byte, error) {
	rec, ok := g.cycler.next()
	if !ok {
		return nil, fmt.Errorf("querybuilder: numberqname generator exhausted")
	}
	return buildQuery(id, rec.Name, rec.QType, g.cycler.qclass, g.cycler.dnssec)
}

func (g *NumberQName) NextTCP(ids []uint16) ([]byte, error) {
	return packTCPBatch(ids, g.NextUDP)
}
