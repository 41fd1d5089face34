package querybuilder

import (
	"fmt"
	"math/rand"
	"strings"
)

// popularTypes is the set of query types randomlabel draws from.
var popularTypes = []string{"A", "AAAA", "MX", "TXT", "NS", "CNAME", "SOA"}

// RandomLabel precomputes count records, each qname built from lblcount
// random labels of length [1, lblsize] under the base zone, with a
// random qtype drawn per record from popularTypes.
type RandomLabel struct {
	zone     string
	count    int
	lblSize  int
	lblCount int
	cycler   cycler
}

// NewRandomLabel constructs a RandomLabel generator.
func NewRandomLabel() *RandomLabel {
	return &RandomLabel{zone: "test.com", count: 1000, lblSize: 10, lblCount: 5}
}

func (g *RandomLabel) Name() string { return "randomlabel" }
func (g *RandomLabel) Size() int    { return len(g.cycler.records) }
func (g *RandomLabel) Loops() int   { return g.cycler.loops }

func (g *RandomLabel) SetQName(name string)       { g.zone = name }
func (g *RandomLabel) SetQType(string) error       { return nil } // qtype is randomized per query
func (g *RandomLabel) SetDNSSEC(e bool)            { g.cycler.dnssec = e }
func (g *RandomLabel) SetLoops(n int)              { g.cycler.loops = n }

func (g *RandomLabel) SetQClass(class string) error {
	c, err := classFromString(class)
	if err != nil {
		return err
	}
	g.cycler.qclass = c
	return nil
}

func (g *RandomLabel) SetArgs(kv []string) error {
	opts, err := parseGenOpts(kv)
	if err != nil {
		return err
	}
	if g.count, err = intOpt(opts, "COUNT", g.count); err != nil {
		return err
	}
	if g.lblSize, err = intOpt(opts, "LBLSIZE", g.lblSize); err != nil {
		return err
	}
	if g.lblCount, err = intOpt(opts, "LBLCOUNT", g.lblCount); err != nil {
		return err
	}
	return nil
}

func (g *RandomLabel) Init() error {
	if g.count <= 0 || g.lblSize <= 0 || g.lblCount <= 0 {
		return fmt.Errorf("querybuilder: randomlabel COUNT/LBLSIZE/LBLCOUNT must all be positive")
	}
	if g.cycler.qclass == 0 {
		g.cycler.qclass = 1 // dns.ClassINET
	}

	records := make([]Record, g.count)
	for i := range records {
		labels := make([]string, g.lblCount)
		for j := range labels {
			labels[j] = randomLabel(1 + rand.Intn(g.lblSize))
		}
		qtype, _ := typeFromString(popularTypes[rand.Intn(len(popularTypes))])
		records[i] = Record{
			Name:  strings.Join(labels, ".") + "." + g.zone,
			QType: qtype,
		}
	}
	g.cycler.records = records
	return nil
}

func (g *RandomLabel) Randomize() {
	g.cycler.randomizeRecords(func(n int, swap func(i, j int)) {
		rand.Shuffle(n, swap)
	})
}

func (g *RandomLabel) Finished() bool { return g.cycler.finished() }

func (g *RandomLabel) NextUDP(id uint16) ([]byte, error) {
	rec, ok := g.cycler.next()
	if !ok {
		return nil, fmt.Errorf("querybuilder: randomlabel generator exhausted")
	}
	return buildQuery(id, rec.Name, rec.QType, g.cycler.qclass, g.cycler.dnssec)
}

func (g *RandomLabel) NextTCP(ids []uint16) ([]byte, error) {
	return packTCPBatch(ids, g.NextUDP)
}
