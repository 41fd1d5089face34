package querybuilder

import (
	"encoding/binary"
	"fmt"
	"math/rand"
)

// RandomPkt precomputes count randomly generated packets of random size
// in [1, size], raised to 2 bytes where shorter so the id stamp fits,
// byte-for-byte, and cycles through them the same way the
// record-based generators do. It exists to exercise a target's handling
// of malformed/garbage traffic, not valid DNS queries.
//
// Because these payloads are not real DNS messages, RandomPkt stamps
// the transaction id into the first two bytes itself (the position the
// engine's response matcher, internal/dnswire, always reads from) rather
// than going through buildQuery.
type RandomPkt struct {
	count int
	size  int

	packets [][]byte
	loops   int
	index   int
	done    int
}

// NewRandomPkt constructs a RandomPkt generator.
func NewRandomPkt() *RandomPkt {
	return &RandomPkt{count: 1000, size: 600}
}

func (g *RandomPkt) Name() string { return "randompkt" }
func (g *RandomPkt) Size() int    { return len(g.packets) }
func (g *RandomPkt) Loops() int   { return g.loops }

func (g *RandomPkt) SetQName(string)        {}
func (g *RandomPkt) SetQType(string) error  { return nil }
func (g *RandomPkt) SetQClass(string) error { return nil }
func (g *RandomPkt) SetDNSSEC(bool)         {}
func (g *RandomPkt) SetLoops(n int)         { g.loops = n }

func (g *RandomPkt) SetArgs(kv []string) error {
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

func (g *RandomPkt) Init() error {
	if g.count <= 0 {
		return fmt.Errorf("querybuilder: randompkt COUNT must be positive, got %d", g.count)
	}
	if g.size <= 0 {
		return fmt.Errorf("querybuilder: randompkt SIZE must be positive, got %d", g.size)
	}

	packets := make([][]byte, g.count)
	for i := range packets {
		n := 1 + rand.Intn(g.size)
		if n < 2 {
			n = 2 // leave room for the id stamp
		}
		p := make([]byte, n)
		rand.Read(p)
		packets[i] = p
	}
	g.packets = packets
	return nil
}

func (g *RandomPkt) Randomize() {
	rand.Shuffle(len(g.packets), func(i, j int) {
		g.packets[i], g.packets[j] = g.packets[j], g.packets[i]
	})
}

func (g *RandomPkt) Finished() bool {
	return g.loops > 0 && g.done >= g.loops
}

func (g *RandomPkt) next() ([]byte, bool) {
	if len(g.packets) == 0 || g.Finished() {
		return nil, false
	}
	p := g.packets[g.index]
	g.index++
	if g.index >= len(g.packets) {
		g.index = 0
		g.done++
	}
	return p, true
}

func (g *RandomPkt) NextUDP(id uint16) ([]byte, error) {
	p, ok := g.next()
	if !ok {
		return nil, fmt.Errorf("querybuilder: randompkt generator exhausted")
	}
	out := make([]byte, len(p))
	copy(out, p)
	binary.BigEndian.PutUint16(out[:2], id)
	return out, nil
}

func (g *RandomPkt) NextTCP(ids []uint16) ([]byte, error) {
	return packTCPBatch(ids, g.NextUDP)
}
