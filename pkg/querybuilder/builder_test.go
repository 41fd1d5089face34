package querybuilder

import (
	"os"
	"testing"

	"github.com/miekg/dns"
)

func TestStatic_BuildsExpectedQuery(t *testing.T) {
	s := NewStatic()
	s.SetQName("example.com")
	s.SetQType("AAAA")
	if err := s.SetQClass("IN"); err != nil {
		t.Fatalf("SetQClass: %v", err)
	}
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	wire, err := s.NextUDP(0xBEEF)
	if err != nil {
		t.Fatalf("NextUDP: %v", err)
	}

	m := new(dns.Msg)
	if err := m.Unpack(wire); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	if m.Id != 0xBEEF {
		t.Fatalf("id = %#x, want 0xbeef", m.Id)
	}
	if len(m.Question) != 1 || m.Question[0].Qtype != dns.TypeAAAA {
		t.Fatalf("question = %+v, want AAAA", m.Question)
	}
}

func TestStatic_LoopsAndFinished(t *testing.T) {
	s := NewStatic()
	s.SetQName("a.test")
	s.SetQType("A")
	s.SetLoops(2)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if s.Finished() {
		t.Fatalf("should not be finished before any query")
	}
	for i := 0; i < 2; i++ {
		if _, err := s.NextUDP(uint16(i)); err != nil {
			t.Fatalf("NextUDP: %v", err)
		}
	}
	if !s.Finished() {
		t.Fatalf("expected finished after 2 loops through a 1-record list")
	}
}

func TestStatic_UnlimitedLoopsNeverFinishes(t *testing.T) {
	s := NewStatic()
	s.SetQName("a.test")
	s.SetQType("A")
	s.SetLoops(0)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for i := 0; i < 1000; i++ {
		s.NextUDP(uint16(i))
	}
	if s.Finished() {
		t.Fatalf("loops=0 generator must never report finished")
	}
}

func TestStatic_DNSSECSetsDOFlag(t *testing.T) {
	s := NewStatic()
	s.SetQName("a.test")
	s.SetQType("A")
	s.SetDNSSEC(true)
	if err := s.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	wire, err := s.NextUDP(1)
	if err != nil {
		t.Fatalf("NextUDP: %v", err)
	}
	m := new(dns.Msg)
	if err := m.Unpack(wire); err != nil {
		t.Fatalf("Unpack: %v", err)
	}
	opt := m.IsEdns0()
	if opt == nil || !opt.Do() {
		t.Fatalf("expected DO bit set when dnssec requested")
	}
}

func TestFile_ReadsRecordsFromDisk(t *testing.T) {
	tmp, err := os.CreateTemp(t.TempDir(), "records-*.txt")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	_, _ = tmp.WriteString("# comment\nfoo.test A\nbar.test AAAA\n")
	tmp.Close()

	f := NewFile(tmp.Name())
	if err := f.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if f.Size() != 2 {
		t.Fatalf("Size() = %d, want 2", f.Size())
	}

	w1, _ := f.NextUDP(1)
	w2, _ := f.NextUDP(2)
	m1, m2 := new(dns.Msg), new(dns.Msg)
	m1.Unpack(w1)
	m2.Unpack(w2)
	if m1.Question[0].Qtype != dns.TypeA || m2.Question[0].Qtype != dns.TypeAAAA {
		t.Fatalf("unexpected question types: %v %v", m1.Question, m2.Question)
	}
}

func TestFile_MissingFileIsStartupError(t *testing.T) {
	f := NewFile("/nonexistent/path/does-not-exist.txt")
	if err := f.Init(); err == nil {
		t.Fatalf("expected error for missing record file")
	}
}

func TestNumberQName_GeneratesRangeInclusive(t *testing.T) {
	g := NewNumberQName()
	g.SetQName("zone.test")
	g.SetQType("A")
	g.SetArgs([]string{"low=1", "high=3"})
	if err := g.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if g.Size() != 3 {
		t.Fatalf("Size() = %d, want 3", g.Size())
	}
}

func TestRandomPkt_StampsIdIntoFirstTwoBytes(t *testing.T) {
	g := NewRandomPkt()
	g.SetArgs([]string{"count=5", "size=20"})
	if err := g.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	wire, err := g.NextUDP(0xABCD)
	if err != nil {
		t.Fatalf("NextUDP: %v", err)
	}
	if len(wire) < 2 {
		t.Fatalf("packet too short: %d", len(wire))
	}
	if uint16(wire[0])<<8|uint16(wire[1]) != 0xABCD {
		t.Fatalf("id not stamped into first two bytes")
	}
}

func TestRandomQName_PrecomputesCountRecords(t *testing.T) {
	g := NewRandomQName()
	g.SetQName("zone.test")
	g.SetQType("A")
	g.SetArgs([]string{"count=10", "size=20"})
	if err := g.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if g.Size() != 10 {
		t.Fatalf("Size() = %d, want 10", g.Size())
	}
}

func TestRandomLabel_UsesPopularTypeSet(t *testing.T) {
	g := NewRandomLabel()
	g.SetQName("zone.test")
	g.SetArgs([]string{"count=20", "lblsize=5", "lblcount=3"})
	if err := g.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for _, rec := range g.cycler.records {
		found := false
		for _, pt := range popularTypes {
			wantType, _ := typeFromString(pt)
			if rec.QType == wantType {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("record qtype %d not in popular set", rec.QType)
		}
	}
}

func TestFactory_UnknownGeneratorErrors(t *testing.T) {
	if _, err := New("not-a-real-generator", ""); err == nil {
		t.Fatalf("expected error for unknown generator name")
	}
}

func TestFactory_RecordFileTakesPriorityOverName(t *testing.T) {
	tmp, _ := os.CreateTemp(t.TempDir(), "records-*.txt")
	tmp.WriteString("a.test A\n")
	tmp.Close()

	b, err := New("numberqname", tmp.Name())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b.Name() != "file" {
		t.Fatalf("Name() = %q, want file (file path should win)", b.Name())
	}
}
