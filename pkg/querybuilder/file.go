package querybuilder

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"strings"
)

// File reads one qname/qtype pair per line from a record file ("QNAME
// TYPE"), then cycles through them like Static, selected with -f.
type File struct {
	path   string
	cycler cycler
}

// NewFile constructs a File generator reading records from path.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Name() string { return "file" }
func (f *File) Size() int    { return len(f.cycler.records) }
func (f *File) Loops() int   { return f.cycler.loops }

func (f *File) SetQName(string)        {}
func (f *File) SetQType(string) error  { return nil }
func (f *File) SetDNSSEC(e bool)       { f.cycler.dnssec = e }
func (f *File) SetLoops(n int)         { f.cycler.loops = n }
func (f *File) SetArgs([]string) error { return nil }

func (f *File) SetQClass(class string) error {
	c, err := classFromString(class)
	if err != nil {
		return err
	}
	f.cycler.qclass = c
	return nil
}

func (f *File) Init() error {
	fh, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("querybuilder: opening record file: %w", err)
	}
	defer fh.Close()

	if f.cycler.qclass == 0 {
		f.cycler.qclass = 1 // dns.ClassINET
	}

	scanner := bufio.NewScanner(fh)
	var records []Record
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return fmt.Errorf("querybuilder: record file line %q: want \"QNAME TYPE\"", line)
		}
		qtype, err := typeFromString(fields[1])
		if err != nil {
			return err
		}
		records = append(records, Record{Name: fields[0], QType: qtype})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("querybuilder: reading record file: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("querybuilder: record file %q contained no records", f.path)
	}

	f.cycler.records = records
	return nil
}

func (f *File) Randomize() {
	f.cycler.randomizeRecords(func(n int, swap func(i, j int)) {
		rand.Shuffle(n, swap)
	})
}

func (f *File) Finished() bool { return f.cycler.finished() }

func (f *File) NextUDP(id uint16) ([]byte, error) {
	rec, ok := f.cycler.next()
	if !ok {
		return nil, fmt.Errorf("querybuilder: file generator exhausted")
	}
	return buildQuery(id, rec.Name, rec.QType, f.cycler.qclass, f.cycler.dnssec)
}

func (f *File) NextTCP(ids []uint16) ([]byte, error) {
	return packTCPBatch(ids, f.NextUDP)
}
