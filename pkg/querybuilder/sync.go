package querybuilder

import "sync"

// syncBuilder wraps a Builder with a mutex so several Generator
// Runtimes, each running its own goroutine, can share the one Query
// Builder a process constructs. Builder implementations only promise
// same-thread sequential reentrancy, not concurrent safety.
type syncBuilder struct {
	mu sync.Mutex
	b  Builder
}

// Synchronized wraps b so it can be handed to more than one generator
// runtime at once.
func Synchronized(b Builder) Builder {
	return &syncBuilder{b: b}
}

func (s *syncBuilder) NextUDP(id uint16) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.NextUDP(id)
}

func (s *syncBuilder) NextTCP(ids []uint16) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.NextTCP(ids)
}

func (s *syncBuilder) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Finished()
}

func (s *syncBuilder) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Size()
}

func (s *syncBuilder) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Name()
}

func (s *syncBuilder) Loops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Loops()
}

func (s *syncBuilder) Randomize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b.Randomize()
}

func (s *syncBuilder) SetQName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b.SetQName(name)
}

func (s *syncBuilder) SetQType(qtype string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.SetQType(qtype)
}

func (s *syncBuilder) SetQClass(class string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.SetQClass(class)
}

func (s *syncBuilder) SetDNSSEC(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b.SetDNSSEC(enabled)
}

func (s *syncBuilder) SetLoops(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.b.SetLoops(n)
}

func (s *syncBuilder) SetArgs(kv []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.SetArgs(kv)
}

func (s *syncBuilder) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Init()
}
