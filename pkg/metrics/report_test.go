package metrics

import (
	"strings"
	"testing"
)

func TestReport_ContainsTargetAndCounters(t *testing.T) {
	stats := Stats{Sent: 100, Received: 95, Timeout: 5}
	out := Report("example.test", stats)

	for _, want := range []string{"example.test", "100", "95"} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
}
