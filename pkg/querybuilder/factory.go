package querybuilder

import "fmt"

// New constructs the named generator, or the file generator when
// recordFile is non-empty (which takes priority over name regardless
// of what it is set to).
func New(name, recordFile string) (Builder, error) {
	if recordFile != "" {
		return NewFile(recordFile), nil
	}
	switch name {
	case "", "static":
		return NewStatic(), nil
	case "numberqname":
		return NewNumberQName(), nil
	case "randompkt":
		return NewRandomPkt(), nil
	case "randomqname":
		return NewRandomQName(), nil
	case "randomlabel":
		return NewRandomLabel(), nil
	default:
		return nil, fmt.Errorf("querybuilder: unknown generator %q", name)
	}
}
