package container

import (
	"fmt"

	"github.com/banshee-data/ml2raw/internal/mlraw"
	"github.com/banshee-data/ml2raw/internal/mlraw/layout"
)

// A container's declared version integer is not always trustworthy:
// early CVPOSE writers shipped a bug that stamped version=1 on files
// whose records were already the version-2 layout. For those declared
// versions the reader must probe the candidate layouts structurally
// instead of trusting the header.
//
// The probe never inspects field values, only divisibility of the
// trailing byte count by each candidate's fixed record size. It can
// therefore misclassify a file whose true layout happens to divide
// evenly under a similarly-sized wrong candidate; the chosen layout is
// exposed on the reader so callers can sanity-check it against field
// semantics (plausible quaternion norms, for example) when it matters.
var unreliableVersions = map[mlraw.SensorKind]map[int32]bool{
	mlraw.KindCVPose: {1: true},
}

// Candidate is one probed layout with its structural score: how many
// whole records the trailing bytes hold under that layout and how many
// bytes would be left unexplained.
type Candidate struct {
	Layout    layout.RecordLayout
	Records   int64
	Remainder int64
}

// Probe scores every registered fixed-size layout for a sensor kind
// against a trailing byte count. Self-describing layouts cannot be
// probed this way and are skipped.
func Probe(kind mlraw.SensorKind, trailing int64) []Candidate {
	var out []Candidate
	for _, l := range layout.Candidates(kind) {
		if l.SelfDescribing() {
			continue
		}
		size := int64(l.RecordSize)
		out = append(out, Candidate{
			Layout:    l,
			Records:   trailing / size,
			Remainder: trailing % size,
		})
	}
	return out
}

// Resolve selects the record layout actually present in a container of
// the given kind, declared version, and trailing (post-header) byte
// count.
//
// A declared version that is registered and not known-unreliable is
// trusted as-is. Otherwise every candidate is probed and the winner is
// chosen by: most whole records, then least unexplained remainder, then
// the candidate matching the declared version. The choice is made once
// per container and fixed for its remaining lifetime.
func Resolve(kind mlraw.SensorKind, declared int32, trailing int64) (layout.RecordLayout, error) {
	if l, ok := layout.Lookup(kind, declared); ok && !unreliableVersions[kind][declared] {
		return l, nil
	}

	candidates := Probe(kind, trailing)
	if len(candidates) == 0 {
		return layout.RecordLayout{}, fmt.Errorf("%w: %s version %d has no probeable layouts",
			mlraw.ErrUnsupportedVersion, kind, declared)
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if betterCandidate(c, best, declared) {
			best = c
		}
	}
	if best.Records == 0 {
		return layout.RecordLayout{}, fmt.Errorf("%w: %s with %d trailing bytes fits no candidate",
			mlraw.ErrNoViableLayout, kind, trailing)
	}
	return best.Layout, nil
}

// betterCandidate reports whether a should replace b as the probe
// winner under the declared version's tie-break.
func betterCandidate(a, b Candidate, declared int32) bool {
	if a.Records != b.Records {
		return a.Records > b.Records
	}
	if a.Remainder != b.Remainder {
		return a.Remainder < b.Remainder
	}
	return a.Layout.Version == declared && b.Layout.Version != declared
}
