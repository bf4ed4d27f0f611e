// Package report computes capture health reports over decoded
// containers: record counts, timestamp monotonicity, inter-frame dt
// percentiles, estimated frame rate, pose result-code rates, and
// quaternion norm plausibility.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/ml2raw/internal/mlraw"
)

// Stats summarizes a sample: count, min, median, 95th percentile, max.
type Stats struct {
	N   int
	Min float64
	P50 float64
	P95 float64
	Max float64
}

// Describe computes Stats over vals. The input slice is not modified.
func Describe(vals []float64) Stats {
	if len(vals) == 0 {
		return Stats{}
	}
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	return Stats{
		N:   len(sorted),
		Min: sorted[0],
		P50: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95: stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Max: sorted[len(sorted)-1],
	}
}

func (s Stats) write(w io.Writer, name, unit string) {
	if s.N == 0 {
		fmt.Fprintf(w, "  %s: (no data)\n", name)
		return
	}
	fmt.Fprintf(w, "  %s: n=%d  min=%.3f%s  p50=%.3f%s  p95=%.3f%s  max=%.3f%s\n",
		name, s.N, s.Min, unit, s.P50, unit, s.P95, unit, s.Max, unit)
}

// DtMillis returns successive timestamp deltas in milliseconds.
func DtMillis(tsNs []int64) []float64 {
	if len(tsNs) < 2 {
		return nil
	}
	dt := make([]float64, 0, len(tsNs)-1)
	for i := 1; i < len(tsNs); i++ {
		dt = append(dt, float64(tsNs[i]-tsNs[i-1])/1e6)
	}
	return dt
}

// FPSFromDt estimates the frame rate from the median inter-frame dt.
// The median resists dropped-frame outliers better than the mean.
func FPSFromDt(dtMs []float64) float64 {
	if len(dtMs) == 0 {
		return 0
	}
	med := Describe(dtMs).P50
	if med <= 0 {
		return 0
	}
	return 1000.0 / med
}

// Monotonic reports whether timestamps never decrease.
func Monotonic(tsNs []int64) bool {
	for i := 1; i < len(tsNs); i++ {
		if tsNs[i] < tsNs[i-1] {
			return false
		}
	}
	return true
}

// poseSamples accumulates the per-record series shared by the pose-style
// streams (headpose, cvpose, rgbpose).
type poseSamples struct {
	ts          []int64
	resultCodes []int32
	quats       []mlraw.Quat
	positions   []mlraw.Vec3
}

func (p *poseSamples) add(ts int64, rc int32, q mlraw.Quat, pos mlraw.Vec3) {
	p.ts = append(p.ts, ts)
	p.resultCodes = append(p.resultCodes, rc)
	p.quats = append(p.quats, q)
	p.positions = append(p.positions, pos)
}

// writeReport prints the common pose health block: monotonicity, dt,
// fps, result-code rate with top offenders, quat norm range, and
// per-frame position step size.
func (p *poseSamples) writeReport(w io.Writer, name string) {
	fmt.Fprintf(w, "\n==================== %s ====================\n", name)
	fmt.Fprintf(w, "Records: %d\n", len(p.ts))
	fmt.Fprintf(w, "Timestamps monotonic: %v\n", Monotonic(p.ts))

	dt := DtMillis(p.ts)
	Describe(dt).write(w, "dt", "ms")
	fmt.Fprintf(w, "Estimated FPS (median): %.2f\n", FPSFromDt(dt))

	writeResultCodes(w, p.resultCodes)
	writeQuatNorms(w, p.quats)

	if len(p.positions) > 1 {
		steps := make([]float64, 0, len(p.positions)-1)
		for i := 1; i < len(p.positions); i++ {
			a, b := p.positions[i-1], p.positions[i]
			dx := float64(b.X - a.X)
			dy := float64(b.Y - a.Y)
			dz := float64(b.Z - a.Z)
			steps = append(steps, math.Sqrt(dx*dx+dy*dy+dz*dz))
		}
		Describe(steps).write(w, "pos_step", "m")
	}
}

func writeResultCodes(w io.Writer, codes []int32) {
	if len(codes) == 0 {
		return
	}
	ok := 0
	counts := map[int32]int{}
	for _, c := range codes {
		if c == 0 {
			ok++
		} else {
			counts[c]++
		}
	}
	fmt.Fprintf(w, "resultCode==0 rate: %.1f%%\n", float64(ok)/float64(len(codes))*100)
	if len(counts) == 0 {
		return
	}
	type codeCount struct {
		code int32
		n    int
	}
	top := make([]codeCount, 0, len(counts))
	for c, n := range counts {
		top = append(top, codeCount{c, n})
	}
	sort.Slice(top, func(i, j int) bool { return top[i].n > top[j].n })
	if len(top) > 5 {
		top = top[:5]
	}
	fmt.Fprintf(w, "Top non-zero resultCodes:")
	for _, t := range top {
		fmt.Fprintf(w, " %d:%d", t.code, t.n)
	}
	fmt.Fprintln(w)
}

func writeQuatNorms(w io.Writer, quats []mlraw.Quat) {
	if len(quats) == 0 {
		return
	}
	norms := make([]float64, len(quats))
	bad := 0
	for i, q := range quats {
		norms[i] = q.Norm()
		if norms[i] < 0.98 || norms[i] > 1.02 {
			bad++
		}
	}
	Describe(norms).write(w, "quat_norm", "")
	fmt.Fprintf(w, "quat norm outside [0.98,1.02]: %.2f%%\n",
		float64(bad)/float64(len(quats))*100)
}
