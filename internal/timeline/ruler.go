package timeline

import (
	"fmt"
	"math"

	"github.com/kikiluvv/slopedit/pkg/util"
)

// Tick is one ruler mark. Every tick carries a label; minor ticks are
// meant to be drawn in a lighter style.
type Tick struct {
	Time  float64
	Coord float64
	Major bool
	Label string
}

// candidate intervals by composition length, smallest first
var intervalTable = []struct {
	upTo      float64
	intervals []float64
}{
	{15, []float64{0.5, 1, 2}},
	{30, []float64{1, 2, 5}},
	{60, []float64{2, 5, 10}},
	{300, []float64{5, 10, 15, 30}},
	{600, []float64{10, 15, 30, 60}},
	{1800, []float64{30, 60, 120}},
	{math.Inf(1), []float64{60, 120, 300}},
}

// RulerInterval picks the tick interval in seconds for the current duration
// and zoom. The first candidate whose spacing reaches MinTickSpacing wins;
// otherwise the interval is derived from Duration/TargetTicks, raised until
// the spacing is legible, and rounded up to a nice step.
func (t *Timeline) RulerInterval() float64 {
	d := t.duration
	for _, row := range intervalTable {
		if d > row.upTo {
			continue
		}
		for _, iv := range row.intervals {
			if t.ToCoord(iv) >= t.cfg.MinTickSpacing {
				return iv
			}
		}
		break
	}

	iv := math.Ceil(d / float64(t.cfg.TargetTicks))
	iv = math.Max(iv, t.cfg.MinTickSpacing/t.pps)
	return niceInterval(iv)
}

// niceInterval rounds up to a whole second below 5s, then to multiples of
// 5, 15 or 60 as the interval grows.
func niceInterval(iv float64) float64 {
	switch {
	case iv <= 1:
		return 1
	case iv <= 5:
		return math.Ceil(iv)
	case iv <= 15:
		return math.Ceil(iv/5) * 5
	case iv <= 60:
		return math.Ceil(iv/15) * 15
	default:
		return math.Ceil(iv/60) * 60
	}
}

// Ruler lays out ticks from 0 to Duration inclusive
func (t *Timeline) Ruler() []Tick {
	if t.duration <= 0 {
		return nil
	}
	iv := t.RulerInterval()

	var ticks []Tick
	for i := 0; i < t.cfg.MaxTicks; i++ {
		at := float64(i) * iv
		if at > t.duration+1e-9 {
			break
		}
		major := isMajor(i, at, iv)
		label := util.FormatClock(at)
		if !major {
			label = fmt.Sprintf("%ds", int(math.Mod(math.Floor(at), 60)))
		}
		ticks = append(ticks, Tick{Time: at, Coord: t.ToCoord(at), Major: major, Label: label})
	}
	return ticks
}

func isMajor(i int, at, iv float64) bool {
	whole := func(step float64) bool {
		return math.Abs(math.Mod(at, step)) < 1e-9
	}
	switch {
	case iv <= 1:
		return i%5 == 0 || (iv < 1 && whole(1))
	case iv <= 5:
		return i%3 == 0 || whole(10)
	case iv <= 30:
		return i%2 == 0 || whole(60)
	default:
		return true
	}
}
