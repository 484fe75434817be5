// Package specimen maps absolute tray positions to exhibit specimens
// and loads their stored display defaults.
package specimen

import (
	"github.com/mindatnh/scopego/internal/debug"
)

// Range is an inclusive absolute tray-step interval.
type Range struct {
	Start int
	End   int
}

// Each specimen occupies two step ranges, one per side of the tray
// (the carousel passes each slot twice per revolution). Specimen 6 is
// the slot across from the wide tab; its two stored ranges are
// identical in the calibration data and are kept that way.
var ranges = [][2]Range{
	{{13809, 14168}, {5575, 5940}},  // Specimen 1
	{{14630, 14987}, {6399, 6765}},  // Specimen 2
	{{15454, 15819}, {7223, 7585}},  // Specimen 3
	{{16284, 16641}, {8060, 8400}},  // Specimen 4
	{{17103, 17462}, {8900, 9219}},  // Specimen 5
	{{9600, 10100}, {9600, 10100}},  // Specimen 6
	{{10495, 10856}, {2292, 2651}},  // Specimen 7
	{{11314, 11678}, {3133, 3466}},  // Specimen 8
	{{12150, 12506}, {3937, 4297}},  // Specimen 9
	{{12977, 13348}, {4758, 5114}},  // Specimen 10
}

// Count returns the number of specimens on the tray.
func Count() int { return len(ranges) }

// minTolerance is the floor on the center-distance tolerance in steps.
const minTolerance = 50

// FromSteps determines the 1-based specimen index for an absolute tray
// step count. For each range in table order: direct containment wins
// immediately; otherwise the step count matches if it lies within
// max(50, width*tolFraction) of the range center. The first qualifying
// range decides. Returns (0, false) when nothing matches.
func FromSteps(stepCount int, tolFraction float64) (int, bool) {
	bestIdx := 0
	bestDist := -1

	for idx, pair := range ranges {
		for _, r := range pair {
			if r.Start <= stepCount && stepCount <= r.End {
				return idx + 1, true
			}

			center := (r.Start + r.End) / 2
			width := r.End - r.Start + 1
			if width < 1 {
				width = 1
			}
			tol := int(float64(width) * tolFraction)
			if tol < minTolerance {
				tol = minTolerance
			}
			dist := stepCount - center
			if dist < 0 {
				dist = -dist
			}
			if dist <= tol {
				return idx + 1, true
			}

			// Track the closest center. Kept for diagnostics only; an
			// out-of-tolerance position reports no match rather than
			// snapping to the nearest specimen.
			if bestDist == -1 || dist < bestDist {
				bestDist = dist
				bestIdx = idx + 1
			}
		}
	}

	debug.Trace("mapper: no range match for steps=%d (nearest center: specimen %d, dist %d)",
		stepCount, bestIdx, bestDist)
	return 0, false
}

// ForTab maps a 1-based tab index to the specimen sitting across from
// that tab under the optics. Tab 1 (the wide tab) shows specimen 6,
// circularly.
func ForTab(tab int) int {
	n := Count()
	return ((tab+n/2-1)%n+n)%n + 1
}

// TabFor returns the tab index whose ForTab mapping equals the given
// specimen, or 0 if none does.
func TabFor(specimenIdx int) int {
	for tab := 1; tab <= Count(); tab++ {
		if ForTab(tab) == specimenIdx {
			return tab
		}
	}
	return 0
}
