// Package sheets turns uploaded PDFs into sheet-composed outputs: consecutive
// source pages packed top-to-bottom onto fixed-width sheets of one uniform
// height, with optional rotation and whole-document reversal.
package sheets

import (
	"errors"
	"fmt"
)

// Sheet geometry in PDF points. Width is fixed at 317 mm; height varies per
// document up to 980 mm. All packing arithmetic runs in float32 with a small
// epsilon absorbing accumulated rounding.
const (
	SheetWidthPt     float32 = 317.0 / 25.4 * 72.0
	MaxSheetHeightPt float32 = 980.0 / 25.4 * 72.0
	HeightEpsilon    float32 = 0.01
)

// ErrPageTooTall means a single source page cannot fit on any sheet.
var ErrPageTooTall = errors.New("page exceeds maximum sheet height")

// PageDim is a source page's declared size in points.
type PageDim struct {
	Width  float32
	Height float32
}

// Placement positions one source page on a sheet. X is the left edge and Y
// the bottom edge, both in PDF user space (origin bottom-left).
type Placement struct {
	PageIndex int
	X         float32
	Y         float32
	Dim       PageDim
}

// Sheet is one output page worth of placements.
type Sheet struct {
	Placements   []Placement
	PackHeight   float32
	CanvasHeight float32
}

// Plan is the complete packing of a document.
type Plan struct {
	Sheets         []Sheet
	StandardHeight float32

	// Anomalous lists sheet indices whose pack exceeded the standard height
	// and fell back to a full-height canvas.
	Anomalous []int
}

// PageCount returns the number of source pages the plan places.
func (p Plan) PageCount() int {
	var n int
	for _, s := range p.Sheets {
		n += len(s.Placements)
	}
	return n
}

// packGroup returns how many consecutive pages starting at start share one
// sheet under the max-height rule, and their summed height. At least one page
// is always taken; callers reject oversized single pages beforehand.
func packGroup(dims []PageDim, start int) (count int, sum float32) {
	for i := start; i < len(dims); i++ {
		h := dims[i].Height
		if count > 0 && sum+h > MaxSheetHeightPt+HeightEpsilon {
			break
		}
		sum += h
		count++
	}
	return count, sum
}

// StandardSheetHeight picks one canvas height for the whole output by
// simulating the first few sheets: K = min(10, ceil(N/10)) sheets are packed
// and the first simulated total wins, unless it falls below half the maximum
// and a later simulated total reaches at least half. With nothing to simulate
// the maximum is used. A uniform canvas keeps the emitted sheet stream
// consistent for downstream print equipment, including the final short sheet.
func StandardSheetHeight(dims []PageDim) float32 {
	if len(dims) == 0 {
		return MaxSheetHeightPt
	}
	k := (len(dims) + 9) / 10
	if k > 10 {
		k = 10
	}
	var totals []float32
	idx := 0
	for sheet := 0; sheet < k && idx < len(dims); sheet++ {
		n, sum := packGroup(dims, idx)
		totals = append(totals, sum)
		idx += n
	}
	if len(totals) == 0 {
		return MaxSheetHeightPt
	}
	std := totals[0]
	if std < MaxSheetHeightPt/2 {
		for _, t := range totals[1:] {
			if t >= MaxSheetHeightPt/2 {
				std = t
				break
			}
		}
	}
	return std
}

// BuildPlan packs every page into sheets of the standard canvas height,
// centering each page horizontally and stacking top to bottom. A sheet whose
// pack outgrows the standard height (possible when the leading sheets were
// atypically short) gets a full-height canvas instead of placing pages below
// the sheet edge; such sheets are listed in Plan.Anomalous.
func BuildPlan(dims []PageDim) (Plan, error) {
	for i, d := range dims {
		if d.Height > MaxSheetHeightPt+HeightEpsilon {
			return Plan{}, fmt.Errorf("page %d is %.2fpt tall, max sheet height is %.2fpt: %w",
				i+1, d.Height, MaxSheetHeightPt, ErrPageTooTall)
		}
	}

	plan := Plan{StandardHeight: StandardSheetHeight(dims)}
	pageIdx := 0
	for pageIdx < len(dims) {
		n, sum := packGroup(dims, pageIdx)
		canvas := plan.StandardHeight
		if sum > canvas+HeightEpsilon {
			canvas = MaxSheetHeightPt
			plan.Anomalous = append(plan.Anomalous, len(plan.Sheets))
		}

		sheet := Sheet{
			Placements:   make([]Placement, 0, n),
			PackHeight:   sum,
			CanvasHeight: canvas,
		}
		currentY := canvas
		for _, d := range dims[pageIdx : pageIdx+n] {
			currentY -= d.Height
			if currentY < 0 && currentY >= -HeightEpsilon {
				// A pack inside the epsilon tolerance may overshoot the
				// canvas by a rounding hair; pin it to the bottom edge.
				currentY = 0
			}
			sheet.Placements = append(sheet.Placements, Placement{
				PageIndex: pageIdx + len(sheet.Placements),
				X:         (SheetWidthPt - d.Width) / 2,
				Y:         currentY,
				Dim:       d,
			})
		}
		plan.Sheets = append(plan.Sheets, sheet)
		pageIdx += n
	}
	return plan, nil
}
