package sheets

import (
	"errors"
	"strings"
	"testing"
)

var a4 = PageDim{Width: 595.28, Height: 841.89}

func approx(got, want, tol float32) bool {
	d := got - want
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func uniform(d PageDim, n int) []PageDim {
	dims := make([]PageDim, n)
	for i := range dims {
		dims[i] = d
	}
	return dims
}

func TestPackGroup(t *testing.T) {
	t.Run("three a4 pages share a sheet", func(t *testing.T) {
		n, sum := packGroup(uniform(a4, 4), 0)
		if n != 3 {
			t.Fatalf("packGroup took %d pages, want 3", n)
		}
		if !approx(sum, 3*a4.Height, 0.01) {
			t.Errorf("sum = %v, want about %v", sum, 3*a4.Height)
		}
	})

	t.Run("start offset packs the remainder", func(t *testing.T) {
		n, sum := packGroup(uniform(a4, 4), 3)
		if n != 1 || !approx(sum, a4.Height, 0.01) {
			t.Errorf("packGroup = %d, %v; want the single trailing page", n, sum)
		}
	})

	t.Run("first page is always taken", func(t *testing.T) {
		n, _ := packGroup([]PageDim{{Width: 500, Height: 3000}}, 0)
		if n != 1 {
			t.Errorf("packGroup took %d pages, want 1", n)
		}
	})

	t.Run("exact fit is kept within epsilon", func(t *testing.T) {
		third := MaxSheetHeightPt / 3
		n, _ := packGroup(uniform(PageDim{Width: 500, Height: third}, 3), 0)
		if n != 3 {
			t.Errorf("packGroup took %d pages, want all 3 at exactly max height", n)
		}
	})

	t.Run("oversized follower starts the next sheet", func(t *testing.T) {
		dims := []PageDim{{Width: 500, Height: 500}, {Width: 500, Height: 2500}}
		n, sum := packGroup(dims, 0)
		if n != 1 || sum != 500 {
			t.Errorf("packGroup = %d, %v; want just the first page", n, sum)
		}
	})
}

func TestStandardSheetHeight(t *testing.T) {
	t.Run("no pages uses the maximum", func(t *testing.T) {
		if got := StandardSheetHeight(nil); got != MaxSheetHeightPt {
			t.Errorf("StandardSheetHeight(nil) = %v, want max", got)
		}
	})

	t.Run("first simulated sheet wins", func(t *testing.T) {
		got := StandardSheetHeight(uniform(a4, 4))
		if !approx(got, 3*a4.Height, 0.01) {
			t.Errorf("StandardSheetHeight = %v, want about %v", got, 3*a4.Height)
		}
	})

	t.Run("short leader defers to a substantial later sheet", func(t *testing.T) {
		// One 500pt page followed by pages too tall to join it: the first
		// simulated sheet totals 500pt, under half the maximum, so the later
		// 2500pt sheet supplies the standard instead.
		dims := []PageDim{{Width: 500, Height: 500}}
		dims = append(dims, uniform(PageDim{Width: 500, Height: 2500}, 10)...)

		got := StandardSheetHeight(dims)
		if got != 2500 {
			t.Errorf("StandardSheetHeight = %v, want 2500", got)
		}
	})

	t.Run("short document keeps its own height", func(t *testing.T) {
		got := StandardSheetHeight([]PageDim{{Width: 500, Height: 500}})
		if got != 500 {
			t.Errorf("StandardSheetHeight = %v, want 500", got)
		}
	})
}

func TestBuildPlan(t *testing.T) {
	t.Run("four a4 pages make two sheets", func(t *testing.T) {
		plan, err := BuildPlan(uniform(a4, 4))
		if err != nil {
			t.Fatalf("BuildPlan: %v", err)
		}
		if len(plan.Sheets) != 2 {
			t.Fatalf("got %d sheets, want 2", len(plan.Sheets))
		}
		if plan.PageCount() != 4 {
			t.Errorf("PageCount() = %d, want 4", plan.PageCount())
		}
		if len(plan.Anomalous) != 0 {
			t.Errorf("Anomalous = %v, want none", plan.Anomalous)
		}

		first, second := plan.Sheets[0], plan.Sheets[1]
		if len(first.Placements) != 3 || len(second.Placements) != 1 {
			t.Fatalf("placement split = %d/%d, want 3/1",
				len(first.Placements), len(second.Placements))
		}
		for want, sheet := 0, 0; sheet < len(plan.Sheets); sheet++ {
			for _, pl := range plan.Sheets[sheet].Placements {
				if pl.PageIndex != want {
					t.Errorf("placement order broken: got page %d, want %d", pl.PageIndex, want)
				}
				want++
			}
		}

		if !approx(plan.StandardHeight, 3*a4.Height, 0.01) {
			t.Errorf("StandardHeight = %v, want about %v", plan.StandardHeight, 3*a4.Height)
		}
		if first.CanvasHeight != plan.StandardHeight || second.CanvasHeight != plan.StandardHeight {
			t.Error("sheet canvases deviate from the standard height")
		}

		wantX := (SheetWidthPt - a4.Width) / 2
		canvas := first.CanvasHeight
		wantY := []float32{canvas - a4.Height, canvas - 2*a4.Height, 0}
		for i, pl := range first.Placements {
			if !approx(pl.X, wantX, 0.01) {
				t.Errorf("placement %d X = %v, want centered at %v", i, pl.X, wantX)
			}
			if !approx(pl.Y, wantY[i], HeightEpsilon) {
				t.Errorf("placement %d Y = %v, want %v", i, pl.Y, wantY[i])
			}
		}
		// The lone page on the second sheet sits at the top, not the bottom.
		if got := second.Placements[0].Y; !approx(got, canvas-a4.Height, HeightEpsilon) {
			t.Errorf("trailing page Y = %v, want top-aligned %v", got, canvas-a4.Height)
		}
	})

	t.Run("overgrown sheet falls back to full height", func(t *testing.T) {
		dims := []PageDim{{Width: 500, Height: 500}, {Width: 500, Height: 2500}}
		plan, err := BuildPlan(dims)
		if err != nil {
			t.Fatalf("BuildPlan: %v", err)
		}
		if plan.StandardHeight != 500 {
			t.Fatalf("StandardHeight = %v, want 500", plan.StandardHeight)
		}
		if len(plan.Sheets) != 2 {
			t.Fatalf("got %d sheets, want 2", len(plan.Sheets))
		}
		if got := plan.Sheets[1].CanvasHeight; got != MaxSheetHeightPt {
			t.Errorf("anomalous canvas = %v, want full height %v", got, MaxSheetHeightPt)
		}
		if len(plan.Anomalous) != 1 || plan.Anomalous[0] != 1 {
			t.Errorf("Anomalous = %v, want [1]", plan.Anomalous)
		}
		if got := plan.Sheets[1].Placements[0].Y; !approx(got, MaxSheetHeightPt-2500, HeightEpsilon) {
			t.Errorf("anomalous placement Y = %v, want %v", got, MaxSheetHeightPt-2500)
		}
	})

	t.Run("page taller than any sheet is rejected", func(t *testing.T) {
		dims := []PageDim{a4, {Width: 500, Height: 3000}}
		_, err := BuildPlan(dims)
		if !errors.Is(err, ErrPageTooTall) {
			t.Fatalf("err = %v, want ErrPageTooTall", err)
		}
		if !strings.Contains(err.Error(), "page 2") {
			t.Errorf("error %q does not name the offending page", err)
		}
	})

	t.Run("empty document packs nothing", func(t *testing.T) {
		plan, err := BuildPlan(nil)
		if err != nil {
			t.Fatalf("BuildPlan: %v", err)
		}
		if len(plan.Sheets) != 0 || plan.PageCount() != 0 {
			t.Errorf("empty plan has %d sheets", len(plan.Sheets))
		}
	})
}
