package sheets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/phpdave11/gofpdf"
)

// writePDFWithHeights builds a PDF whose pages carry the given heights, so
// page order stays observable through the dimension scan.
func writePDFWithHeights(t *testing.T, path string, heights []float64) {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for _, h := range heights {
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: 595.28, Ht: h})
		pdf.Text(40, 40, "page")
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
}

func readHeights(t *testing.T, path string) []float64 {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()
	dims, err := api.PageDims(f, nil)
	if err != nil {
		t.Fatalf("reading page dims: %v", err)
	}
	heights := make([]float64, len(dims))
	for i, d := range dims {
		heights[i] = d.Height
	}
	return heights
}

func TestReverseFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.pdf")
	out := filepath.Join(dir, "out.pdf")
	writePDFWithHeights(t, src, []float64{400, 500, 600})

	if err := reverseFile(src, out, 3); err != nil {
		t.Fatalf("reverseFile: %v", err)
	}

	got := readHeights(t, out)
	want := []float64{600, 500, 400}
	if len(got) != len(want) {
		t.Fatalf("reversed document has %d pages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] < want[i]-0.5 || got[i] > want[i]+0.5 {
			t.Errorf("page %d height = %v, want %v", i+1, got[i], want[i])
		}
	}
}

func TestReverseFileRejectsEmptyRange(t *testing.T) {
	if err := reverseFile("in.pdf", "out.pdf", 0); err == nil {
		t.Fatal("reverseFile accepted a zero page count")
	}
}
