package main

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/phpdave11/gofpdf"
)

func main() {
	src := "/tmp/diagout/src.pdf"
	rev := "/tmp/diagout/rev.pdf"

	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for _, h := range []float64{400, 500, 600} {
		pdf.AddPageFormat("P", gofpdf.SizeType{Wd: 595.28, Ht: h})
		pdf.Text(40, 40, "page")
	}
	if err := pdf.OutputFileAndClose(src); err != nil {
		panic(err)
	}

	if err := api.CollectFile(src, rev, []string{"3", "2", "1"}, nil); err != nil {
		panic(err)
	}

	for _, p := range []string{src, rev} {
		b, err := os.ReadFile(p)
		if err != nil {
			panic(err)
		}
		fmt.Printf("== %s (%d bytes)\n", p, len(b))
	}
}
