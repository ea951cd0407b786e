package sheets

import (
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// reverseFile writes a copy of inFile whose pages run last-to-first. Page
// content streams are carried over untouched; only the page order changes.
func reverseFile(inFile, outFile string, pageCount int) error {
	if pageCount < 1 {
		return fmt.Errorf("cannot reverse %d pages", pageCount)
	}
	pages := make([]string, 0, pageCount)
	for p := pageCount; p >= 1; p-- {
		pages = append(pages, strconv.Itoa(p))
	}
	if err := api.CollectFile(inFile, outFile, pages, nil); err != nil {
		return fmt.Errorf("collecting reversed pages: %w", err)
	}
	return nil
}
