package endpoints

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/sheetbuilder/sheetbuilder/internal/reliability"
)

// maxFormMemory caps how much of a multipart body is held in memory; larger
// file parts spill to temp files, which ParseMultipartForm cleans up via
// RemoveAll.
const maxFormMemory = 32 << 20

// parseSubmission extracts the fields shared by both submission endpoints:
// pdfFile (required), rotationAngle (optional, 0-360) and order (optional,
// Norm or Rev). The form must already be parsed. On validation failure it
// writes a 400 response and returns false; no job is created.
func parseSubmission(w http.ResponseWriter, r *http.Request) (reliability.Fingerprint, multipart.File, bool) {
	file, header, err := r.FormFile("pdfFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "pdfFile is required")
		return reliability.Fingerprint{}, nil, false
	}

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		file.Close()
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file %s is not a PDF", header.Filename))
		return reliability.Fingerprint{}, nil, false
	}

	rotation := 0
	if v := r.FormValue("rotationAngle"); v != "" {
		rotation, err = strconv.Atoi(v)
		if err != nil || rotation < 0 || rotation > 360 {
			file.Close()
			writeError(w, http.StatusBadRequest, "rotationAngle must be an integer between 0 and 360")
			return reliability.Fingerprint{}, nil, false
		}
	}

	order := r.FormValue("order")
	if order == "" {
		order = "Norm"
	}
	switch strings.ToLower(order) {
	case "norm", "rev":
	default:
		file.Close()
		writeError(w, http.StatusBadRequest, "order must be Norm or Rev")
		return reliability.Fingerprint{}, nil, false
	}

	return reliability.NewFingerprint(header.Filename, header.Size, rotation, order), file, true
}
