package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sheetbuilder/sheetbuilder/internal/api"
	"github.com/sheetbuilder/sheetbuilder/internal/sheets"
	"github.com/sheetbuilder/sheetbuilder/internal/svcctx"
)

// LegacyBlockedResponse directs oversize synchronous uploads to the
// progress-tracked endpoint.
type LegacyBlockedResponse struct {
	Success          bool   `json:"success"`
	Message          string `json:"message"`
	RequiredEndpoint string `json:"requiredEndpoint"`
}

// ProcessEndpoint handles POST /api/pdf/process, the synchronous submission
// path kept for clients that cannot consume progress streams.
type ProcessEndpoint struct{}

var _ api.Endpoint = (*ProcessEndpoint)(nil)

func (e *ProcessEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/pdf/process", e.handler
}

// handler godoc
//
//	@Summary		Compose a PDF synchronously
//	@Description	Run a composition inline and return the result in the response. Uploads at or above the large-file threshold are refused with 409 and must use the asynchronous endpoint.
//	@Tags			composition
//	@Accept			mpfd
//	@Produce		json
//	@Param			pdfFile			formData	file	true	"PDF to compose"
//	@Param			rotationAngle	formData	int		false	"Page rotation in degrees (0-360)"
//	@Param			order			formData	string	false	"Page order: Norm or Rev"
//	@Success		200	{object}	jobs.Result
//	@Failure		400	{object}	ErrorResponse
//	@Failure		409	{object}	LegacyBlockedResponse
//	@Failure		422	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/pdf/process [post]
func (e *ProcessEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse form: %v", err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	fp, file, ok := parseSubmission(w, r)
	if !ok {
		return
	}
	defer file.Close()

	svc := svcctx.SheetsFrom(r.Context())
	if svc == nil {
		writeError(w, http.StatusServiceUnavailable, "composition service not initialized")
		return
	}

	// The composition runs inline, so the response can start well after the
	// server's write deadline would have expired.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	result, err := svc.SubmitSync(r.Context(), fp, file)
	if err != nil {
		if errors.Is(err, sheets.ErrTooLargeForSync) {
			writeJSON(w, http.StatusConflict, LegacyBlockedResponse{
				Success:          false,
				Message:          fmt.Sprintf("files of %d bytes must use the progress-tracked endpoint", fp.SizeBytes),
				RequiredEndpoint: "/api/pdf/process-with-progress",
			})
			return
		}
		if errors.Is(err, sheets.ErrUploadStore) {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("composition failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (e *ProcessEndpoint) Command(_ func() string) *cobra.Command {
	// The CLI always goes through the progress-tracked path ("submit").
	return nil
}
