package endpoints

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/sheetbuilder/sheetbuilder/internal/api"
	"github.com/sheetbuilder/sheetbuilder/internal/client"
	"github.com/sheetbuilder/sheetbuilder/internal/jobs"
	"github.com/sheetbuilder/sheetbuilder/internal/svcctx"
)

// SubmitResponse is the response for composition submissions.
type SubmitResponse struct {
	Success     bool         `json:"success"`
	JobID       string       `json:"jobId"`
	DuplicateOf bool         `json:"duplicateOf,omitempty"`
	Result      *jobs.Result `json:"result,omitempty"`
}

// ProcessWithProgressEndpoint handles POST /api/pdf/process-with-progress,
// the asynchronous submission path.
type ProcessWithProgressEndpoint struct{}

var _ api.Endpoint = (*ProcessWithProgressEndpoint)(nil)

func (e *ProcessWithProgressEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/pdf/process-with-progress", e.handler
}

// handler godoc
//
//	@Summary		Submit a PDF for sheet composition
//	@Description	Start an asynchronous composition job; progress is available via the progress stream and status endpoints. Equivalent in-flight or recently completed submissions are answered with the existing job instead of starting a new one.
//	@Tags			composition
//	@Accept			mpfd
//	@Produce		json
//	@Param			pdfFile			formData	file	true	"PDF to compose"
//	@Param			rotationAngle	formData	int		false	"Page rotation in degrees (0-360)"
//	@Param			order			formData	string	false	"Page order: Norm or Rev"
//	@Success		200	{object}	SubmitResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Router			/api/pdf/process-with-progress [post]
func (e *ProcessWithProgressEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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

	outcome, err := svc.SubmitAsync(fp, file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to store upload: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, SubmitResponse{
		Success:     true,
		JobID:       outcome.JobID,
		DuplicateOf: outcome.Duplicate,
		Result:      outcome.Result,
	})
}

func (e *ProcessWithProgressEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		rotation int
		order    string
		download bool
		output   string
	)
	cmd := &cobra.Command{
		Use:   "submit <file.pdf>",
		Short: "Submit a PDF for sheet composition and wait for the result",
		Long: `Submit a PDF for sheet composition and stream progress until the job
finishes. Re-running the command for the same file reattaches to the
in-flight job instead of uploading again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cl, err := client.New(client.Options{ServerURL: getServerURL()})
			if err != nil {
				return err
			}

			result, err := cl.Submit(ctx, client.Submission{
				FilePath: args[0],
				Rotation: rotation,
				Order:    order,
			}, func(evt jobs.ProgressEvent) {
				fmt.Fprintf(cmd.ErrOrStderr(), "[%5.1f%%] %-20s page %d/%d\n",
					evt.PercentComplete, evt.Stage, evt.CurrentPage, evt.TotalPages)
			})
			if err != nil {
				return err
			}

			if err := api.Output(result); err != nil {
				return err
			}

			if download {
				dest := output
				if dest == "" {
					dest = result.OutputFileName
				}
				f, err := os.Create(dest)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", dest, err)
				}
				defer f.Close()

				apiClient := api.NewClient(getServerURL())
				if _, err := apiClient.Download(ctx, result.DownloadPath, f); err != nil {
					os.Remove(dest)
					return err
				}
				cmd.Printf("Saved %s\n", dest)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&rotation, "rotation", 0, "Page rotation in degrees (0-360)")
	cmd.Flags().StringVar(&order, "order", "Norm", "Page order: Norm or Rev")
	cmd.Flags().BoolVar(&download, "download", false, "Download the composed PDF when the job completes")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Download destination (defaults to the server filename)")
	return cmd
}
