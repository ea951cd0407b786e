package endpoints

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sheetbuilder/sheetbuilder/internal/api"
	"github.com/sheetbuilder/sheetbuilder/internal/jobs"
	"github.com/sheetbuilder/sheetbuilder/internal/svcctx"
)

// StatusResponse is a point-in-time snapshot of a job.
type StatusResponse struct {
	Success   bool                `json:"success"`
	JobID     string              `json:"jobId"`
	Stage     string              `json:"stage"`
	StartTime time.Time           `json:"startTime"`
	EndTime   *time.Time          `json:"endTime"`
	Progress  *jobs.ProgressEvent `json:"progress"`
	Result    *jobs.Result        `json:"result"`
	Error     *string             `json:"error"`
}

// StatusEndpoint handles GET /api/pdf/status/{jobId}, the polling fallback
// for clients whose progress stream dropped.
type StatusEndpoint struct{}

var _ api.Endpoint = (*StatusEndpoint)(nil)

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/pdf/status/{jobId}", e.handler
}

// handler godoc
//
//	@Summary		Get job status
//	@Description	Snapshot of a job's stage, latest progress and result
//	@Tags			composition
//	@Produce		json
//	@Param			jobId	path		string	true	"Job ID"
//	@Success		200		{object}	StatusResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/pdf/status/{jobId} [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "jobId is required")
		return
	}

	broker := svcctx.BrokerFrom(r.Context())
	if broker == nil {
		writeError(w, http.StatusServiceUnavailable, "progress broker not initialized")
		return
	}

	rec, ok := broker.GetStatus(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", jobID))
		return
	}

	resp := StatusResponse{
		Success:   true,
		JobID:     rec.JobID,
		Stage:     string(rec.Stage),
		StartTime: rec.StartedAt,
		EndTime:   rec.EndedAt,
		Progress:  rec.LastProgress,
		Result:    rec.Result,
	}
	if rec.ErrorMessage != "" {
		resp.Error = &rec.ErrorMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <job-id>",
		Short: "Get the status of a composition job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/api/pdf/status/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
