package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/sheetbuilder/sheetbuilder/internal/api"
	"github.com/sheetbuilder/sheetbuilder/internal/svcctx"
)

// ProgressEndpoint handles GET /api/pdf/progress/{jobId} as a server-sent
// event stream. Each datum is one JSON-encoded ProgressEvent; the stream ends
// after the event that carries a terminal stage.
type ProgressEndpoint struct{}

var _ api.Endpoint = (*ProgressEndpoint)(nil)

func (e *ProgressEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/pdf/progress/{jobId}", e.handler
}

// handler godoc
//
//	@Summary		Stream job progress
//	@Description	Server-sent event stream of ProgressEvents for a job. Closes after the terminal event.
//	@Tags			composition
//	@Produce		text/event-stream
//	@Param			jobId	path	string	true	"Job ID"
//	@Success		200
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/pdf/progress/{jobId} [get]
func (e *ProgressEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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

	if _, ok := broker.GetStatus(jobID); !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("job %s not found", jobID))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// A stream lives as long as its job; a server-wide write deadline would
	// kill slow jobs mid-flight.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	ctx := r.Context()
	for {
		events, err := broker.Subscribe(ctx, jobID)
		if err != nil {
			// Job reaped since the initial check; nothing left to stream.
			return
		}

		terminal := false
		for evt := range events {
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
			if evt.Stage.Terminal() {
				terminal = true
			}
		}

		if terminal || ctx.Err() != nil {
			return
		}

		// The subscription lapsed on its quiet timeout. Nudge the connection
		// so intermediaries keep it open, then pick the stream back up.
		if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (e *ProgressEndpoint) Command(_ func() string) *cobra.Command {
	// Progress streaming is part of the submit command.
	return nil
}
