package endpoints

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"github.com/sheetbuilder/sheetbuilder/internal/api"
	"github.com/sheetbuilder/sheetbuilder/internal/svcctx"
)

// DownloadEndpoint handles GET /api/pdf/download/{filename}. A bare clean
// filename resolves to the most recent stored file carrying it as a suffix,
// so clients never need to learn the server-side storage prefix.
type DownloadEndpoint struct{}

var _ api.Endpoint = (*DownloadEndpoint)(nil)

func (e *DownloadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/pdf/download/{filename}", e.handler
}

// handler godoc
//
//	@Summary		Download a composed PDF
//	@Description	Stream a composed sheet PDF. Supports Range requests. With deleteAfterDownload=true the file is removed once the response completes.
//	@Tags			composition
//	@Produce		application/pdf
//	@Param			filename			path	string	true	"Output filename"
//	@Param			deleteAfterDownload	query	bool	false	"Delete the file after the download"
//	@Success		200
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/pdf/download/{filename} [get]
func (e *DownloadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	filename := r.PathValue("filename")
	if filename == "" {
		writeError(w, http.StatusBadRequest, "filename is required")
		return
	}

	store := svcctx.StoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "file store not initialized")
		return
	}

	path, err := store.Resolve(filename)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("file %s not found", filename))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	http.ServeFile(w, r, path)

	if r.URL.Query().Get("deleteAfterDownload") == "true" {
		store.Remove(path)
	}
}

func (e *DownloadEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		output      string
		deleteAfter bool
	)
	cmd := &cobra.Command{
		Use:   "download <filename>",
		Short: "Download a composed sheet PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			dest := output
			if dest == "" {
				dest = name
			}

			f, err := os.Create(dest)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", dest, err)
			}
			defer f.Close()

			path := "/api/pdf/download/" + url.PathEscape(name)
			if deleteAfter {
				path += "?deleteAfterDownload=true"
			}

			client := api.NewClient(getServerURL())
			n, err := client.Download(cmd.Context(), path, f)
			if err != nil {
				os.Remove(dest)
				return err
			}

			cmd.Printf("Wrote %s (%d bytes)\n", dest, n)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (defaults to the server filename)")
	cmd.Flags().BoolVar(&deleteAfter, "delete", false, "Delete the file from the server after download")
	return cmd
}
