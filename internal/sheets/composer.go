package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/phpdave11/gofpdf"
	"github.com/phpdave11/gofpdi"

	"github.com/sheetbuilder/sheetbuilder/internal/jobs"
	"github.com/sheetbuilder/sheetbuilder/internal/metrics"
	"github.com/sheetbuilder/sheetbuilder/internal/reliability"
)

// ComposerConfig holds the composer's settings.
type ComposerConfig struct {
	Logger *slog.Logger

	// Optimize rewrites finished outputs through pdfcpu's optimizer.
	Optimize bool

	// Metrics, when set, receives cache counters after each composition.
	Metrics *metrics.Metrics
}

// Composer turns stored uploads into sheet-composed output PDFs. It holds no
// per-document state; every composition gets its own importer and form cache,
// so compositions may run concurrently.
type Composer struct {
	logger   *slog.Logger
	optimize bool
	metrics  *metrics.Metrics
}

// NewComposer returns a composer.
func NewComposer(cfg ComposerConfig) *Composer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{logger: logger, optimize: cfg.Optimize, metrics: cfg.Metrics}
}

// Request carries one composition's inputs and output locations.
type Request struct {
	JobID          string
	SourcePath     string
	OriginalName   string
	Rotation       int
	Order          string
	OutputPath     string
	OutputFileName string
	DownloadPath   string
}

// Compose runs the full pipeline: validation, optional reversal, dimension
// scan, canvas-height selection, packing, placement, and the optimization
// pass. Progress goes to sink. The staged upload and any reversed
// intermediate are deleted on the way out regardless of outcome. The PDF
// import layer panics on malformed structures; those surface as errors here,
// never as a half-built result.
func (c *Composer) Compose(ctx context.Context, req Request, sink Sink) (result jobs.Result, err error) {
	started := time.Now()
	var reversedPath string
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("composing %s: %v", req.OriginalName, r)
		}
		c.cleanup(req.SourcePath, reversedPath)
	}()

	sink.Stage(jobs.StageInitializing, "Preparing source document")

	if err := api.ValidateFile(req.SourcePath, relaxedConf()); err != nil {
		return jobs.Result{}, fmt.Errorf("invalid PDF upload: %w", err)
	}
	pageCount, err := countPages(req.SourcePath)
	if err != nil {
		return jobs.Result{}, err
	}
	if pageCount == 0 {
		return jobs.Result{}, errors.New("document has no pages")
	}

	source := req.SourcePath
	if req.Order == reliability.OrderReversed {
		reversedPath = req.SourcePath + ".reversed.pdf"
		if err := reverseFile(source, reversedPath, pageCount); err != nil {
			return jobs.Result{}, err
		}
		source = reversedPath
	}

	tr := newTracker(req.JobID, pageCount, sink)

	sink.Stage(jobs.StagePreparingDimensions, "Measuring page dimensions")
	dims, err := scanDimensions(source, tr)
	if err != nil {
		return jobs.Result{}, err
	}

	plan, err := BuildPlan(dims)
	if err != nil {
		return jobs.Result{}, err
	}
	for _, idx := range plan.Anomalous {
		c.logger.Warn("sheet outgrew the standard height, using full-height canvas",
			"job_id", req.JobID, "sheet", idx+1, "standard_pt", plan.StandardHeight)
	}

	sink.Stage(jobs.StageProcessingPages, "Composing sheets")
	cache, err := NewFormCache(FormCacheCapacity)
	if err != nil {
		return jobs.Result{}, err
	}
	defer cache.Purge()

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: float64(SheetWidthPt), Ht: float64(plan.StandardHeight)},
	})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	imp := gofpdi.NewImporter()
	imp.SetSourceFile(source)

	rot := newRotation(req.Rotation)
	interval := pageReportInterval(pageCount)
	processed := 0
	sheetsDone := 0
	for _, sheet := range plan.Sheets {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return jobs.Result{}, fmt.Errorf("composition aborted: %w", ctxErr)
		}
		pdf.AddPageFormat("P", gofpdf.SizeType{
			Wd: float64(SheetWidthPt),
			Ht: float64(sheet.CanvasHeight),
		})
		for _, pl := range sheet.Placements {
			placePage(pdf, imp, cache, pl, sheet.CanvasHeight, rot)
			processed++
			if processed%interval == 0 {
				tr.report(jobs.StageProcessingPages, processed-1,
					fmt.Sprintf("Processing page %d of %d", processed, pageCount),
					perfSnapshot(cache, sheetsDone))
			}
		}
		sheetsDone++
	}
	if pdfErr := pdf.Error(); pdfErr != nil {
		return jobs.Result{}, fmt.Errorf("composing sheets: %w", pdfErr)
	}
	if c.metrics != nil {
		hits, misses, _ := cache.Stats()
		c.metrics.CacheHits.Add(float64(hits))
		c.metrics.CacheMisses.Add(float64(misses))
	}

	sink.Stage(jobs.StageOptimizingOutput, "Compressing output document")
	tr.report(jobs.StageOptimizingOutput, pageCount-1, "Compressing output document",
		perfSnapshot(cache, sheetsDone))
	if err := pdf.OutputFileAndClose(req.OutputPath); err != nil {
		return jobs.Result{}, fmt.Errorf("writing output: %w", err)
	}
	c.optimizeOutput(req.OutputPath)

	result = jobs.Result{
		Success:              true,
		Message:              fmt.Sprintf("Composed %d pages onto %d sheets", pageCount, len(plan.Sheets)),
		OutputFileName:       req.OutputFileName,
		DownloadPath:         req.DownloadPath,
		ProcessingTimeMillis: time.Since(started).Milliseconds(),
		InputPages:           pageCount,
		OutputPages:          len(plan.Sheets),
	}
	sink.Stage(jobs.StageFinalizing, "Finalizing")
	c.logger.Info("composition finished",
		"job_id", req.JobID,
		"input_pages", pageCount,
		"sheets", len(plan.Sheets),
		"output", req.OutputFileName,
		"elapsed", time.Since(started).Round(time.Millisecond))
	return result, nil
}

// placePage draws one source page onto the current sheet, importing it as a
// form object on first use and reusing the cached template afterwards.
func placePage(pdf *gofpdf.Fpdf, imp *gofpdi.Importer, cache *FormCache, pl Placement, canvas float32, rot rotation) {
	obj, ok := cache.Get(pl.PageIndex)
	if !ok {
		tplID := imp.ImportPage(pl.PageIndex+1, "/MediaBox")
		pdf.ImportTemplates(imp.PutFormXobjectsUnordered())
		pdf.ImportObjects(imp.GetImportedObjectsUnordered())
		pdf.ImportObjPos(imp.GetImportedObjHashPos())
		obj = FormObject{TemplateID: tplID, Width: pl.Dim.Width, Height: pl.Dim.Height}
		cache.Add(pl.PageIndex, obj)
	}

	x := float64(pl.X)
	w := float64(pl.Dim.Width)
	h := float64(pl.Dim.Height)
	// The writer positions templates from the top-left; placements carry the
	// bottom edge in PDF user space.
	yTop := float64(canvas) - (float64(pl.Y) + h)

	if rot.identity() {
		name, sx, sy, tx, ty := imp.UseTemplate(obj.TemplateID, x, yTop, w, h)
		pdf.UseImportedTemplate(name, sx, sy, tx, ty)
		return
	}
	pdf.TransformBegin()
	pdf.Transform(rot.about(x+w/2, float64(pl.Y)+h/2))
	name, sx, sy, tx, ty := imp.UseTemplate(obj.TemplateID, x, yTop, w, h)
	pdf.UseImportedTemplate(name, sx, sy, tx, ty)
	pdf.TransformEnd()
}

// rotation caches the trig for the job's fixed angle so each placement's
// matrix is pure arithmetic.
type rotation struct {
	degrees int
	cos     float64
	sin     float64
}

func newRotation(degrees int) rotation {
	rad := float64(degrees) * math.Pi / 180
	return rotation{degrees: degrees, cos: math.Cos(rad), sin: math.Sin(rad)}
}

func (r rotation) identity() bool {
	return r.degrees%360 == 0
}

// about returns the transform rotating by the cached angle around a point
// given in PDF user space (origin bottom-left, point units).
func (r rotation) about(cx, cy float64) gofpdf.TransformMatrix {
	return gofpdf.TransformMatrix{
		A: r.cos,
		B: r.sin,
		C: -r.sin,
		D: r.cos,
		E: cx + r.sin*cy - r.cos*cx,
		F: cy - r.cos*cy - r.sin*cx,
	}
}

func countPages(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()
	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("counting pages: %w", err)
	}
	return n, nil
}

// scanDimensions reads every page's declared size, reporting periodically for
// very large documents.
func scanDimensions(path string, tr *tracker) ([]PageDim, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening source: %w", err)
	}
	defer f.Close()
	raw, err := api.PageDims(f, nil)
	if err != nil {
		return nil, fmt.Errorf("reading page dimensions: %w", err)
	}
	dims := make([]PageDim, len(raw))
	for i, d := range raw {
		dims[i] = PageDim{Width: float32(d.Width), Height: float32(d.Height)}
		if (i+1)%dimScanReportEvery == 0 {
			tr.report(jobs.StagePreparingDimensions, i, "Measuring page dimensions",
				jobs.PerfStats{MemoryMB: memoryMB()})
		}
	}
	return dims, nil
}

func perfSnapshot(cache *FormCache, sheets int) jobs.PerfStats {
	hits, misses, ratio := cache.Stats()
	return jobs.PerfStats{
		MemoryMB:        memoryMB(),
		CacheHits:       hits,
		CacheMisses:     misses,
		CacheHitRatio:   ratio,
		CachedObjects:   cache.Len(),
		SheetsGenerated: sheets,
	}
}

// optimizeOutput rewrites the file through pdfcpu's optimizer. Best effort:
// on any failure the unoptimized output stands.
func (c *Composer) optimizeOutput(path string) {
	if !c.optimize {
		return
	}
	tmp := path + ".opt"
	if err := api.OptimizeFile(path, tmp, relaxedConf()); err != nil {
		c.logger.Warn("output optimization failed", "path", path, "error", err)
		os.Remove(tmp)
		return
	}
	if err := os.Rename(tmp, path); err != nil {
		c.logger.Warn("swapping optimized output", "path", path, "error", err)
		os.Remove(tmp)
	}
}

// cleanup removes working files. Failures are logged and swallowed so cleanup
// never masks the job outcome.
func (c *Composer) cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("cleanup failed", "path", p, "error", err)
		}
	}
}

func relaxedConf() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}
