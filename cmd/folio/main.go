// folio refines a PDF's layout detections and writes a catalog directory.
//
// Usage:
//
//	folio -detections detections.json [options]
//
// Options:
//
//	-pdf string              Source PDF, overrides the path in the detections file
//	-out string              Catalog output directory (default "catalogs")
//	-detection-dpi int       DPI the detections were produced at
//	-merge-threshold float   Same-class merge threshold
//	-merge-mode string       iou or containment
//	-policy string           priority, larger, confident, weighted or split
//	-captions string         geometric, vision or none
//	-page-images string      Directory of page_NNNN.png rasters
//	-image-dpi int           DPI of the page rasters
//	-hocr-dir string         Directory of page_NNNN.hocr files for text extraction
//	-hocr-dpi int            DPI of the hOCR coordinates
//	-debug                   Check stage post-conditions and fail on violations
//
// Exit status is 0 on success, 1 on usage or I/O errors and 2 when a page
// exceeded the box-count cap or violated an invariant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"folio/internal/catalog"
	"folio/internal/config"
	"folio/internal/detections"
	"folio/internal/domain"
	"folio/internal/extract"
	"folio/internal/logger"
	"folio/internal/oracle"
	"folio/internal/oracle/providers"
	"folio/internal/port"
	"folio/internal/service"
	"folio/internal/storage/local"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitPage    = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	detections     string
	pdf            string
	out            string
	detectionDPI   int
	mergeThreshold float64
	mergeMode      string
	policy         string
	captions       string
	pageImages     string
	imageDPI       int
	hocrDir        string
	hocrDPI        int
	debug          bool
	set            map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("folio", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.detections, "detections", "", "Path to the detector output (JSON or YAML)")
	fs.StringVar(&o.pdf, "pdf", "", "Source PDF path")
	fs.StringVar(&o.out, "out", "", "Catalog output directory")
	fs.IntVar(&o.detectionDPI, "detection-dpi", 0, "DPI the detections were produced at")
	fs.Float64Var(&o.mergeThreshold, "merge-threshold", 0, "Same-class merge threshold")
	fs.StringVar(&o.mergeMode, "merge-mode", "", "Merge mode: iou or containment")
	fs.StringVar(&o.policy, "policy", "", "Overlap policy: priority, larger, confident, weighted or split")
	fs.StringVar(&o.captions, "captions", "", "Caption association: geometric, vision or none")
	fs.StringVar(&o.pageImages, "page-images", "", "Directory of page_NNNN.png rasters")
	fs.IntVar(&o.imageDPI, "image-dpi", 150, "DPI of the page rasters")
	fs.StringVar(&o.hocrDir, "hocr-dir", "", "Directory of page_NNNN.hocr files")
	fs.IntVar(&o.hocrDPI, "hocr-dpi", 300, "DPI of the hOCR coordinates")
	fs.BoolVar(&o.debug, "debug", false, "Check stage post-conditions")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	o.set = map[string]bool{}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	if o.detections == "" {
		return nil, errors.New("must provide -detections path")
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

func (o *options) overrides() service.RefineOverrides {
	ov := service.RefineOverrides{
		Policy:    o.policy,
		MergeMode: o.mergeMode,
		Captions:  o.captions,
	}
	if o.set["merge-threshold"] {
		t := o.mergeThreshold
		ov.MergeThreshold = &t
	}
	return ov
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return exitFailure
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	level := cfg.Log.Level
	if !opts.debug && level == "debug" {
		level = "info"
	}
	log, err := logger.Init(level, "console")
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	defer logger.Sync(log)

	doc, err := detections.Load(opts.detections)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to read detections: %v\n", err)
		return exitFailure
	}
	if opts.pdf != "" {
		doc.SourcePath = opts.pdf
	}
	if opts.set["detection-dpi"] {
		doc.DetectionDPI = opts.detectionDPI
		for i := range doc.Pages {
			doc.Pages[i].DetectionDPI = opts.detectionDPI
		}
	}
	detections.ResolveImages(doc, opts.pageImages, opts.imageDPI)

	settings, err := service.SettingsFromConfig(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return exitFailure
	}
	settings.Layout.Debug = settings.Layout.Debug || opts.debug
	settings.ImageDPI = opts.imageDPI

	var captionOracle port.CaptionOracle
	if opts.captions == string(domain.CaptionsVision) || (opts.captions == "" && settings.Captions == domain.CaptionsVision) {
		providers.Register()
		captionOracle, err = oracle.NewChain(&cfg.Oracle, log)
		if err != nil {
			fmt.Fprintf(stderr, "Failed to initialize caption oracle: %v\n", err)
			return exitFailure
		}
	}

	var text port.TextExtractor
	var table port.TableExtractor
	if opts.hocrDir != "" {
		h := extract.NewHOCRExtractor(opts.hocrDir, opts.hocrDPI)
		text, table = h, h
	}

	out := opts.out
	if out == "" {
		out = cfg.Catalog.OutputDir
	}

	layoutSvc := service.NewLayoutService(settings, captionOracle, nil, log)
	catalogSvc := service.NewCatalogService(
		layoutSvc,
		extract.NewDispatcher(text, table, extract.FigureCropper{}, log),
		local.NewSinkFactory(out),
		nil,
		catalog.NewWriter(catalog.Options{Thumbnails: cfg.Catalog.Thumbnails, ThumbnailSize: cfg.Catalog.ThumbnailSize}, log),
		service.CatalogWorkers{PageConcurrency: cfg.Workers.PageConcurrency, PageTimeout: cfg.Workers.PageTimeout},
		settings.DetectionDPI,
		log,
	)

	summary, err := catalogSvc.Build(ctx, &service.BuildCatalogInput{Document: *doc, Overrides: opts.overrides()})
	if err != nil {
		fmt.Fprintf(stderr, "Catalog build failed: %v\n", err)
		if errors.Is(err, domain.ErrTooManyBoxes) || errors.Is(err, domain.ErrInternal) {
			return exitPage
		}
		return exitFailure
	}

	printSummary(stdout, summary)

	code := exitOK
	for _, f := range summary.Failures {
		log.Warn("page skipped", zap.Int("page", f.Page), zap.Error(f.Err))
		if errors.Is(f.Err, domain.ErrTooManyBoxes) || errors.Is(f.Err, domain.ErrInternal) {
			code = exitPage
		}
	}
	return code
}

func printSummary(w io.Writer, s *service.CatalogSummary) {
	fmt.Fprintf(w, "Catalog written to %s\n", s.Document.CatalogURI)
	fmt.Fprintf(w, "Pages: %d catalogued, %d skipped\n", len(s.Pages), len(s.Skipped))
	fmt.Fprintf(w, "Elements: %d\n", s.Stats.TotalElements)
	for _, p := range s.Pages {
		layout := "single column"
		if p.TwoColumn {
			layout = "two columns"
		}
		fmt.Fprintf(w, "  page %d: %d boxes, %s\n", p.Page+1, p.Boxes, layout)
	}
	for _, sk := range s.Skipped {
		fmt.Fprintf(w, "  page %d skipped: %s\n", sk.Page+1, sk.Reason)
	}
}
