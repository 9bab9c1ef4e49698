package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/wudi/sheetkit/bitmap"
	"github.com/wudi/sheetkit/document"
	"github.com/wudi/sheetkit/export"
	"github.com/wudi/sheetkit/fonts"
	"github.com/wudi/sheetkit/observability"
	"github.com/wudi/sheetkit/page"
	"github.com/wudi/sheetkit/style"
)

const apiBaseEnv = "SHEETKIT_API_BASE"

type options struct {
	input       string
	outPath     string
	stylePath   string
	ratio       int
	format      export.Format
	apiBase     string
	fonts       []fontSpec
	sheets      []string
	highQuality bool
	verbose     bool
}

type fontSpec struct {
	name    string
	regular string
	bold    string
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sheetkit: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "sheetkit: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: sheetkit [flags] <document.json|->\n")
		flag.PrintDefaults()
	}
	out := flag.String("out", "", "Archive path (default: input name with .zip)")
	stylePath := flag.String("style", "", "Style JSON file")
	ratio := flag.Int("ratio", 1, "Pixel ratio: 1, 2 or 3")
	format := flag.String("format", "png", "Page image format: png or webp")
	apiBase := flag.String("api-base", os.Getenv(apiBaseEnv), "Base URL for root-relative image paths (env "+apiBaseEnv+")")
	sheets := flag.String("sheets", "", "Comma separated sheet names to export (default: all)")
	hq := flag.Bool("hq", false, "Use Catmull-Rom image scaling")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Func("font", "Register a font family as name=regular.ttf[,bold.ttf] (repeatable)", func(v string) error {
		spec, err := parseFontSpec(v)
		if err != nil {
			return err
		}
		opts.fonts = append(opts.fonts, spec)
		return nil
	})
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing document path")
	}
	f, err := export.ParseFormat(*format)
	if err != nil {
		return options{}, err
	}
	if *ratio < 1 || *ratio > 3 {
		return options{}, fmt.Errorf("-ratio must be 1, 2 or 3")
	}
	opts.input = flag.Arg(0)
	opts.outPath = *out
	if opts.outPath == "" {
		opts.outPath = defaultOutPath(opts.input)
	}
	opts.stylePath = *stylePath
	opts.ratio = *ratio
	opts.format = f
	opts.apiBase = *apiBase
	opts.highQuality = *hq
	opts.verbose = *verbose
	for _, name := range strings.Split(*sheets, ",") {
		if name = strings.TrimSpace(name); name != "" {
			opts.sheets = append(opts.sheets, name)
		}
	}
	return opts, nil
}

func parseFontSpec(v string) (fontSpec, error) {
	name, files, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(name) == "" || files == "" {
		return fontSpec{}, fmt.Errorf("invalid -font %q, want name=regular.ttf[,bold.ttf]", v)
	}
	regular, bold, _ := strings.Cut(files, ",")
	return fontSpec{name: strings.TrimSpace(name), regular: regular, bold: bold}, nil
}

func defaultOutPath(input string) string {
	if input == "-" {
		return "sheetkit-export.zip"
	}
	return strings.TrimSuffix(input, filepath.Ext(input)) + ".zip"
}

func run(opts options) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if opts.verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	log := observability.NewLogrus(logger)

	wb, err := readWorkbook(opts.input)
	if err != nil {
		return err
	}
	for _, name := range wb.Skipped {
		log.Warn("sheet skipped by parser", observability.String("sheet", name))
	}
	sheets, err := selectSheets(wb, opts.sheets)
	if err != nil {
		return err
	}

	st := style.Default()
	if opts.stylePath != "" {
		f, err := os.Open(opts.stylePath)
		if err != nil {
			return fmt.Errorf("open style: %w", err)
		}
		st, err = style.Load(f)
		f.Close()
		if err != nil {
			return err
		}
	}

	reg := fonts.Default()
	for _, spec := range opts.fonts {
		if err := registerFont(reg, spec); err != nil {
			return err
		}
	}

	cache := bitmap.New(bitmap.WithAPIBase(opts.apiBase), bitmap.WithLogger(log))
	renderer := page.NewRenderer(
		page.WithImageCache(cache),
		page.WithFonts(reg),
		page.WithLogger(log),
	)
	pipeline := export.NewPipeline(renderer, export.WithLogger(log))

	last := ""
	tracker := export.NewTracker(export.WithOnChange(func(s export.Status) {
		if label := s.Label(); label != "" && label != last {
			last = label
			fmt.Fprintln(os.Stderr, label)
		}
	}))
	err = pipeline.Export(ctx, sheets, st, export.FileDestination{Path: opts.outPath}, export.Options{
		PixelRatio:  opts.ratio,
		Format:      opts.format,
		HighQuality: opts.highQuality,
	}, tracker.Observe)
	if err != nil {
		tracker.Fail(err)
		return err
	}
	fmt.Fprintf(os.Stdout, "%s\n", opts.outPath)
	return nil
}

func readWorkbook(path string) (*document.Workbook, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open document: %w", err)
		}
		defer f.Close()
		r = f
	}
	wb, err := document.DecodeWorkbook(r)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return wb, nil
}

func selectSheets(wb *document.Workbook, names []string) ([]document.Sheet, error) {
	if len(names) == 0 {
		return wb.Sheets, nil
	}
	out := make([]document.Sheet, 0, len(names))
	for _, name := range names {
		doc, ok := wb.Sheet(name)
		if !ok {
			return nil, fmt.Errorf("no sheet named %q", name)
		}
		out = append(out, document.Sheet{Name: name, Document: doc})
	}
	return out, nil
}

func registerFont(reg *fonts.Registry, spec fontSpec) error {
	regular, err := os.ReadFile(spec.regular)
	if err != nil {
		return fmt.Errorf("font %s: %w", spec.name, err)
	}
	var bold []byte
	if spec.bold != "" {
		if bold, err = os.ReadFile(spec.bold); err != nil {
			return fmt.Errorf("font %s: %w", spec.name, err)
		}
	}
	if err := reg.Register(spec.name, regular, bold); err != nil {
		return fmt.Errorf("font %s: %w", spec.name, err)
	}
	return nil
}
