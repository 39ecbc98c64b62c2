package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/signatlas/signrag/internal/bootstrap"
	"github.com/signatlas/signrag/internal/config"
	"github.com/signatlas/signrag/internal/core/domain"
	"github.com/signatlas/signrag/internal/infrastructure/rawdata"
	"github.com/signatlas/signrag/internal/observability/logging"
)

const usage = `usage: signrag <command> [flags]

commands:
  ingest   validate raw images and descriptions into the corpus catalog
  index    embed the catalogued corpus and build the vector index
  query    ask a question against the grounded index
  stats    print corpus and index statistics
  eval     score the pipeline against a labeled sample set
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg := config.Load()
	logger := logging.NewJSONLogger("signrag", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		fatal("bootstrap: %v", err)
	}
	defer app.Close()

	switch os.Args[1] {
	case "ingest":
		runIngest(ctx, app, os.Args[2:])
	case "index":
		runIndex(ctx, app)
	case "query":
		runQuery(ctx, app, os.Args[2:])
	case "stats":
		runStats(ctx, app)
	case "eval":
		runEval(ctx, app, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func runIngest(ctx context.Context, app *bootstrap.App, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	imagesDir := fs.String("images", app.Config.ImagesDir, "directory of per-class image folders")
	descriptions := fs.String("descriptions", app.Config.DescriptionsPath, "path to the descriptions JSON")
	publish := fs.Bool("publish", false, "publish a corpus-built event after saving")
	_ = fs.Parse(args)

	images, err := rawdata.LoadImages(*imagesDir)
	if err != nil {
		fatal("load images: %v", err)
	}
	descs, err := rawdata.LoadDescriptions(*descriptions)
	if err != nil {
		fatal("load descriptions: %v", err)
	}

	corpus, report, err := app.Validator.Validate(ctx, images, descs)
	if err != nil {
		fatal("validate corpus: %v", err)
	}
	if err := app.Catalog.SaveCorpus(ctx, corpus); err != nil {
		fatal("save catalog: %v", err)
	}

	if *publish {
		queue, err := app.ConnectQueue()
		if err != nil {
			fatal("connect queue: %v", err)
		}
		if err := queue.PublishCorpusBuilt(ctx, corpus.BuiltAt.Format("20060102T150405Z")); err != nil {
			fatal("publish corpus built: %v", err)
		}
	}

	printJSON(report)
}

func runIndex(ctx context.Context, app *bootstrap.App) {
	corpus, err := app.Catalog.LoadCorpus(ctx)
	if err != nil {
		fatal("load catalog: %v", err)
	}
	report, err := app.RebuildIndex(ctx, corpus)
	if err != nil {
		fatal("build index: %v", err)
	}
	printJSON(report)
}

func runQuery(ctx context.Context, app *bootstrap.App, args []string) {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	modality := fs.String("modality", "any", "modality preference: any, image or text")
	topK := fs.Int("top-k", app.Config.TopK, "maximum results to retrieve")
	classes := fs.String("classes", "", "comma-separated class id filter")
	_ = fs.Parse(args)

	text := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if text == "" {
		fatal("query text is required")
	}

	if err := app.RestoreIndex(ctx); err != nil {
		fatal("restore index: %v", err)
	}

	query := domain.Query{
		Text:       text,
		Preference: domain.ModalityPreference(*modality),
		TopK:       *topK,
	}
	if *classes != "" {
		query.Filter = domain.SearchFilter{ClassIDs: strings.Split(*classes, ",")}
	}

	answer, err := app.Queries.Handle(ctx, query)
	if err != nil {
		fatal("query: %v", err)
	}
	printJSON(answer)
}

func runStats(ctx context.Context, app *bootstrap.App) {
	if err := app.RestoreIndex(ctx); err != nil {
		fatal("restore index: %v", err)
	}
	stats, err := app.Queries.Stats(ctx)
	if err != nil {
		fatal("stats: %v", err)
	}
	printJSON(stats)
}

func runEval(ctx context.Context, app *bootstrap.App, args []string) {
	fs := flag.NewFlagSet("eval", flag.ExitOnError)
	dataset := fs.String("dataset", "./evaluation/eval_dataset.json", "path to the labeled sample set")
	reportPath := fs.String("report", "", "also write the report JSON to this path")
	_ = fs.Parse(args)

	samples, err := loadEvalSamples(*dataset)
	if err != nil {
		fatal("load eval dataset: %v", err)
	}

	if err := app.RestoreIndex(ctx); err != nil {
		fatal("restore index: %v", err)
	}

	report, err := app.Evaluator.Evaluate(ctx, samples)
	if err != nil {
		fatal("evaluate: %v", err)
	}

	if *reportPath != "" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			fatal("encode report: %v", err)
		}
		if err := os.WriteFile(*reportPath, data, 0o644); err != nil {
			fatal("write report: %v", err)
		}
	}
	printJSON(report)
}

func loadEvalSamples(path string) ([]domain.EvalSample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var dataset struct {
		Samples []domain.EvalSample `json:"samples"`
	}
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return dataset.Samples, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
