// Package main implements the pipeline-runner CLI tool for running the
// enrichment and training jobs directly, bypassing the Lambda shims and the
// training queue.
//
// This tool is intended for local development, backfilling artifacts and
// comparing model families on the same dataset.
//
// Usage:
//
//	go run ./cmd/tools/pipeline-runner --plant=wind
//	go run ./cmd/tools/pipeline-runner --plant=solar --mode=training --unzip=solar_2025
//	go run ./cmd/tools/pipeline-runner --plant=wind --skip-enrich --models=linear_regression,xgboost,mlp
//	go run ./cmd/tools/pipeline-runner --plant=wind --history=10
//	go run ./cmd/tools/pipeline-runner --list-models
//
// Configuration comes from the environment (or a .env file) exactly as for
// the Lambdas. Training always runs in-process, one model at a time.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"capfactor/internal/artifacts"
	"capfactor/internal/config"
	"capfactor/internal/db"
	"capfactor/internal/jobs"
	"capfactor/internal/logging"
	"capfactor/internal/types"
)

var modelDescriptions = map[types.ModelKind]string{
	types.ModelLinearRegression: "Ordinary least squares on all features",
	types.ModelRandomForest:     "100 bagged regression trees, mean of leaves",
	types.ModelXGBoost:          "Gradient boosted trees with 5-fold CV and early stopping",
	types.ModelMLP:              "One hidden layer of 100 ReLU units trained with Adam",
}

func main() {
	plantFlag := flag.String("plant", "", "Plant type to process (wind or solar)")
	modeFlag := flag.String("mode", "all", "Enrichment mode: training, geography or all")
	modelsFlag := flag.String("models", "", "Comma-separated model families to train (default: TRAINING_MODELS)")
	unzipFlag := flag.String("unzip", "", "Extract <ARTIFACT_ARCHIVE_DIR>/<name>.zip into ARTIFACT_DIR before running")
	skipEnrichFlag := flag.Bool("skip-enrich", false, "Train on existing artifacts without enriching")
	skipTrainFlag := flag.Bool("skip-train", false, "Enrich only")
	listFlag := flag.Bool("list-models", false, "List all model families and exit")
	historyFlag := flag.Int("history", 0, "Print the N most recent model runs of --plant and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pipeline-runner [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Run enrichment and training locally, bypassing Lambda and SQS.\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *listFlag {
		printModels()
		return
	}

	if *plantFlag == "" {
		fmt.Fprintf(os.Stderr, "error: --plant is required\n\n")
		flag.Usage()
		os.Exit(1)
	}
	plant, err := types.ParsePlantType(*plantFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	mode, err := jobs.ParseMode(*modeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(config.NewEnvVarProvider())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: loading configuration: %v\n", err)
		os.Exit(1)
	}
	// The runner trains in-process, so queued requests would run twice.
	cfg.AWS.TrainingQueueURL = ""
	logger := logging.New(cfg)

	names := cfg.Training.Models
	if *modelsFlag != "" {
		names = strings.Split(*modelsFlag, ",")
	}
	models, err := jobs.ParseModels(names)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
		printModels()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *historyFlag > 0 {
		if err := history(ctx, cfg, logger, plant, *historyFlag); err != nil {
			logger.Error("listing model runs failed", "plant_type", string(plant), "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, logger, runOptions{
		plant:      plant,
		mode:       mode,
		models:     models,
		unzip:      *unzipFlag,
		skipEnrich: *skipEnrichFlag,
		skipTrain:  *skipTrainFlag,
	}); err != nil {
		logger.Error("pipeline failed", "plant_type", string(plant), "error", err)
		os.Exit(1)
	}
}

type runOptions struct {
	plant      types.PlantType
	mode       jobs.Mode
	models     []types.ModelKind
	unzip      string
	skipEnrich bool
	skipTrain  bool
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts runOptions) error {
	if opts.unzip != "" {
		files, err := artifacts.Unzip(cfg.Artifacts.ArchiveDir, opts.unzip, cfg.Artifacts.Dir)
		if err != nil {
			return err
		}
		logger.Info("archive extracted", "archive", opts.unzip, "files", len(files))
	}

	deps, err := jobs.NewDeps(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	runID := ""
	if !opts.skipEnrich {
		enricher, err := deps.Enricher()
		if err != nil {
			return err
		}
		result, err := enricher.Run(ctx, jobs.EnrichRequest{PlantType: opts.plant, Mode: opts.mode})
		if err != nil {
			return fmt.Errorf("enrichment: %w", err)
		}
		runID = result.RunID
		logger.Info("enrichment complete", "run_id", runID, "artifacts", result.Artifacts)
	}

	if opts.skipTrain || (opts.mode != jobs.ModeAll && !opts.skipEnrich) {
		return nil
	}

	trainer, err := deps.Trainer(ctx)
	if err != nil {
		return err
	}
	for _, model := range opts.models {
		report, err := trainer.Train(ctx, types.TrainingRequest{
			RunID:              runID,
			PlantType:          opts.plant,
			Model:              model,
			TrainingArtifact:   artifacts.TrainingName(opts.plant),
			PredictionArtifact: artifacts.PredictionName(opts.plant),
		})
		if err != nil {
			return fmt.Errorf("training %s: %w", model, err)
		}
		fmt.Printf("%-18s rmse=%.4f mae=%.4f r2=%.4f clipped=%d\n",
			model, report.Metrics.RMSE, report.Metrics.MAE, report.Metrics.R2, report.ClippedPredictions)
	}
	return nil
}

// runLister reads persisted training outcomes.
type runLister interface {
	ListRecent(ctx context.Context, plantType types.PlantType, limit int) ([]db.ModelRun, error)
}

func history(ctx context.Context, cfg *config.Config, logger *slog.Logger, plant types.PlantType, limit int) error {
	pool, err := db.Connect(ctx, cfg.Database.URL, cfg.Database.ConnectTimeout)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Debug("database connection established")
	return printHistory(ctx, os.Stdout, db.NewModelRunRepository(pool), plant, limit)
}

func printHistory(ctx context.Context, w io.Writer, runs runLister, plant types.PlantType, limit int) error {
	list, err := runs.ListRecent(ctx, plant, limit)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintf(w, "No model runs recorded for %s.\n", plant)
		return nil
	}
	fmt.Fprintf(w, "%-20s %-18s %8s %8s %8s %8s\n", "trained_at", "model", "rmse", "mae", "r2", "cv_rmse")
	for _, r := range list {
		cv := "-"
		if r.Metrics.CVRMSEMean != nil {
			cv = fmt.Sprintf("%.4f", *r.Metrics.CVRMSEMean)
		}
		fmt.Fprintf(w, "%-20s %-18s %8.4f %8.4f %8.4f %8s\n",
			r.TrainedAt.UTC().Format(time.DateTime), r.Model, r.Metrics.RMSE, r.Metrics.MAE, r.Metrics.R2, cv)
	}
	return nil
}

func printModels() {
	fmt.Println("Available model families:")
	for _, k := range types.AllModelKinds() {
		fmt.Printf("  %-18s %s\n", k, modelDescriptions[k])
	}
}
