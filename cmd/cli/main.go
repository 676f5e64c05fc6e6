package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"genesift/adapters/excel"
	"genesift/adapters/postgres"
	"genesift/app"
	"genesift/domain/run"
	"genesift/internal"
	"genesift/internal/config"
	"genesift/internal/errors"
	"genesift/internal/testkit"
	"genesift/ports"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// Load environment variables from .env file
	_ = godotenv.Load()
	slog.SetDefault(internal.NewDefaultLogger())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(errors.ExitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "genesift",
		Short:         "Differential expression and classifier selection for labelled expression matrices",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newAnalysisCmd("run", "Run differential expression and classifier selection", app.AllStages()),
		newAnalysisCmd("de", "Run differential expression only", []run.StageName{run.StageDifferentialExpression}),
		newSynthCmd(),
	)
	return rootCmd
}

type analysisFlags struct {
	matrix       string
	labels       string
	xlsx         string
	seed         int64
	trainFrac    float64
	stratify     bool
	folds        int
	fdrAlpha     float64
	locfdrNull   string
	statusColumn string
	workers      int
	noDB         bool
}

func newAnalysisCmd(use, short string, stages []run.StageName) *cobra.Command {
	var f analysisFlags
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `.

Settings come from GENESIFT_* environment variables (optionally from a .env
file); flags override them. Reports go to stdout, to --xlsx when given, and to
Postgres when DATABASE_URL is set.

Example: genesift ` + use + ` --matrix expr.csv --labels labels.csv --xlsx report.xlsx --seed 7`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			applyFlags(cmd, &f, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runAnalysis(cmd.Context(), cmd, cfg, f, stages)
		},
	}

	bindAnalysisFlags(cmd, &f)
	_ = cmd.MarkFlagRequired("matrix")
	_ = cmd.MarkFlagRequired("labels")
	return cmd
}

func bindAnalysisFlags(cmd *cobra.Command, f *analysisFlags) {
	flags := cmd.Flags()
	flags.StringVar(&f.matrix, "matrix", "", "Expression matrix (CSV, TSV or XLSX): id column then one column per feature")
	flags.StringVar(&f.labels, "labels", "", "Label table (CSV, TSV or XLSX): id column and a 0/1 status column")
	flags.StringVar(&f.xlsx, "xlsx", "", "Write the report workbook to this path")
	flags.Int64Var(&f.seed, "seed", 42, "Random seed for the split and the folds")
	flags.Float64Var(&f.trainFrac, "train-fraction", 0.7, "Share of samples in the training split")
	flags.BoolVar(&f.stratify, "stratify", false, "Preserve class proportions in the split")
	flags.IntVar(&f.folds, "folds", 10, "Cross-validation folds")
	flags.Float64Var(&f.fdrAlpha, "fdr-alpha", 0.05, "Benjamini-Hochberg FDR level")
	flags.StringVar(&f.locfdrNull, "locfdr-null", "estimated", "Local fdr null: estimated or theoretical")
	flags.StringVar(&f.statusColumn, "status-column", "status", "Name of the label column")
	flags.IntVar(&f.workers, "workers", 0, "Concurrent workers (0: GOMAXPROCS)")
	flags.BoolVar(&f.noDB, "no-db", false, "Do not store the report in Postgres even if DATABASE_URL is set")
}

// applyFlags copies explicitly set flags over the environment configuration
func applyFlags(cmd *cobra.Command, f *analysisFlags, cfg *config.Config) {
	set := cmd.Flags().Changed
	a := &cfg.Analysis
	if set("seed") {
		a.Seed = f.seed
	}
	if set("train-fraction") {
		a.TrainFraction = f.trainFrac
	}
	if set("stratify") {
		a.Stratify = f.stratify
	}
	if set("folds") {
		a.Folds = f.folds
	}
	if set("fdr-alpha") {
		a.FDRAlpha = f.fdrAlpha
	}
	if set("locfdr-null") {
		a.LocFDRNull = f.locfdrNull
	}
	if set("status-column") {
		a.StatusColumn = f.statusColumn
	}
	if set("workers") && f.workers > 0 {
		a.Workers = f.workers
	}
	if set("xlsx") {
		cfg.Output.XLSXPath = f.xlsx
	}
	if f.noDB {
		cfg.Database.URL = ""
	}
}

func runAnalysis(ctx context.Context, cmd *cobra.Command, cfg *config.Config, f analysisFlags, stages []run.StageName) error {
	logger := internal.NewLogger(os.Stderr, internal.ParseLevel(cfg.LogLevel))

	var sinks []ports.ReportSink
	if cfg.Output.XLSXPath != "" {
		sinks = append(sinks, excel.NewReportWriter(cfg.Output.XLSXPath, logger))
	}
	if cfg.Database.Enabled() {
		db, err := postgres.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		sinks = append(sinks, postgres.NewReportRepository(db, logger))
	}

	reader := excel.NewDataReader(excel.DefaultReaderConfig(), logger)
	svc := app.NewAnalysisService(reader, sinks...)
	rc := app.NewRunContext(cfg.Analysis, logger)

	rep, err := svc.Run(ctx, rc, app.AnalysisRequest{
		MatrixPath: f.matrix,
		LabelsPath: f.labels,
		Stages:     stages,
	})
	if rep != nil {
		printReport(cmd.OutOrStdout(), rep)
	}
	return err
}

func newSynthCmd() *cobra.Command {
	var (
		cfg          = testkit.DefaultExpressionConfig()
		out          string
		statusColumn string
	)
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write a synthetic labelled expression dataset",
		Long: `Write matrix.csv and labels.csv with a known signal: the label is the sign
of the sum of the leading signal features, the rest is noise.

Example: genesift synth --samples 100 --features 20 --out data/`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, labels, err := testkit.NewExpressionGenerator(cfg).Generate()
			if err != nil {
				return errors.InvalidInput(err.Error())
			}
			if err := os.MkdirAll(out, 0o755); err != nil {
				return errors.StorageError("create output directory", err)
			}
			mPath := filepath.Join(out, "matrix.csv")
			lPath := filepath.Join(out, "labels.csv")
			if err := excel.WriteMatrixCSV(mPath, raw); err != nil {
				return errors.StorageError("write matrix", err)
			}
			if err := excel.WriteLabelsCSV(lPath, labels, statusColumn); err != nil {
				return errors.StorageError("write labels", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d x %d) and %s\n", mPath, cfg.Samples, cfg.Features, lPath)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&cfg.Samples, "samples", cfg.Samples, "Number of samples")
	flags.IntVar(&cfg.Features, "features", cfg.Features, "Number of features")
	flags.IntVar(&cfg.SignalFeatures, "signal", cfg.SignalFeatures, "Leading features that carry the label")
	flags.Float64Var(&cfg.SignalSD, "signal-sd", cfg.SignalSD, "Standard deviation of signal features")
	flags.Float64Var(&cfg.NoiseSD, "noise-sd", cfg.NoiseSD, "Standard deviation of noise features")
	flags.Float64Var(&cfg.Margin, "margin", cfg.Margin, "Reject samples this close to the class boundary")
	flags.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	flags.StringVar(&out, "out", ".", "Output directory")
	flags.StringVar(&statusColumn, "status-column", "status", "Name of the label column")
	return cmd
}
