package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"

	"github.com/arielsaffer/EF-Activities/internal/storage"
	"github.com/arielsaffer/EF-Activities/pkg/epifilter"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "forecast":
		return runForecast(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "quantiles":
		return runQuantiles(ctx, args[1:])
	case "ensemble":
		return runEnsemble(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: epifilterctl <init|run|forecast|runs|diagnostics|quantiles|ensemble|export> [flags]", msg)
}

func storeFlags(fs *flag.FlagSet) (*string, *string, *bool) {
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "epifilter.db", "sqlite database path")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	return storeKind, dbPath, verbose
}

func newClient(storeKind, dbPath string, verbose bool) (*epifilter.Client, error) {
	if verbose {
		log.SetLevel(log.DebugLevel)
	}
	return epifilter.New(epifilter.Options{StoreKind: storeKind, DBPath: dbPath})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind, dbPath, verbose := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized %s store\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	storeKind, dbPath, verbose := storeFlags(fs)
	configPath := fs.String("config", "", "JSON run configuration file")
	seed := fs.Uint64("seed", 0, "root random seed (overrides config when set)")
	workers := fs.Int("workers", 0, "forecast worker count (overrides config when set)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		return usageError("run requires -config")
	}

	req, err := loadRunRequestFromConfig(*configPath)
	if err != nil {
		return err
	}
	if *seed != 0 {
		req.Seed = *seed
	}
	if *workers > 0 {
		req.Workers = *workers
	}

	client, err := newClient(*storeKind, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %d cycles (%d degenerate)\n", summary.RunID, summary.Cycles, summary.DegenerateCycles)
	fmt.Printf("posterior means: beta=%.6g recovery=%.6g infected=%.1f\n",
		summary.FinalMeanBeta, summary.FinalMeanRecov, summary.FinalMeanInfect)
	return nil
}

func runForecast(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("forecast", flag.ContinueOnError)
	population := fs.Int("population", 10000, "total population N")
	infected := fs.Int("infected", 5, "initial infected I0")
	beta := fs.Float64("beta", 5e-5, "infection-rate coefficient")
	recovery := fs.Float64("recovery", 1.0/7.0, "per-step recovery probability")
	horizon := fs.Int("horizon", 100, "forecast horizon NT")
	ensemble := fs.Int("ensemble", 1, "ensemble size (1 = point forecast)")
	seed := fs.Uint64("seed", 42, "root random seed")
	workers := fs.Int("workers", 4, "forecast worker count")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	client, err := epifilter.New(epifilter.Options{})
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Forecast(ctx, epifilter.ForecastRequest{
		Population:      *population,
		InitialInfected: *infected,
		Beta:            *beta,
		Recovery:        *recovery,
		Horizon:         *horizon,
		EnsembleSize:    *ensemble,
		Seed:            *seed,
		Workers:         *workers,
	})
	if err != nil {
		return err
	}

	fmt.Println("step\tS(2.5/50/97.5)\tI(2.5/50/97.5)\tR(2.5/50/97.5)")
	for step := range summary.Quantiles.Median {
		fmt.Printf("%d\t%.0f/%.0f/%.0f\t%.0f/%.0f/%.0f\t%.0f/%.0f/%.0f\n", step+1,
			summary.Quantiles.Lower[step][0], summary.Quantiles.Median[step][0], summary.Quantiles.Upper[step][0],
			summary.Quantiles.Lower[step][1], summary.Quantiles.Median[step][1], summary.Quantiles.Upper[step][1],
			summary.Quantiles.Lower[step][2], summary.Quantiles.Median[step][2], summary.Quantiles.Upper[step][2])
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	storeKind, dbPath, verbose := storeFlags(fs)
	limit := fs.Int("limit", 20, "maximum runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer client.Close()

	runs, err := client.Runs(ctx, epifilter.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}

	fmt.Println("run\tcreated\tcycles\tensemble\thorizon\tdegenerate")
	for _, run := range runs {
		created := run.CreatedAtUTC
		if t, err := time.Parse(time.RFC3339, run.CreatedAtUTC); err == nil {
			created = humanize.Time(t)
		}
		fmt.Printf("%s\t%s\t%d\t%d\t%d\t%d\n",
			run.ID, created, run.Cycles, run.EnsembleSize, run.Horizon, run.DegenerateCycles)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	storeKind, dbPath, verbose := storeFlags(fs)
	runID := fs.String("run", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer client.Close()

	diagnostics, err := client.Diagnostics(ctx, epifilter.DiagnosticsRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	return printJSON(diagnostics)
}

func runQuantiles(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("quantiles", flag.ContinueOnError)
	storeKind, dbPath, verbose := storeFlags(fs)
	runID := fs.String("run", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer client.Close()

	history, err := client.Quantiles(ctx, epifilter.QuantilesRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	return printJSON(history)
}

func runEnsemble(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("ensemble", flag.ContinueOnError)
	storeKind, dbPath, verbose := storeFlags(fs)
	runID := fs.String("run", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	cycle := fs.Int("cycle", 0, "cycle index")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer client.Close()

	snapshot, err := client.Ensemble(ctx, epifilter.EnsembleRequest{RunID: *runID, Latest: *latest, Cycle: *cycle})
	if err != nil {
		return err
	}
	return printJSON(snapshot)
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	storeKind, dbPath, verbose := storeFlags(fs)
	runID := fs.String("run", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	outDir := fs.String("out", "", "output directory (default exports/)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath, *verbose)
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Export(ctx, epifilter.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported %d files (%s) to %s\n",
		summary.Files, humanize.Bytes(uint64(summary.Bytes)), summary.Directory)
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
