package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"

	"evorunner/internal/scape"
	"evorunner/internal/storage"
	"evorunner/pkg/evorunner"
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
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "courses":
		return runCourses(ctx, args[1:])
	case "profiles":
		return runProfiles(ctx, args[1:])
	case "export-genome":
		return runExportGenome(ctx, args[1:])
	case "import-genome":
		return runImportGenome(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type clientFlags struct {
	storeKind     *string
	dbPath        *string
	artifactsDir  *string
	exportsDir    *string
	telemetryAddr *string
	verbose       *bool
}

func addClientFlags(fs *flag.FlagSet) clientFlags {
	return clientFlags{
		storeKind:     fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath:        fs.String("db-path", "evorunner.db", "sqlite database path"),
		artifactsDir:  fs.String("artifacts-dir", "artifacts", "run artifacts directory"),
		exportsDir:    fs.String("exports-dir", "exports", "genome exports directory"),
		telemetryAddr: fs.String("telemetry-addr", "", "websocket telemetry listen address (empty disables)"),
		verbose:       fs.Bool("v", false, "verbose logging"),
	}
}

func (f clientFlags) newClient() (*evorunner.Client, error) {
	level := slog.LevelWarn
	if *f.verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return evorunner.New(evorunner.Options{
		StoreKind:     *f.storeKind,
		DBPath:        *f.dbPath,
		ArtifactsDir:  *f.artifactsDir,
		ExportsDir:    *f.exportsDir,
		TelemetryAddr: *f.telemetryAddr,
		Logger:        logger,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := client.Start(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *cf.storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	cf := addClientFlags(fs)
	configPath := fs.String("config", "", "JSON run config path")
	profilesPath := fs.String("profiles", "", "INI profiles file path")
	profileName := fs.String("profile", "", "profile name inside -profiles")
	course := fs.String("course", "", "course name")
	population := fs.Int("population", 0, "population size")
	generations := fs.Int("generations", 0, "generations to run")
	eliteCount := fs.Int("elite", 0, "elite count")
	mutationRate := fs.Float64("mutation-rate", 0, "per-weight mutation probability")
	tournamentSize := fs.Int("tournament", 0, "tournament sample size")
	timeLimit := fs.Float64("time-limit", 0, "generation time limit in simulated seconds")
	hidden := fs.String("hidden", "", "comma-separated hidden layer sizes")
	locks := fs.String("locks", "", "comma-separated locked action indices")
	seed := fs.Int64("seed", 0, "rng seed")
	workers := fs.Int("workers", 0, "worker goroutines")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var req evorunner.RunRequest
	if *configPath != "" {
		loaded, err := loadRunRequestFromConfig(*configPath)
		if err != nil {
			return err
		}
		req = loaded
	}
	if *profileName != "" {
		if *profilesPath == "" {
			return fmt.Errorf("-profile requires -profiles")
		}
		loaded, err := loadRunRequestFromProfile(*profilesPath, *profileName)
		if err != nil {
			return err
		}
		req = mergeRunRequest(req, loaded)
	}

	flagReq := evorunner.RunRequest{
		Course:              *course,
		Population:          *population,
		Generations:         *generations,
		EliteCount:          *eliteCount,
		MutationRate:        *mutationRate,
		TournamentSize:      *tournamentSize,
		GenerationTimeLimit: *timeLimit,
		Seed:                *seed,
		Workers:             *workers,
	}
	if *hidden != "" {
		sizes, err := parseIntList(*hidden)
		if err != nil {
			return fmt.Errorf("parse -hidden: %w", err)
		}
		flagReq.HiddenLayers = sizes
	}
	if *locks != "" {
		geneLocks, err := parseLockIndices(*locks)
		if err != nil {
			return fmt.Errorf("parse -locks: %w", err)
		}
		flagReq.GeneLocks = geneLocks
	}
	req = mergeRunRequest(req, flagReq)

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	started := time.Now()
	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run %s finished in %s\n", summary.RunID, time.Since(started).Round(time.Millisecond))
	fmt.Printf("generations: %s\n", humanize.Comma(int64(len(summary.BestByGeneration))))
	fmt.Printf("final best fitness: %.2f\n", summary.FinalBestFitness)
	fmt.Printf("artifacts: %s\n", summary.ArtifactsDir)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	cf := addClientFlags(fs)
	limit := fs.Int("limit", 0, "max entries to show (0 shows all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	runs, err := client.Runs(evorunner.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	table := uitable.New()
	table.MaxColWidth = 48
	table.Wrap = false
	table.AddRow("RUN", "CREATED", "COURSE", "POPULATION", "GENERATIONS", "BEST")
	for _, item := range runs {
		created := item.CreatedAtUTC
		if ts, err := time.Parse(time.RFC3339, item.CreatedAtUTC); err == nil {
			created = humanize.Time(ts)
		}
		table.AddRow(
			item.RunID,
			created,
			item.Course,
			humanize.Comma(int64(item.Population)),
			humanize.Comma(int64(item.Generations)),
			fmt.Sprintf("%.2f", item.FinalBestFitness),
		)
	}
	fmt.Println(table)
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run identifier")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return fmt.Errorf("-run-id is required")
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	history, err := client.FitnessHistory(ctx, *runID)
	if err != nil {
		return err
	}
	for generation, best := range history {
		fmt.Printf("%d\t%.2f\n", generation, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run identifier")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return fmt.Errorf("-run-id is required")
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	diagnostics, err := client.Diagnostics(ctx, *runID)
	if err != nil {
		return err
	}

	table := uitable.New()
	table.MaxColWidth = 24
	table.AddRow("GEN", "BEST", "MEAN", "MIN", "STDDEV", "MEDIAN", "ALIVE", "TIMED OUT", "FORCED")
	for _, d := range diagnostics {
		table.AddRow(
			d.Generation,
			fmt.Sprintf("%.2f", d.BestFitness),
			fmt.Sprintf("%.2f", d.MeanFitness),
			fmt.Sprintf("%.2f", d.MinFitness),
			fmt.Sprintf("%.2f", d.StdDevFitness),
			fmt.Sprintf("%.2f", d.MedianFitness),
			d.AliveCount,
			d.TimedOut,
			d.Forced,
		)
	}
	fmt.Println(table)
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run identifier")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return fmt.Errorf("-run-id is required")
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	top, err := client.TopGenomes(ctx, *runID)
	if err != nil {
		return err
	}

	table := uitable.New()
	table.MaxColWidth = 48
	table.AddRow("RANK", "FITNESS", "GENOME", "TOPOLOGY")
	for _, record := range top {
		table.AddRow(
			record.Rank,
			fmt.Sprintf("%.2f", record.Fitness),
			record.Genome.ID,
			formatTopology(record.Genome.LayerSizes),
		)
	}
	fmt.Println(table)
	return nil
}

func runCourses(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("courses", flag.ContinueOnError)
	cf := addClientFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	courses, err := client.Courses(ctx)
	if err != nil {
		return err
	}

	table := uitable.New()
	table.MaxColWidth = 56
	table.AddRow("COURSE", "BEST", "DESCRIPTION")
	for _, item := range courses {
		table.AddRow(item.Name, fmt.Sprintf("%.2f", item.BestFitness), item.Description)
	}
	fmt.Println(table)
	return nil
}

func runProfiles(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("profiles", flag.ContinueOnError)
	path := fs.String("profiles", "", "INI profiles file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-profiles is required")
	}

	names, err := listProfiles(*path)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

func runExportGenome(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export-genome", flag.ContinueOnError)
	cf := addClientFlags(fs)
	runID := fs.String("run-id", "", "run identifier")
	latest := fs.Bool("latest", false, "export the most recent run")
	outDir := fs.String("out", "", "output directory (defaults to -exports-dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	summary, err := client.ExportGenome(ctx, evorunner.ExportRequest{
		RunID:  *runID,
		Latest: *latest,
		OutDir: *outDir,
	})
	if err != nil {
		return err
	}
	fmt.Printf("exported best genome of %s to %s\n", summary.RunID, summary.Path)
	return nil
}

func runImportGenome(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import-genome", flag.ContinueOnError)
	cf := addClientFlags(fs)
	path := fs.String("path", "", "genome JSON file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("-path is required")
	}

	client, err := cf.newClient()
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	genome, err := client.ImportGenome(ctx, *path)
	if err != nil {
		return err
	}
	fmt.Printf("imported genome %s topology=%s\n", genome.ID, formatTopology(genome.LayerSizes))
	return nil
}

func parseIntList(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	out := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// parseLockIndices turns a comma-separated action index list into one lock
// flag per corridor action.
func parseLockIndices(value string) ([]bool, error) {
	indices, err := parseIntList(value)
	if err != nil {
		return nil, err
	}

	locks := make([]bool, scape.ActionCount)
	for _, idx := range indices {
		if idx < 0 || idx >= len(locks) {
			return nil, fmt.Errorf("action index must be in [0, %d), got %d", len(locks), idx)
		}
		locks[idx] = true
	}
	return locks, nil
}

func formatTopology(layerSizes []int) string {
	parts := make([]string, len(layerSizes))
	for i, size := range layerSizes {
		parts[i] = strconv.Itoa(size)
	}
	return strings.Join(parts, "-")
}
