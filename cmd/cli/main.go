package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/seldkit/internal/audio"
	"github.com/himanishpuri/seldkit/internal/config"
	"github.com/himanishpuri/seldkit/internal/pipeline"
	"github.com/himanishpuri/seldkit/internal/preview"
	"github.com/himanishpuri/seldkit/pkg/logger"
	"github.com/himanishpuri/seldkit/pkg/seld"
	"github.com/himanishpuri/seldkit/pkg/seld/storage"
)

// Global flags
var (
	dbPath     string
	configPath string
)

func init() {
	flag.StringVar(&dbPath, "db", getEnvOrDefault("SELD_DB_PATH", storage.DefaultDBFile), "Path to the SQLite database file")
	flag.StringVar(&configPath, "config", getEnvOrDefault("SELD_CONFIG", ""), "Feature extraction config (YAML)")
	flag.Usage = printUsage
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func openDB() *storage.DBClient {
	db, err := storage.NewDBClientWithPath(dbPath)
	if err != nil {
		fmt.Printf("❌ Failed to open database: %v\n", err)
		logger.Errorf("Opening %s failed: %v", dbPath, err)
		os.Exit(1)
	}
	return db
}

func main() {
	log := logger.GetLogger()

	printBanner()

	flag.Parse()
	if flag.NArg() < 1 {
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]
	log.Infof("Executing command: %s", command)

	switch command {
	case "build":
		handleBuild(args)
	case "info":
		handleInfo(args)
	case "sample":
		handleSample(args)
	case "list":
		handleList()
	case "delete":
		handleDelete(args)
	case "preview":
		handlePreview(args)
	case "channels":
		handleChannels(args)
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
          _     _ _    _ _
 ___  ___| | __| | | _(_) |_
/ __|/ _ \ |/ _' | |/ / | __|
\__ \  __/ | (_| |   <| | |_
|___/\___|_|\__,_|_|\_\_|\__|

   SELD dataset builder and chunk accessor
`
	fmt.Println(banner)
}

func handleBuild(args []string) {
	log := logger.GetLogger()

	buildCmd := flag.NewFlagSet("build", flag.ExitOnError)
	audioDir := buildCmd.String("audio", "", "Directory of multichannel WAV recordings (required)")
	metaDir := buildCmd.String("meta", "", "Directory of DCASE metadata CSVs (required)")
	name := buildCmd.String("name", "", "Name to store the record under (required)")
	buildCmd.Parse(args)

	if *audioDir == "" || *metaDir == "" || *name == "" {
		fmt.Println("Error: -audio, -meta and -name are required")
		fmt.Println("Usage: seldkit build -audio <dir> -meta <dir> -name <name>")
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("❌ Invalid config: %v\n", err)
		log.Errorf("Loading config failed: %v", err)
		os.Exit(1)
	}

	items, err := pipeline.Discover(*audioDir, *metaDir, log.Named("pipeline"))
	if err != nil {
		fmt.Printf("❌ Failed to scan inputs: %v\n", err)
		log.Errorf("Discover failed: %v", err)
		os.Exit(1)
	}
	if len(items) == 0 {
		fmt.Println("\n📭 No recordings with matching metadata found")
		os.Exit(1)
	}

	builder, err := pipeline.NewBuilder(cfg, log.Named("pipeline"))
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n🎧 Extracting features from %d recording(s)...\n", len(items))
	fmt.Println("   This may take a few moments for large datasets")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	rec, err := builder.Build(ctx, items)
	if err != nil {
		fmt.Printf("\n❌ Failed to build record: %v\n", err)
		log.Errorf("Build failed: %v", err)
		os.Exit(1)
	}

	db := openDB()
	defer db.Close()

	id, err := db.SaveRecord(*name, rec)
	if err != nil {
		fmt.Printf("\n❌ Failed to save record: %v\n", err)
		log.Errorf("SaveRecord failed: %v", err)
		os.Exit(1)
	}

	fmt.Println("\n✅ Successfully built record!")
	fmt.Printf("   ID:        %s\n", id)
	fmt.Printf("   Name:      %s\n", *name)
	fmt.Printf("   Samples:   %d\n", rec.NumSamples())
	fmt.Printf("   Features:  %v\n", rec.Features.Shape())
	fmt.Printf("   Took:      %s\n", time.Since(start).Round(time.Millisecond))
	log.Infof("Stored record %q (%s) with %d samples", *name, id, rec.NumSamples())
}

func handleInfo(args []string) {
	infoCmd := flag.NewFlagSet("info", flag.ExitOnError)
	name := infoCmd.String("name", "", "Record name (required)")
	infoCmd.Parse(args)
	if *name == "" {
		fmt.Println("Usage: seldkit info -name <name>")
		os.Exit(1)
	}

	db := openDB()
	defer db.Close()

	rec, err := db.LoadRecord(*name)
	if err != nil {
		exitLookup(*name, err)
	}

	files := map[string]int{}
	for _, f := range rec.FilenameList {
		files[f]++
	}

	fmt.Printf("\n📦 Record %q\n", *name)
	fmt.Printf("   Samples:            %d\n", rec.NumSamples())
	fmt.Printf("   Files:              %d\n", len(files))
	fmt.Printf("   Features:           %v\n", rec.Features.Shape())
	fmt.Printf("   SED targets:        %v\n", rec.SEDTargets.Shape())
	fmt.Printf("   DOA targets:        %v\n", rec.DOATargets.Shape())
	fmt.Printf("   Feature chunk len:  %d\n", rec.FeatureChunkLen)
	fmt.Printf("   Label chunk len:    %d\n", rec.GTChunkLen)
}

func handleSample(args []string) {
	log := logger.GetLogger()

	sampleCmd := flag.NewFlagSet("sample", flag.ExitOnError)
	name := sampleCmd.String("name", "", "Record name (required)")
	index := sampleCmd.Int("index", 0, "Sample index")
	truncate := sampleCmd.Bool("truncate", false, "Clamp windows that overrun the arrays instead of failing")
	sampleCmd.Parse(args)
	if *name == "" {
		fmt.Println("Usage: seldkit sample -name <name> [-index <i>] [-truncate]")
		os.Exit(1)
	}

	db := openDB()
	defer db.Close()

	rec, err := db.LoadRecord(*name)
	if err != nil {
		exitLookup(*name, err)
	}

	policy := seld.FailFast
	if *truncate {
		policy = seld.Truncate
	}
	ds, err := seld.NewChunkDataset(rec, seld.WithBoundsPolicy(policy), seld.WithLogger(log.Named("seld")))
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	s, err := ds.Get(*index)
	if err != nil {
		fmt.Printf("❌ Failed to read sample %d: %v\n", *index, err)
		log.Errorf("Get(%d) failed: %v", *index, err)
		os.Exit(1)
	}

	active := 0
	for _, v := range s.SED.Data() {
		if v > 0 {
			active++
		}
	}

	fmt.Printf("\n🔎 Sample %d of %d\n", *index, ds.Len())
	fmt.Printf("   File:        %s\n", s.Filename)
	fmt.Printf("   Features:    %v\n", s.Features.Shape())
	fmt.Printf("   SED:         %v (%d active frame-class cells)\n", s.SED.Shape(), active)
	fmt.Printf("   DOA:         %v\n", s.DOA.Shape())
}

func handleList() {
	log := logger.GetLogger()

	db := openDB()
	defer db.Close()

	records, err := db.ListRecords()
	if err != nil {
		fmt.Printf("❌ Failed to list records: %v\n", err)
		log.Errorf("ListRecords failed: %v", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Println("\n📭 No records in database")
		return
	}

	fmt.Printf("\n📚 Found %d record(s):\n\n", len(records))
	for i, r := range records {
		fmt.Printf("%d. %s (ID: %s)\n", i+1, r.Name, r.ID)
		fmt.Printf("   Samples: %d | Features: %s | Created: %s\n",
			r.NumSamples, r.FeatureShape, r.CreatedAt.Format(time.DateTime))
		fmt.Println()
	}
	log.Infof("Listed %d records", len(records))
}

func handleDelete(args []string) {
	log := logger.GetLogger()

	deleteCmd := flag.NewFlagSet("delete", flag.ExitOnError)
	name := deleteCmd.String("name", "", "Record name (required)")
	deleteCmd.Parse(args)
	if *name == "" {
		fmt.Println("Usage: seldkit delete -name <name>")
		os.Exit(1)
	}

	db := openDB()
	defer db.Close()

	r, err := db.GetRecord(*name)
	if err != nil {
		exitLookup(*name, err)
	}
	if err := db.DeleteRecord(*name); err != nil {
		fmt.Printf("❌ Failed to delete record: %v\n", err)
		log.Errorf("DeleteRecord failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ Successfully deleted record:\n")
	fmt.Printf("   ID:      %s\n", r.ID)
	fmt.Printf("   Name:    %s\n", r.Name)
	fmt.Printf("   Samples: %d\n", r.NumSamples)
	log.Infof("Deleted record %q (%s)", r.Name, r.ID)
}

func handlePreview(args []string) {
	log := logger.GetLogger()

	wavPath, flagArgs := splitPositional(args)

	previewCmd := flag.NewFlagSet("preview", flag.ExitOnError)
	channel := previewCmd.Int("channel", 0, "Channel to render")
	outDir := previewCmd.String("out", "spectrograms", "Output directory")
	previewCmd.Parse(flagArgs)

	if wavPath == "" {
		fmt.Println("Usage: seldkit preview <wav_file> [-channel <n>] [-out <dir>]")
		os.Exit(1)
	}

	out, err := preview.RenderChannel(wavPath, *channel, *outDir, preview.DefaultOptions())
	if err != nil {
		fmt.Printf("❌ Failed to render spectrogram: %v\n", err)
		log.Errorf("RenderChannel failed: %v", err)
		os.Exit(1)
	}
	fmt.Printf("✅ Saved spectrogram to %s\n", out)
}

func handleChannels(args []string) {
	log := logger.GetLogger()

	wavPath, flagArgs := splitPositional(args)

	channelsCmd := flag.NewFlagSet("channels", flag.ExitOnError)
	keep := channelsCmd.String("keep", "", "Comma-separated channel indices to keep, in output order (required)")
	out := channelsCmd.String("out", "", "Output WAV path (required)")
	bits := channelsCmd.Int("bits", 16, "Output bit depth: 16, 24 or 32")
	channelsCmd.Parse(flagArgs)

	if wavPath == "" || *keep == "" || *out == "" {
		fmt.Println("Usage: seldkit channels <wav_file> -keep 0,1,2,3 -out <wav_file> [-bits 16|24|32]")
		os.Exit(1)
	}

	var channels []int
	for _, part := range strings.Split(*keep, ",") {
		c, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			fmt.Printf("❌ Invalid channel index %q\n", part)
			os.Exit(1)
		}
		channels = append(channels, c)
	}

	src, err := audio.ReadMultichannel(wavPath)
	if err != nil {
		fmt.Printf("❌ Failed to read %s: %v\n", wavPath, err)
		log.Errorf("ReadMultichannel failed: %v", err)
		os.Exit(1)
	}
	sel, err := src.Select(channels)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	if err := audio.WriteMultichannel(*out, sel, *bits); err != nil {
		fmt.Printf("❌ Failed to write %s: %v\n", *out, err)
		log.Errorf("WriteMultichannel failed: %v", err)
		os.Exit(1)
	}

	fmt.Printf("✅ Wrote %d of %d channels to %s\n", sel.NumChannels(), src.NumChannels(), *out)
	log.Infof("Extracted channels %v of %s into %s", channels, wavPath, *out)
}

// splitPositional separates a leading file argument from the flags after it.
func splitPositional(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func exitLookup(name string, err error) {
	if errors.Is(err, storage.ErrRecordNotFound) {
		fmt.Printf("❌ Record not found: %s\n", name)
	} else {
		fmt.Printf("❌ Failed to load record %q: %v\n", name, err)
	}
	logger.Warnf("Lookup of %q failed: %v", name, err)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("seldkit - SELD dataset builder")
	fmt.Println("\nGlobal Options (before the command):")
	fmt.Println("  -db <path>         Path to SQLite database (env: SELD_DB_PATH, default: seldkit.sqlite3)")
	fmt.Println("  -config <path>     Feature extraction config YAML (env: SELD_CONFIG, default: built-in)")
	fmt.Println("\nUsage:")
	fmt.Println("  seldkit build -audio <dir> -meta <dir> -name <name>")
	fmt.Println("  seldkit info -name <name>")
	fmt.Println("  seldkit sample -name <name> [-index <i>] [-truncate]")
	fmt.Println("  seldkit list")
	fmt.Println("  seldkit delete -name <name>")
	fmt.Println("  seldkit preview <wav_file> [-channel <n>] [-out <dir>]")
	fmt.Println("  seldkit channels <wav_file> -keep 0,1,2,3 -out <wav_file> [-bits 16|24|32]")
	fmt.Println("\nLog level: SELD_LOG_LEVEL=debug|info|warn|error")
}
