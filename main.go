package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/TFMV/sitegraph/config"
	"github.com/TFMV/sitegraph/driver"
	"github.com/TFMV/sitegraph/ingest"
	"github.com/TFMV/sitegraph/logging"
	"github.com/TFMV/sitegraph/metrics"
	"github.com/TFMV/sitegraph/models"
	"github.com/TFMV/sitegraph/physics"
	"github.com/TFMV/sitegraph/render"
	"github.com/TFMV/sitegraph/server"
	"github.com/TFMV/sitegraph/sitegraph"
	"github.com/TFMV/sitegraph/store"
	"github.com/TFMV/sitegraph/tui"
)

// Configuration represents the command-line settings. Flags that are set
// override the config file.
type Configuration struct {
	Mode       string
	ConfigFile string
	DataFile   string
	OutputFile string
	Addr       string
	Width      float64
	Height     float64
	Steps      int
	Resume     string
	Graph      string
	Seed       int64
	Workers    int
	Placement  string
	StorePath  string
	Timestamp  bool
	DebugMode  bool
}

func main() {
	// Create a context that can be canceled on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Println("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	if err := run(ctx, parseConfig()); err != nil {
		cancel()
		log.Fatal(err)
	}
}

// run executes the selected mode. Deferred cleanup always runs before main
// exits.
func run(ctx context.Context, flags *Configuration) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, closeLog, err := newLogger(flags, cfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	switch flags.Mode {
	case "crawl":
		if err := crawl(ctx, flags, logger); err != nil {
			return fmt.Errorf("crawl failed: %w", err)
		}
		return nil
	case "config":
		if err := cfg.Save(flags.OutputFile); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		log.Printf("Configuration saved to %s", flags.OutputFile)
		return nil
	}

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.New(cfg.Store.Path)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer st.Close()
	}

	switch flags.Mode {
	case "list":
		return listGraphs(ctx, st, os.Stdout)
	case "delete":
		if err := st.DeleteGraph(ctx, flags.Graph); err != nil {
			return err
		}
		log.Printf("Deleted graph %s", flags.Graph)
		return nil
	}

	graph, labels, startStep, err := loadGraph(ctx, flags, cfg, st, logger)
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}

	layout, err := physics.NewForceDirectedLayout(cfg.Layout.Params(), cfg.Layout.Workers)
	if err != nil {
		return fmt.Errorf("invalid layout parameters: %w", err)
	}

	reg := metrics.DefaultRegistry()
	opts := []driver.Option{
		driver.WithLabels(labels),
		driver.WithTick(cfg.Driver.Tick.Duration()),
		driver.WithMaxSteps(cfg.Driver.MaxSteps),
		driver.WithStartStep(startStep),
		driver.WithMetrics(reg),
		driver.WithLogger(logger),
	}
	if st != nil {
		opts = append(opts,
			driver.WithCheckpoints(st, cfg.Driver.CheckpointEvery),
			driver.WithRetention(cfg.Store.Keep))
	}
	d, err := driver.New(graph, layout, opts...)
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}

	switch flags.Mode {
	case "serve", "server":
		err = serve(ctx, d, reg, cfg.Server.Addr, logger)
	case "tui":
		err = runTUI(ctx, d)
	default:
		err = renderOutput(ctx, d, flags)
	}
	if err != nil {
		return fmt.Errorf("%s failed: %w", flags.Mode, err)
	}
	return nil
}

// parseConfig parses command-line flags and returns a Configuration object
func parseConfig() *Configuration {
	config := &Configuration{}

	// Basic options
	flag.StringVar(&config.Mode, "mode", "svg", "Mode: svg, ascii, json, dot, echarts, serve, tui, crawl, list, delete, config")
	flag.StringVar(&config.ConfigFile, "config", "", "Path to config file (defaults to the usual search path)")
	flag.StringVar(&config.DataFile, "data", "", "Graph file (JSON, YAML, CSV, log) or a site directory to crawl")
	flag.StringVar(&config.OutputFile, "output", "", "Path to output file (defaults to 'output.[format]')")
	flag.StringVar(&config.Addr, "addr", "", "Listen address for serve mode")

	// Visualization options
	flag.Float64Var(&config.Width, "width", 800.0, "Width of the visualization")
	flag.Float64Var(&config.Height, "height", 800.0, "Height of the visualization")
	flag.BoolVar(&config.Timestamp, "timestamp", false, "Include timestamp in visualization")

	// Layout options
	flag.IntVar(&config.Steps, "steps", 1000, "Layout steps to run before rendering")
	flag.StringVar(&config.Resume, "resume", "", "Resume the stored graph with this ID")
	flag.Int64Var(&config.Seed, "seed", 0, "Seed for the initial placement (0 seeds from the clock)")
	flag.IntVar(&config.Workers, "workers", 0, "Goroutines used for repulsion")
	flag.StringVar(&config.Placement, "placement", "", "Initial placement: uniform or noise")
	flag.StringVar(&config.StorePath, "store", "", "SQLite checkpoint database")
	flag.StringVar(&config.Graph, "graph", "", "Stored graph ID for delete mode")

	// Advanced options
	flag.BoolVar(&config.DebugMode, "debug", false, "Enable debug logging")

	flag.Parse()

	switch config.Mode {
	case "list", "config":
	case "delete":
		if config.Graph == "" {
			fmt.Println("Please provide the graph to delete using -graph")
			flag.Usage()
			os.Exit(1)
		}
	default:
		if config.DataFile == "" && config.Resume == "" {
			fmt.Println("Please provide a data file or site directory using -data, or -resume a stored graph")
			flag.Usage()
			os.Exit(1)
		}
	}

	if config.OutputFile == "" {
		switch config.Mode {
		case "crawl":
			config.OutputFile = "sitegraph.json"
		case "config":
			config.OutputFile = "sitegraph.yaml"
		case "echarts":
			config.OutputFile = "output.html"
		case "ascii":
			config.OutputFile = "output.txt"
		default:
			config.OutputFile = "output." + config.Mode
		}
	}

	return config
}

// loadConfig reads the config file and applies flags that were set
func loadConfig(flags *Configuration) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.ConfigFile != "" {
		cfg, _, err = config.LoadFromPath(flags.ConfigFile)
	} else {
		cfg, _, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = flags.Addr
		case "seed":
			cfg.Layout.Seed = flags.Seed
		case "workers":
			cfg.Layout.Workers = flags.Workers
		case "placement":
			cfg.Layout.Placement = flags.Placement
		case "store":
			cfg.Store.Path = flags.StorePath
		case "debug":
			if flags.DebugMode {
				cfg.Log.Level = "debug"
			}
		}
	})
	needsStore := flags.Resume != "" || flags.Mode == "list" || flags.Mode == "delete"
	if needsStore && cfg.Store.Path == "" {
		return nil, errors.New("-resume, list and delete need a store path (-store or store.path)")
	}
	return cfg, cfg.Validate()
}

// newLogger logs to stderr, except in tui mode where the terminal belongs
// to the viewer; there debug logs go to sitegraph.log.
func newLogger(flags *Configuration, cfg *config.Config) (*slog.Logger, func(), error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}
	if flags.Mode != "tui" {
		return logging.NewFormat(os.Stderr, cfg.Log.Format, level), func() {}, nil
	}
	if !flags.DebugMode {
		return logging.Discard(), func() {}, nil
	}
	f, err := os.OpenFile("sitegraph.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return logging.NewFormat(f, cfg.Log.Format, level), func() { f.Close() }, nil
}

// listGraphs prints the stored graphs, newest first
func listGraphs(ctx context.Context, st *store.Store, w io.Writer) error {
	infos, err := st.ListGraphs(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNODES\tEDGES\tLAST STEP\tCREATED")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n",
			info.ID, info.NodeCount, info.EdgeCount, info.LastStep, info.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// crawl writes the link graph of a generated site
func crawl(ctx context.Context, flags *Configuration, logger *slog.Logger) error {
	doc, err := sitegraph.NewCrawler(logger).Crawl(ctx, flags.DataFile)
	if err != nil {
		return err
	}
	if err := doc.WriteFile(flags.OutputFile); err != nil {
		return err
	}
	logger.Info("wrote site graph", "output", flags.OutputFile)
	return nil
}

// loadGraph resumes a stored graph or builds and places a new one
func loadGraph(ctx context.Context, flags *Configuration, cfg *config.Config, st *store.Store, logger *slog.Logger) (*models.Graph, []string, int, error) {
	sampler := models.NewSampler(cfg.Layout.Placement, cfg.Layout.EffectiveSeed())

	if flags.Resume != "" {
		cp, err := st.LoadGraph(ctx, flags.Resume)
		if err != nil {
			return nil, nil, 0, err
		}
		if cp.Graph.State() == models.Unplaced {
			if err := cp.Graph.Randomize(cfg.Layout.Margin, sampler); err != nil {
				return nil, nil, 0, err
			}
		}
		logger.Info("resumed graph", "graph", cp.Graph.ID, "step", cp.Step)
		return cp.Graph, cp.Labels, cp.Step, nil
	}

	desc, err := describe(ctx, flags.DataFile, logger)
	if err != nil {
		return nil, nil, 0, err
	}
	g, err := models.BuildFromDescription(desc)
	if err != nil {
		return nil, nil, 0, err
	}
	if err := g.Randomize(cfg.Layout.Margin, sampler); err != nil {
		return nil, nil, 0, err
	}
	logger.Info("loaded graph", "graph", g.ID, "nodes", g.NodeCount(), "edges", g.EdgeCount(),
		"placement", cfg.Layout.Placement)
	return g, desc.Nodes, 0, nil
}

// describe reads a graph file, or crawls path when it is a directory
func describe(ctx context.Context, path string, logger *slog.Logger) (*models.Description, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return ingest.ProcessFile(path)
	}
	doc, err := sitegraph.NewCrawler(logger).Crawl(ctx, path)
	if err != nil {
		return nil, err
	}
	return doc.Description()
}

// serve runs the layout and the web server until ctx is cancelled
func serve(ctx context.Context, d *driver.Driver, reg *metrics.Registry, addr string, logger *slog.Logger) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return d.Run(ctx)
	})
	eg.Go(func() error {
		return server.New(d, reg, logger).Start(ctx, addr)
	})
	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// runTUI runs the layout behind the terminal viewer until the user quits
func runTUI(ctx context.Context, d *driver.Driver) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- d.Run(ctx) }()

	err := tui.Run(ctx, d)
	cancel()
	if rerr := <-runErr; rerr != nil && !errors.Is(rerr, context.Canceled) {
		return rerr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// renderOutput runs the requested steps and renders the final layout
func renderOutput(ctx context.Context, d *driver.Driver, flags *Configuration) error {
	renderer, err := render.GetRenderer(flags.Mode)
	if err != nil {
		return err
	}

	if err := d.RunSteps(ctx, flags.Steps); err != nil {
		return fmt.Errorf("layout: %w", err)
	}

	options := render.NewDefaultOptions(strings.ToLower(flags.Mode))
	options.Width = flags.Width
	options.Height = flags.Height
	options.Timestamp = flags.Timestamp

	output, err := renderer.Render(d.Scene(), options)
	if err != nil {
		return fmt.Errorf("rendering failed: %w", err)
	}
	if err := os.WriteFile(flags.OutputFile, output, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Printf("Processing complete. Output saved to %s", flags.OutputFile)
	return nil
}
