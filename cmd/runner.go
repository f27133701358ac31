package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/audiograb/internal/formatter"
	"github.com/desertthunder/audiograb/internal/paths"
	"github.com/desertthunder/audiograb/internal/playlist"
	"github.com/desertthunder/audiograb/internal/process"
	"github.com/desertthunder/audiograb/internal/repositories"
	"github.com/desertthunder/audiograb/internal/services"
	"github.com/desertthunder/audiograb/internal/shared"
	"github.com/desertthunder/audiograb/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	api        *services.APIService
	httpClient *http.Client
	logger     *log.Logger
	logFile    *os.File
	output     io.Writer
	starter    process.Starter
	prefetcher services.Prefetcher
	exit       func(int)
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	API        *services.APIService
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	// Starter and Prefetcher replace the extractor for tests. Nil means yt-dlp.
	Starter    process.Starter
	Prefetcher services.Prefetcher
	Exit       func(int)
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.API == nil {
		opts.API = services.NewAPIService(serverURL(opts.Config), opts.HTTPClient)
	}
	if opts.Exit == nil {
		opts.Exit = os.Exit
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		api:        opts.API,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		starter:    opts.Starter,
		prefetcher: opts.Prefetcher,
		exit:       opts.Exit,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		getCommand, retryCommand, historyCommand, serveCommand, remoteCommand, tuiCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Before applies the global flags: an explicit config file, a log file and the log level.
func (r *Runner) Before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.IsSet("config") {
		path := cmd.String("config")
		config, err := shared.LoadConfig(path)
		if err != nil {
			return ctx, fmt.Errorf("%w: %v", shared.ErrMissingConfig, err)
		}
		r.config = config
		r.configPath = path
		r.api = services.NewAPIService(serverURL(config), r.httpClient)
	}

	if path := cmd.String("log-file"); path != "" {
		logger, f, err := shared.NewFileLogger(path)
		if err != nil {
			return ctx, err
		}
		r.SetLogger(logger)
		r.logFile = f
	}

	level := r.config.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	if err := shared.SetLogLevel(r.logger, level); err != nil {
		return ctx, err
	}
	return ctx, nil
}

// SetLogger replaces the logger used by every command.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// Close releases the log file, if one was opened.
func (r *Runner) Close() {
	if r.logFile != nil {
		r.logFile.Close()
		r.logFile = nil
	}
}

// openHistory opens the history database and runs pending migrations.
func (r *Runner) openHistory() (*repositories.HistoryRepository, func(), error) {
	db, err := shared.OpenHistoryDatabase(r.config.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return repositories.NewHistoryRepository(db), func() { db.Close() }, nil
}

func (r *Runner) defaultPrefetcher(logger *log.Logger) services.Prefetcher {
	ext := r.config.Extractor
	return services.NewChainPrefetcher(logger,
		services.NewCommandPrefetcher(ext, logger),
		services.NewYouTubePrefetcher(ext.PrefetchTimeout(), logger),
	)
}

// newScheduler wires a scheduler from the runner's config. history may be nil.
func (r *Runner) newScheduler(cfg tasks.Config, history tasks.HistoryStore, updates chan<- tasks.ProgressUpdate, logger *log.Logger) *tasks.Scheduler {
	if logger == nil {
		logger = r.logger
	}

	starter := r.starter
	if starter == nil {
		starter = process.NewRunner(logger)
	}
	prefetcher := r.prefetcher
	if prefetcher == nil {
		prefetcher = r.defaultPrefetcher(logger)
	}

	deps := tasks.Deps{
		Starter:    starter,
		Prefetcher: prefetcher,
		History:    history,
		Resolver:   paths.New(shared.WithLogger(logger, "component", "paths")),
		Reconciler: playlist.New(shared.WithLogger(logger, "component", "playlist")),
		Logger:     logger,
		Updates:    updates,
		Exit:       r.exit,
	}
	if cfg.ThumbnailDir != "" {
		deps.Images = formatter.NewImageFetcher(r.config.Thumbnails.RateLimit, nil)
	}
	return tasks.NewScheduler(cfg, deps)
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	output, err := shared.MarshalJSON(data, pretty)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}

func serverURL(config *shared.Config) string {
	return fmt.Sprintf("http://%s:%d", config.Server.Host, config.Server.Port)
}
