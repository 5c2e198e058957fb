package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/malsync/internal/cache"
	"github.com/desertthunder/malsync/internal/models"
	"github.com/desertthunder/malsync/internal/repositories"
	"github.com/desertthunder/malsync/internal/services"
	"github.com/desertthunder/malsync/internal/shared"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	remote     services.Service
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
	now        func() time.Time
	lifecycle  *cache.Lifecycle
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Remote     services.Service // built from the [remote] config section when nil
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
	Now        func() time.Time
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
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		remote:     opts.Remote,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
		now:        opts.Now,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, statusCommand, migrateCommand, syncCommand, listCommand, editCommand, exportCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig replaces the runner's config with the file named by --config,
// when that file exists. A missing file keeps the current config.
func (r *Runner) loadConfig(cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" || path == r.configPath {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using current settings", "path", path)
		return nil
	}
	config, err := shared.LoadConfig(path)
	if err != nil {
		return err
	}
	r.config = config
	r.configPath = path
	shared.SetLogLevel(r.logger, config.Log.ParsedLevel())
	return nil
}

// store opens the cache on first use. Pending schema steps run before the
// store is returned.
func (r *Runner) store(ctx context.Context) (*repositories.Store, error) {
	if r.lifecycle == nil {
		r.lifecycle = cache.New(cache.OptionsFromConfig(r.config, r.logger))
	}
	store, err := r.lifecycle.Open(ctx)
	if err != nil {
		return nil, err
	}
	return store.WithClock(r.now), nil
}

// service returns the injected remote, or a client built from the config.
func (r *Runner) service() (services.Service, error) {
	if r.remote != nil {
		return r.remote, nil
	}
	client, err := services.NewClient(r.config.Remote, nil, r.logger)
	if err != nil {
		return nil, err
	}
	r.remote = client
	return client, nil
}

// Close releases the cache, if it was opened.
func (r *Runner) Close() error {
	if r.lifecycle == nil {
		return nil
	}
	return r.lifecycle.Close()
}

func parseKindFlag(cmd *cli.Command) (models.Kind, error) {
	kind, err := models.ParseKind(cmd.String("kind"))
	if err != nil {
		return "", fmt.Errorf("--kind: %w", err)
	}
	return kind, nil
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
	r.writePlain("%v\n", styles.Title(title))
	r.writePlain("═══════════════════════════════════════\n")
}
