package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/ewilliams-labs/aidj/internal/app"
	"github.com/ewilliams-labs/aidj/internal/config"
	"github.com/ewilliams-labs/aidj/internal/core/domain"
	"github.com/ewilliams-labs/aidj/internal/core/services"
	"github.com/ewilliams-labs/aidj/internal/logging"
)

var errMissingArgument = errors.New("missing argument")

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	logger *log.Logger
	output io.Writer
	input  io.Reader
	open   func(ctx context.Context, cmd *cli.Command) (*app.App, error)
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Logger *log.Logger
	Output io.Writer
	Input  io.Reader
	// Open builds the application for a command. Tests replace it.
	Open func(ctx context.Context, cmd *cli.Command) (*app.App, error)
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = logging.New(os.Stderr, "info", "text")
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	r := &Runner{
		logger: opts.Logger,
		output: opts.Output,
		input:  opts.Input,
		open:   opts.Open,
	}
	if r.open == nil {
		r.open = r.openApp
	}
	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		generateCommand, imageCommand, batchCommand, chatCommand, historyCommand, askCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// openApp loads configuration and wires the services. The logger is rebuilt
// from the configured level and format.
func (r *Runner) openApp(ctx context.Context, cmd *cli.Command) (*app.App, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if level := cmd.String("log-level"); level != "" {
		cfg.Log.Level = level
	}
	r.logger = logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return app.New(ctx, cfg, r.logger)
}

func (r *Runner) closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		r.logger.Warn("close failed", "err", err)
	}
}

func tokenSource(token string) oauth2.TokenSource {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

func desiredCount(cmd *cli.Command, a *app.App) int {
	if n := cmd.Int("limit"); n != 0 {
		return n
	}
	return a.Config.Pipeline.DefaultLimit
}

func argText(cmd *cli.Command) string {
	return strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
}

// readPrompts returns the non-empty lines of rd, skipping # comments.
func readPrompts(rd io.Reader) ([]string, error) {
	var prompts []string
	sc := bufio.NewScanner(rd)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompts: %w", err)
	}
	return prompts, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) {
	fmt.Fprintf(r.output, format, args...)
}

func (r *Runner) writePlaylist(out services.GenerateOutput) {
	r.writePlain("%s\n", styles.title.Render(out.Name))
	if out.PlaylistURL != "" {
		r.writePlain("%s %s\n", styles.ok.Render("Created"), out.PlaylistURL)
	} else {
		r.writePlain("%s\n", styles.warn.Render("Dry run: nothing published"))
	}
	for i, t := range out.Tracks {
		r.writePlain("%3d. %s - %s\n", i+1, t.Title, t.Artist)
	}
	r.writePlain("%s\n", styles.help.Render(fmt.Sprintf("%d tracks via %s", out.TrackCount, out.ModelID)))
}

// explain prints the suggestions behind a no-match failure before returning it.
func (r *Runner) explain(err error) error {
	var nm *domain.NoMatchesError
	if errors.As(err, &nm) {
		r.writePlain("%s\n", styles.err.Render("No suggested track was found in the catalog."))
		for _, s := range nm.Suggestions {
			r.writePlain("  - %s\n", s)
		}
	}
	return err
}
