package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/ewilliams-labs/aidj/internal/core/services"
	"github.com/ewilliams-labs/aidj/internal/worker"
)

// Generate runs the prompt pipeline once.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	prompt := argText(cmd)
	if prompt == "" {
		return fmt.Errorf("%w: prompt is required", errMissingArgument)
	}

	a, err := r.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer r.closeApp(a)

	auth := tokenSource(cmd.String("token"))
	dryRun := cmd.Bool("dry-run")
	if auth == nil && !dryRun {
		r.logger.Warn("no Spotify user token, running without publishing")
		dryRun = true
	}

	out, err := a.Orchestrator.Generate(ctx, services.GenerateInput{
		OwnerID:      cmd.String("user"),
		Prompt:       prompt,
		DesiredCount: desiredCount(cmd, a),
		SearchAuth:   auth,
		DryRun:       dryRun,
	})
	if err != nil {
		return r.explain(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(out, true)
	}
	r.writePlaylist(out)
	return nil
}

// Image analyses an image file or URL and builds a playlist from its mood.
func (r *Runner) Image(ctx context.Context, cmd *cli.Command) error {
	url, path := cmd.String("url"), cmd.String("file")
	if url == "" && path == "" {
		return fmt.Errorf("%w: --url or --file is required", errMissingArgument)
	}

	var encoded string
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		encoded = base64.StdEncoding.EncodeToString(data)
	}

	a, err := r.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer r.closeApp(a)

	out, err := a.Images.Generate(ctx, services.ImageInput{
		OwnerID:      cmd.String("user"),
		ImageBase64:  encoded,
		ImageURL:     url,
		DesiredCount: desiredCount(cmd, a),
		SearchAuth:   tokenSource(cmd.String("token")),
	})
	if err != nil {
		return r.explain(err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(out, true)
	}
	r.writePlain("%s %s (%s)\n", styles.help.Render("Mood:"), out.Analysis.Mood, out.Analysis.VisualTheme)
	r.writePlain("%s %s\n", styles.help.Render("Prompt:"), out.GeneratedPrompt)
	r.writePlaylist(out.GenerateOutput)
	return nil
}

type batchLine struct {
	Prompt      string `json:"prompt"`
	Name        string `json:"playlist_name,omitempty"`
	PlaylistURL string `json:"playlist_url,omitempty"`
	TrackCount  int    `json:"tracks_count"`
	Error       string `json:"error,omitempty"`
}

// Batch generates one playlist per prompt line, several at a time.
func (r *Runner) Batch(ctx context.Context, cmd *cli.Command) error {
	var src io.Reader = r.input
	if path := cmd.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open prompt file: %w", err)
		}
		defer f.Close()
		src = f
	}

	prompts, err := readPrompts(src)
	if err != nil {
		return err
	}
	if len(prompts) == 0 {
		return fmt.Errorf("%w: no prompts to run", errMissingArgument)
	}

	a, err := r.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer r.closeApp(a)

	auth := tokenSource(cmd.String("token"))
	dryRun := cmd.Bool("dry-run") || auth == nil
	count := desiredCount(cmd, a)

	inputs := make([]services.GenerateInput, len(prompts))
	for i, p := range prompts {
		inputs[i] = services.GenerateInput{
			OwnerID:      cmd.String("user"),
			Prompt:       p,
			DesiredCount: count,
			SearchAuth:   auth,
			DryRun:       dryRun,
		}
	}

	results := worker.Run(ctx, a.Orchestrator, inputs, cmd.Int("workers"), r.logger)
	return r.writeBatch(results, cmd.Bool("json"))
}

func (r *Runner) writeBatch(results []worker.Result, asJSON bool) error {
	lines := make([]batchLine, len(results))
	failed := 0
	for i, res := range results {
		lines[i] = batchLine{
			Prompt:      res.Input.Prompt,
			Name:        res.Output.Name,
			PlaylistURL: res.Output.PlaylistURL,
			TrackCount:  res.Output.TrackCount,
		}
		if res.Err != nil {
			lines[i].Error = res.Err.Error()
			failed++
		}
	}

	if asJSON {
		if err := r.writeJSON(lines, true); err != nil {
			return err
		}
	} else {
		for _, l := range lines {
			if l.Error != "" {
				r.writePlain("%s %s: %s\n", styles.err.Render("FAIL"), l.Prompt, l.Error)
				continue
			}
			target := l.PlaylistURL
			if target == "" {
				target = "(dry run)"
			}
			r.writePlain("%s %s: %d tracks %s\n", styles.ok.Render(" OK "), l.Prompt, l.TrackCount, target)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d prompts failed", failed, len(results))
	}
	return nil
}
