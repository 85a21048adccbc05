package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/ewilliams-labs/aidj/internal/app"
	"github.com/ewilliams-labs/aidj/internal/core/services"
)

// Chat reads messages from input until EOF or "exit" and prints each reply.
func (r *Runner) Chat(ctx context.Context, cmd *cli.Command) error {
	a, err := r.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer r.closeApp(a)

	sessionID := cmd.String("session")
	auth := tokenSource(cmd.String("token"))
	count := desiredCount(cmd, a)

	sc := bufio.NewScanner(r.input)
	r.writePlain("%s ", styles.help.Render(">"))
	for sc.Scan() {
		msg := strings.TrimSpace(sc.Text())
		if msg == "exit" || msg == "salir" {
			break
		}
		if msg == "" {
			r.writePlain("%s ", styles.help.Render(">"))
			continue
		}

		reply, err := a.Chat.Reply(ctx, services.ChatInput{
			OwnerID:      cmd.String("user"),
			SessionID:    sessionID,
			Message:      msg,
			DesiredCount: count,
			SearchAuth:   auth,
		})
		if err != nil {
			return err
		}
		sessionID = reply.SessionID

		r.writePlain("%s %s\n", styles.title.Render("DJ:"), reply.Message)
		if reply.PlaylistCreated {
			r.writePlain("%s %s\n", styles.ok.Render("Created"), reply.PlaylistURL)
			return nil
		}
		r.writePlain("%s ", styles.help.Render(">"))
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	r.logger.Info("session saved", "session", sessionID)
	return nil
}

// History lists the user's recorded playlists.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	a, err := r.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer r.closeApp(a)

	records, err := a.Orchestrator.History(ctx, cmd.String("user"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, true)
	}
	if len(records) == 0 {
		r.writePlain("%s\n", styles.warn.Render("No playlists yet."))
		return nil
	}
	for _, rec := range records {
		r.writePlain("%s  %s\n    %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04"), rec.PlaylistURL, styles.help.Render(rec.SourcePrompt))
	}
	return nil
}

// Ask answers a music question.
func (r *Runner) Ask(ctx context.Context, cmd *cli.Command) error {
	query := argText(cmd)
	if query == "" {
		return fmt.Errorf("%w: question is required", errMissingArgument)
	}

	a, err := r.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer r.closeApp(a)

	answer, err := a.Knowledge.Ask(ctx, query)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(answer, true)
	}
	r.writePlain("%s\n", answer.Answer)
	if answer.Context != "" {
		r.writePlain("\n%s\n", styles.help.Render(answer.Context))
	}
	for _, e := range answer.Examples {
		r.writePlain("  - %s\n", e)
	}
	if len(answer.Suggestions) > 0 {
		r.writePlain("\n%s\n", styles.title.Render("Explore next"))
		for _, s := range answer.Suggestions {
			r.writePlain("  - %s\n", s)
		}
	}
	return nil
}

// Serve runs the HTTP API until interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	a, err := r.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer r.closeApp(a)

	addr := cmd.String("addr")
	if addr == "" {
		addr = a.Config.Server.Addr()
	}
	return app.Serve(ctx, addr, a.Handler(), r.logger)
}
