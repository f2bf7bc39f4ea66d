package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/auth"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/engine"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/persist"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/source"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/store"
)

var cli struct {
	Verbose bool `short:"v" help:"Log at debug level"`

	Replay struct {
		Script     string        `arg:"" name:"script" type:"path" help:"JSON array of session messages to apply"`
		Document   string        `short:"d" default:"1" help:"Document id to open first"`
		Dir        string        `type:"path" help:"Directory holding <id>.json documents"`
		BaseURL    string        `name:"base-url" help:"Base URL serving <id>.json documents"`
		Pages      int           `default:"3" help:"Page count of the built-in sample when no source is given"`
		Sink       string        `enum:"log,sqlite" default:"log" help:"Where save messages go"`
		SQLitePath string        `name:"sqlite-path" type:"path" default:"./data/snapshots.db" help:"SQLite database for the sqlite sink"`
		Timeout    time.Duration `default:"30s" help:"Limit for loading documents"`
	} `cmd:"" help:"Replay a scripted gesture sequence against a document and print the result."`

	Token struct {
		Subject string        `arg:"" name:"subject" help:"User id to put in the token"`
		Secret  string        `env:"JWT_SECRET" required:"" help:"Signing secret"`
		TTL     time.Duration `name:"ttl" default:"24h" help:"Token lifetime"`
	} `cmd:"" help:"Issue a bearer token for the API and WebSocket endpoint."`
}

func main() {
	ctx := kong.Parse(&cli)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var err error
	switch ctx.Command() {
	case "replay <script>":
		err = runReplay()
	case "token <subject>":
		err = runToken()
	default:
		err = fmt.Errorf("unknown command %q", ctx.Command())
	}
	ctx.FatalIfErrorf(err)
}

func runToken() error {
	token, err := auth.NewService(cli.Token.Secret, cli.Token.TTL).IssueToken(cli.Token.Subject)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func runReplay() error {
	opts := cli.Replay

	script, err := readScript(opts.Script)
	if err != nil {
		return err
	}

	var src store.Source
	switch {
	case opts.BaseURL != "":
		src = source.NewHTTP(opts.BaseURL, &http.Client{Timeout: opts.Timeout})
	case opts.Dir != "":
		src = source.NewDir(opts.Dir)
	default:
		src = source.Static{opts.Document: document.NewSamplePayload(opts.Document, opts.Pages)}
	}

	storeOpts := []store.Option{store.WithSink(persist.NewLog(os.Stdout))}
	if opts.Sink == "sqlite" {
		db, err := persist.NewSQLite(opts.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		defer db.Close()
		storeOpts = []store.Option{store.WithSink(db), store.WithSnapshots(db)}
	}

	eng := engine.New(src, engine.WithStoreOptions(storeOpts...))
	defer eng.Close()

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	return replay(ctx, eng, opts.Document, script, os.Stdout)
}
