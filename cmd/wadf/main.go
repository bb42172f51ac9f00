// wadf runs a workcell: it wires the configured drivers and linkers, polls
// the sensors and serves the linkers over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/danielorbach/go-component"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
	_ "gocloud.dev/pubsub/natspubsub"
	"golang.org/x/sync/errgroup"

	"github.com/ohowland/wadf_core/internal/pkg/config"
	"github.com/ohowland/wadf_core/internal/pkg/database/mongodb"
	"github.com/ohowland/wadf_core/internal/pkg/datastreams/recordtopic"
	"github.com/ohowland/wadf_core/internal/pkg/logging"
	"github.com/ohowland/wadf_core/internal/pkg/root"
	"github.com/ohowland/wadf_core/internal/pkg/webservice"
)

// CLI is the command line of wadf.
type CLI struct {
	Config string `name:"config" short:"c" help:"Workcell file path." default:"${default_config_path}" type:"path"`
	Log    string `name:"log" help:"Log level (debug, info, warn, error)." env:"WADF_LOG"`
}

func main() {
	var cli CLI
	kong.Parse(&cli,
		kong.Name("wadf"),
		kong.Description("Workcell linker runtime for virtual, physical and digital-twin devices."),
		kong.UsageOnError(),
		kong.Vars{"default_config_path": "config/workcell.toml"},
	)
	if err := run(cli); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cli CLI) error {
	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cfg.Logging.Format)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		CLILevel:    cli.Log,
		ConfigLevel: cfg.Logging.Level,
		Format:      format,
		Output:      os.Stderr,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	logger.Info("Building workcell", slog.String("workcell", cfg.Workcell.Name), slog.String("config", cli.Config))
	system, err := root.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := system.Close(); err != nil {
			logger.Error("Runner shutdown failed", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	if cfg.MongoDB.URI != "" {
		h := mongodb.New(mongodb.Config{
			URI:        cfg.MongoDB.URI,
			Database:   cfg.MongoDB.Database,
			Collection: cfg.MongoDB.Collection,
		}, logger, system.Records()...)
		logger.Info("Connecting MongoDB record sink", slog.String("database", cfg.MongoDB.Database))
		g.Go(func() error { return h.Run(ctx) })
	}

	if cfg.Topic.URL != "" {
		if err := checkTopicURL(cfg.Topic.URL); err != nil {
			return err
		}
		topic, err := pubsub.OpenTopic(ctx, cfg.Topic.URL)
		if err != nil {
			return fmt.Errorf("open topic %s: %w", cfg.Topic.URL, err)
		}
		defer func() { _ = topic.Shutdown(context.Background()) }()
		f := recordtopic.New(topic, logger, system.Records()...)
		logger.Info("Publishing record updates", slog.String("url", cfg.Topic.URL))
		g.Go(func() error { return f.Run(ctx) })
	}

	if cfg.Webservice.Addr != "" {
		app := &webservice.App{Workcell: system, Logger: logger}
		srv := &http.Server{Addr: cfg.Webservice.Addr, Handler: app.Router()}
		logger.Info("Starting server", slog.String("addr", cfg.Webservice.Addr))
		g.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
	}

	// Sensor polls stop with the process.
	polls := system.Polls()
	go component.RunProc(func(l *component.L) {
		for name, p := range polls {
			l.Fork(name+" poll", p)
		}
	})

	<-ctx.Done()
	logger.Info("Shutting down")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// checkTopicURL rejects topic URLs whose scheme has no registered driver.
func checkTopicURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("topic url %s: %w", raw, err)
	}
	if !pubsub.DefaultURLMux().ValidTopicScheme(u.Scheme) {
		return fmt.Errorf("topic url %s: no driver for scheme %q", raw, u.Scheme)
	}
	return nil
}
