package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"rakugaki/internal/brush"
	"rakugaki/internal/config"
	"rakugaki/internal/engine"
	"rakugaki/internal/logging"
	rnet "rakugaki/internal/net"
	"rakugaki/internal/paper"
	"rakugaki/internal/serializer"
	"rakugaki/internal/store"
	"rakugaki/internal/ui"
)

var configPath = flag.String("config", "", "path to config file (default: "+config.Path()+")")

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rakugaki:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(cfg.LogConfig())
	if err != nil {
		return err
	}
	defer logger.Close()
	log := logger.Logger
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	st, err := store.Open(cfg.Storage.Path, log)
	if err != nil {
		return err
	}
	defer st.Close()

	eng, err := engine.New(engine.Options{
		Width:     cfg.Canvas.Width,
		Height:    cfg.Canvas.Height,
		ViewScale: cfg.Canvas.ViewScale,
		History:   cfg.History.Depth,
		Title:     "Untitled",
		Logger:    log,
	})
	if err != nil {
		return err
	}
	brushes, err := brush.DefaultLibrary(eng.IDs())
	if err != nil {
		return fmt.Errorf("build brushes: %w", err)
	}
	papers := paper.DefaultLibrary(eng.IDs())
	eng.AddLayer()

	studio := ui.NewStudio(eng, brushes, papers, log)

	var bridgeURL string
	if cfg.Bridge.Enabled {
		bridgeURL, err = startBridge(ctx, cfg.Bridge, studio, eng.ProjectID(), log)
		if err != nil {
			return err
		}
	}

	log.Info("starting", "canvas", fmt.Sprintf("%dx%d", cfg.Canvas.Width, cfg.Canvas.Height), "store", cfg.Storage.Path)
	ui.RunApp(ctx, studio, ui.Options{
		Title:            "rakugaki",
		FrameRate:        cfg.UI.FrameRate,
		Store:            st,
		Serializer:       serializer.New(papers, log),
		BridgeURL:        bridgeURL,
		AutosaveInterval: cfg.UI.AutosaveInterval(),
		Log:              log,
	})
	return nil
}

// startBridge serves remote pointer input and optionally advertises it over
// mDNS. Both stop when ctx is done.
func startBridge(ctx context.Context, bc config.BridgeConfig, studio *ui.Studio, project string, log *slog.Logger) (string, error) {
	bridge := rnet.NewBridge(studio.Engine(), log)
	studio.AddViewScaler(bridge)
	go func() {
		if err := bridge.ListenAndServe(ctx, bc.Addr); err != nil {
			log.Error("input bridge stopped", "err", err)
		}
	}()

	url, err := rnet.InputURL(bc.Addr)
	if err != nil {
		return "", err
	}
	if bc.Advertise {
		port, err := rnet.Port(bc.Addr)
		if err != nil {
			return "", fmt.Errorf("bridge addr: %w", err)
		}
		server, err := rnet.Advertise(port, project)
		if err != nil {
			log.Warn("mDNS advertisement unavailable", "err", err)
		} else {
			go func() {
				<-ctx.Done()
				server.Shutdown()
			}()
		}
	}
	log.Info("remote input enabled", "url", url)
	return url, nil
}
