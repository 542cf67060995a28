package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/kathakali/internal/app"
	"github.com/ayusman/kathakali/internal/avatar"
	"github.com/ayusman/kathakali/internal/config"
	"github.com/ayusman/kathakali/internal/detector"
	"github.com/ayusman/kathakali/internal/rig"
	"github.com/ayusman/kathakali/internal/server"
	"github.com/ayusman/kathakali/internal/store"
	"github.com/ayusman/kathakali/internal/tray"
)

const trayRefresh = 500 * time.Millisecond

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Track the camera and serve the avatar pose (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, ctx)
		},
	}
}

func runServe(cmd *cobra.Command, c *commandContext) error {
	cfg := c.cfg
	log := c.log.Logger
	ctx := cmd.Context()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	model, err := loadModel(cfg.Avatar.Model)
	if err != nil {
		return err
	}
	log.Info().
		Str("model", model.Name()).
		Int("channels", len(model.Channels())).
		Msg("avatar loaded")

	handle := detector.MediaPipeHandle(cfg.DetectorSettings(), log)
	defer handle.Close()

	hub := server.NewPoseHub(log)
	a := app.New(app.Config{
		Store:           st,
		Camera:          cfg.CaptureSettings(),
		Detector:        handle,
		Model:           model,
		Sink:            hub,
		Logger:          log,
		RenderFPS:       cfg.Render.FPS,
		Smoothing:       cfg.Render.Smoothing,
		MotionThreshold: cfg.Camera.MotionThreshold,
		MotionMaxSkip:   cfg.Camera.MotionMaxSkip,
		PreviewQuality:  cfg.Camera.PreviewQuality,
		Names:           rig.NewNameMap(cfg.NameOverrides()),
		Expressions:     cfg.ExpressionSet(),
		Enabled:         cfg.Tracking.Enabled,
	})
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("start tracking: %w", err)
	}
	defer a.Stop()

	webDir := findWebDir(cfg.Server.StaticDir)
	if webDir != "" {
		log.Info().Str("dir", webDir).Msg("serving static files")
	}

	srv := server.New(server.Config{
		StaticDir:      webDir,
		Store:          st,
		App:            a,
		Hub:            hub,
		Logger:         log,
		StreamInterval: cfg.Server.StreamInterval,
	})

	if !cfg.Tray.Enabled {
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	}
	return serveWithTray(ctx, srv, a, cfg)
}

// serveWithTray runs the server in the background and the tray on the
// calling goroutine. Either one stopping stops the other.
func serveWithTray(ctx context.Context, srv *server.Server, a *app.App, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := tray.New(a.IsEnabled())
	t.OnToggle(a.SetEnabled)
	t.OnSettings(func() { openBrowser(settingsURL(cfg.Server.Addr)) })
	t.OnQuit(cancel)

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe(ctx, cfg.Server.Addr)
		t.Quit()
	}()
	go t.Watch(ctx, a.Report, trayRefresh)

	t.Run()
	cancel()
	return <-errc
}

func openStore(cfg *config.Config) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// loadModel opens path, or returns the built-in ARKit model when path is
// empty.
func loadModel(path string) (*avatar.Model, error) {
	if path == "" {
		return avatar.ARKitModel(), nil
	}
	return avatar.LoadModel(path)
}

func settingsURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	_ = cmd.Start()
}

// findWebDir resolves the static directory. A configured path that exists
// wins; otherwise it checks "web", "../web", "../../web" and
// ~/.kathakali/web. Returns "" if none is found.
func findWebDir(configured string) string {
	candidates := []string{}
	if configured != "" {
		candidates = append(candidates, configured)
	}
	candidates = append(candidates, "web", "../web", "../../web")
	if dir, err := config.Dir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, "web"))
	}

	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
