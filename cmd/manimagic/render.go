package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/manimagic/manimagic/pkg/community"
	"github.com/manimagic/manimagic/pkg/config"
	"github.com/manimagic/manimagic/pkg/render"
	"github.com/manimagic/manimagic/pkg/report"
	"github.com/manimagic/manimagic/pkg/server"
)

// --- render ---

var (
	renderOut   string
	renderScene string
	renderFiles []string
	renderForce bool
)

var renderCmd = &cobra.Command{
	Use:   "render [scene.py]",
	Short: "Render a scene to an MP4 with the local manim install",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	v, err := cfg.NewValidator(logger)
	if err != nil {
		return err
	}
	r, err := cfg.NewRenderer(logger)
	if err != nil {
		return err
	}

	path := args[0]
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if res := v.Validate(string(code)); !res.Valid {
		report.New(cmd.ErrOrStderr()).Result(path, string(code), res)
		if res.Blocking() && !renderForce {
			return errCheckFailed
		}
	}

	req, err := buildRenderRequest(string(code), renderScene, renderFiles)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	video, err := r.Render(ctx, req)
	if err != nil {
		var rerr *render.Error
		if errors.As(err, &rerr) && rerr.Details != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), rerr.Details)
		}
		return err
	}

	out := renderOut
	if out == "" {
		out = video.Scene + ".mp4"
	}
	if err := os.WriteFile(out, video.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rendered %s to %s (%d bytes, %s)\n", video.Scene, out, len(video.Data), video.Duration.Round(time.Millisecond))
	return nil
}

// buildRenderRequest reads the auxiliary files; each is written under its
// base name next to the scene.
func buildRenderRequest(code, scene string, files []string) (render.Request, error) {
	req := render.Request{Code: code, Scene: scene}
	for _, p := range files {
		data, err := os.ReadFile(p)
		if err != nil {
			return render.Request{}, fmt.Errorf("read %s: %w", p, err)
		}
		req.Files = append(req.Files, render.NewFile(filepath.Base(p), data))
	}
	return req, nil
}

// --- serve ---

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the playground HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	logger := cfg.Log.NewLogger(os.Stderr)
	v, err := cfg.NewValidator(logger)
	if err != nil {
		return err
	}
	r, err := cfg.NewRenderer(logger)
	if err != nil {
		return err
	}

	opts := []server.Option{server.WithConfig(cfg.Server), server.WithLogger(logger)}
	if cfg.Community.Enabled {
		st, err := openStore(cfg.Community.DB)
		if err != nil {
			return err
		}
		defer st.Close()
		opts = append(opts, server.WithStore(st))
	}

	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.New(v, r, opts...).ListenAndServe(ctx, cfg.Server.Addr)
}

func openStore(dsn string) (*community.Store, error) {
	if dsn == "" {
		p, err := community.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		dsn = p
	}
	st, err := community.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open community store: %w", err)
	}
	return st, nil
}

// contextOrBackground returns the command context, which is nil when a
// command's RunE is called directly.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func init() {
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "Output MP4 path (default: <Scene>.mp4)")
	renderCmd.Flags().StringVar(&renderScene, "scene", "", "Scene class to render (default: first class in the file)")
	renderCmd.Flags().StringArrayVar(&renderFiles, "file", nil, "Auxiliary file to place next to the scene, repeatable")
	renderCmd.Flags().BoolVar(&renderForce, "force", false, "Render even when the check reports a syntax error")

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}
