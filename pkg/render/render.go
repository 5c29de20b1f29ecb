// Package render runs Manim on submitted scene code and returns the
// resulting video.
//
// Each render gets its own temp workspace holding scene.py, any auxiliary
// files and stand-ins for helper packages the host does not provide. The
// workspace is removed when Render returns, whatever the outcome.
package render

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/manimagic/manimagic/pkg/governance"
)

// VideoFileName is the name the video is served under.
const VideoFileName = "manim_animation.mp4"

// Config controls the manim invocation.
type Config struct {
	Python        string        `yaml:"python"         json:"python"`
	Quality       string        `yaml:"quality"        json:"quality"` // l, m, h, p or k
	FPS           int           `yaml:"fps"            json:"fps"`
	Format        string        `yaml:"format"         json:"format"`
	Timeout       time.Duration `yaml:"timeout"        json:"timeout"`
	MaxConcurrent int           `yaml:"max_concurrent" json:"max_concurrent"`
	WorkDir       string        `yaml:"work_dir"       json:"work_dir,omitempty"` // parent of temp workspaces; "" is os.TempDir
}

// DefaultConfig returns the settings tuned for quick web previews.
func DefaultConfig() Config {
	return Config{
		Python:        "python",
		Quality:       "l",
		FPS:           15,
		Format:        "mp4",
		Timeout:       60 * time.Second,
		MaxConcurrent: 2,
	}
}

// Video is a successful render.
type Video struct {
	Data     []byte
	Scene    string
	Duration time.Duration
}

// Renderer renders scenes. It is safe for concurrent use; at most
// Config.MaxConcurrent renders run at once.
type Renderer struct {
	cfg    Config
	exec   CommandExecutor
	policy *governance.Engine
	logger *slog.Logger
	sem    chan struct{}
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithExecutor replaces the subprocess runner.
func WithExecutor(e CommandExecutor) Option {
	return func(r *Renderer) { r.exec = e }
}

// WithPolicy sets the governance engine applied to each request.
func WithPolicy(p *governance.Engine) Option {
	return func(r *Renderer) { r.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// New creates a Renderer. Zero fields of cfg take their defaults.
func New(cfg Config, opts ...Option) *Renderer {
	def := DefaultConfig()
	if cfg.Python == "" {
		cfg.Python = def.Python
	}
	if cfg.Quality == "" {
		cfg.Quality = def.Quality
	}
	if cfg.FPS <= 0 {
		cfg.FPS = def.FPS
	}
	if cfg.Format == "" {
		cfg.Format = def.Format
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}

	r := &Renderer{
		cfg:    cfg,
		exec:   RealExecutor{},
		policy: &governance.Engine{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.sem = make(chan struct{}, cfg.MaxConcurrent)
	return r
}

// Config returns the effective configuration.
func (r *Renderer) Config() Config {
	return r.cfg
}

// Render writes the workspace, runs manim and returns the first video it
// produced. Failures of the manim run are returned as *Error.
func (r *Renderer) Render(ctx context.Context, req Request) (*Video, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, ErrNoCode
	}
	if err := r.policy.CheckInterpreter(r.cfg.Python); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	scene := req.Scene
	if scene == "" {
		scene = DetectScene(req.Code)
	} else if !identifierRe.MatchString(scene) {
		return nil, fmt.Errorf("%w: scene %q is not a Python identifier", ErrInvalidRequest, scene)
	}
	files, err := r.decodeFiles(req.Files)
	if err != nil {
		return nil, err
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	dir, err := os.MkdirTemp(r.cfg.WorkDir, "manimagic-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			r.logger.Warn("workspace cleanup failed", "dir", dir, "error", err)
		}
	}()

	if err := writeWorkspace(dir, req.Code, files); err != nil {
		return nil, err
	}
	return r.run(ctx, dir, scene)
}

type decodedFile struct {
	name string
	data []byte
}

func (r *Renderer) decodeFiles(files Files) ([]decodedFile, error) {
	out := make([]decodedFile, 0, len(files))
	for _, f := range files {
		if err := r.policy.CheckFileName(f.Name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		data, err := f.Bytes()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if err := r.policy.CheckFileSize(f.Name, int64(len(data))); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		out = append(out, decodedFile{name: f.Name, data: data})
	}
	return out, nil
}

func (r *Renderer) run(ctx context.Context, dir, scene string) (*Video, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	env, blocked := r.policy.FilterEnvVars(os.Environ())
	if len(blocked) > 0 {
		r.logger.Debug("environment filtered", "blocked", blocked)
	}
	cmd := Command{
		Name: r.cfg.Python,
		Args: []string{
			"-m", "manim", "scene.py", scene,
			"--media_dir", dir,
			"-q" + r.cfg.Quality,
			"--fps", strconv.Itoa(r.cfg.FPS),
			"--format", r.cfg.Format,
		},
		Env: env,
		Dir: dir,
	}

	r.logger.Info("render started", "scene", scene, "workspace", dir)
	res, err := r.exec.Execute(ctx, cmd)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		r.logger.Warn("render timed out", "scene", scene, "timeout", r.cfg.Timeout)
		msg := fmt.Sprintf("render timed out after %s", r.cfg.Timeout)
		e := &Error{Message: msg, ExitCode: -1}
		if res != nil {
			e.Details = r.policy.Redact(failureDetails(res.ExitCode, string(res.Stdout), string(res.Stderr)), dir)
		}
		return nil, e
	}
	if err != nil {
		return nil, &Error{Message: "Process error: " + r.policy.Redact(err.Error(), dir), ExitCode: -1}
	}

	stdout := r.policy.Redact(string(res.Stdout), dir)
	stderr := r.policy.Redact(string(res.Stderr), dir)
	video, findErr := findVideo(filepath.Join(dir, "videos"), r.cfg.Format)
	if res.ExitCode != 0 || video == "" {
		r.logger.Warn("render failed", "scene", scene, "exit_code", res.ExitCode, "duration", res.Duration, "video_found", video != "")
		msg := stderr
		if strings.TrimSpace(msg) == "" {
			msg = "Manim execution failed"
		}
		details := failureDetails(res.ExitCode, stdout, stderr)
		if findErr != nil {
			details += "\nsearch: " + r.policy.Redact(findErr.Error(), dir)
		}
		return nil, &Error{Message: msg, Details: details, ExitCode: res.ExitCode}
	}

	data, err := os.ReadFile(video)
	if err != nil {
		return nil, &Error{Message: "Failed to read video file", Details: r.policy.Redact(err.Error(), dir), ExitCode: res.ExitCode}
	}
	r.logger.Info("render finished", "scene", scene, "bytes", len(data), "duration", res.Duration)
	return &Video{Data: data, Scene: scene, Duration: res.Duration}, nil
}

// findVideo returns the first file with the given extension under root in
// lexical walk order, or "" if there is none. A missing root is not an
// error.
func findVideo(root, format string) (string, error) {
	ext := "." + format
	var found string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ext) {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	return found, err
}

//go:embed all:stubs
var stubFS embed.FS

// stubTriggers maps each stand-in package to the import text that
// requires it.
var stubTriggers = map[string]string{
	"manim_play_timeline": "manim_play_timeline",
	"MF_Tools":            "MF_Tools",
}

// StubPackages lists the stand-in packages code would receive, sorted.
func StubPackages(code string) []string {
	var out []string
	for pkg, trigger := range stubTriggers {
		if strings.Contains(code, trigger) {
			out = append(out, pkg)
		}
	}
	sort.Strings(out)
	return out
}

func writeWorkspace(dir, code string, files []decodedFile) error {
	if err := os.WriteFile(filepath.Join(dir, "scene.py"), []byte(code), 0o644); err != nil {
		return fmt.Errorf("write scene: %w", err)
	}
	for _, pkg := range StubPackages(code) {
		if err := writeStub(dir, pkg); err != nil {
			return fmt.Errorf("write stub %s: %w", pkg, err)
		}
	}
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f.name), f.data, 0o644); err != nil {
			return fmt.Errorf("write file %s: %w", f.name, err)
		}
	}
	return nil
}

func writeStub(dir, pkg string) error {
	sub, err := fs.Sub(stubFS, "stubs")
	if err != nil {
		return err
	}
	return fs.WalkDir(sub, pkg, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		target := filepath.Join(dir, filepath.FromSlash(path))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := fs.ReadFile(sub, path)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}
