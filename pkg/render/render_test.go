package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/manimagic/manimagic/pkg/governance"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeExecutor records commands and runs a scripted stand-in for manim.
type fakeExecutor struct {
	mu    sync.Mutex
	calls []Command
	run   func(ctx context.Context, c Command) (*CommandResult, error)
}

func (f *fakeExecutor) Execute(ctx context.Context, c Command) (*CommandResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	return f.run(ctx, c)
}

func (f *fakeExecutor) lastCall(t *testing.T) Command {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("executor was not called")
	}
	return f.calls[len(f.calls)-1]
}

func mediaDir(c Command) string {
	for i, a := range c.Args {
		if a == "--media_dir" && i+1 < len(c.Args) {
			return c.Args[i+1]
		}
	}
	return ""
}

// writesVideo mimics a successful manim run.
func writesVideo(data string) func(context.Context, Command) (*CommandResult, error) {
	return func(_ context.Context, c Command) (*CommandResult, error) {
		scene := c.Args[3]
		out := filepath.Join(mediaDir(c), "videos", "scene", "480p15")
		if err := os.MkdirAll(out, 0o755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(filepath.Join(out, scene+".mp4"), []byte(data), 0o644); err != nil {
			return nil, err
		}
		return &CommandResult{Stdout: []byte("File ready at " + out), ExitCode: 0, Duration: time.Millisecond}, nil
	}
}

func newTestRenderer(t *testing.T, cfg Config, fx *fakeExecutor) *Renderer {
	t.Helper()
	policy, err := governance.NewEngine(governance.DefaultPolicy())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	cfg.WorkDir = t.TempDir()
	return New(cfg, WithExecutor(fx), WithPolicy(policy), WithLogger(quietLogger))
}

func TestRenderSuccess(t *testing.T) {
	var sceneSrc, auxSrc string
	var stubExists bool
	fx := &fakeExecutor{}
	fx.run = func(ctx context.Context, c Command) (*CommandResult, error) {
		b, _ := os.ReadFile(filepath.Join(c.Dir, "scene.py"))
		sceneSrc = string(b)
		b, _ = os.ReadFile(filepath.Join(c.Dir, "notes.txt"))
		auxSrc = string(b)
		_, err := os.Stat(filepath.Join(c.Dir, "manim_play_timeline", "__init__.py"))
		stubExists = err == nil
		return writesVideo("MP4DATA")(ctx, c)
	}
	r := newTestRenderer(t, Config{}, fx)

	code := "from manim import *\nfrom manim_play_timeline.timeline import Timeline\n\nclass Intro(Scene):\n    pass\n"
	video, err := r.Render(context.Background(), Request{
		Code:  code,
		Files: Files{{Name: "notes.txt", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if string(video.Data) != "MP4DATA" {
		t.Errorf("data = %q", video.Data)
	}
	if video.Scene != "Intro" {
		t.Errorf("scene = %q, want Intro", video.Scene)
	}
	if sceneSrc != code {
		t.Errorf("scene.py = %q", sceneSrc)
	}
	if auxSrc != "hello" {
		t.Errorf("notes.txt = %q", auxSrc)
	}
	if !stubExists {
		t.Error("manim_play_timeline stand-in was not written")
	}

	c := fx.lastCall(t)
	want := []string{"-m", "manim", "scene.py", "Intro", "--media_dir", c.Dir, "-ql", "--fps", "15", "--format", "mp4"}
	if strings.Join(c.Args, " ") != strings.Join(want, " ") {
		t.Errorf("args = %v, want %v", c.Args, want)
	}
	if c.Name != "python" {
		t.Errorf("name = %q, want python", c.Name)
	}
	if !strings.HasPrefix(filepath.Base(c.Dir), "manimagic-") {
		t.Errorf("workspace %q lacks manimagic- prefix", c.Dir)
	}
	if _, err := os.Stat(c.Dir); !os.IsNotExist(err) {
		t.Errorf("workspace %s was not removed", c.Dir)
	}
}

func TestRenderExplicitScene(t *testing.T) {
	fx := &fakeExecutor{run: writesVideo("x")}
	r := newTestRenderer(t, Config{}, fx)
	video, err := r.Render(context.Background(), Request{Code: "class A(Scene): pass\nclass B(Scene): pass", Scene: "B"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if video.Scene != "B" {
		t.Errorf("scene = %q, want B", video.Scene)
	}
}

func TestRenderNoCode(t *testing.T) {
	r := newTestRenderer(t, Config{}, &fakeExecutor{})
	for _, code := range []string{"", "  \n\t"} {
		if _, err := r.Render(context.Background(), Request{Code: code}); !errors.Is(err, ErrNoCode) {
			t.Errorf("code %q: err = %v, want ErrNoCode", code, err)
		}
	}
}

func TestRenderRejectsRequest(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{"traversal", Request{Code: "x", Files: Files{{Name: "../x.py", Content: "1"}}}},
		{"extension", Request{Code: "x", Files: Files{{Name: "run.sh", Content: "1"}}}},
		{"bad data url", Request{Code: "x", Files: Files{{Name: "a.png", Content: "data:image/png;base64,%%%"}}}},
		{"scene", Request{Code: "x", Scene: "Bad; rm -rf"}},
	}
	fx := &fakeExecutor{run: writesVideo("x")}
	r := newTestRenderer(t, Config{}, fx)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Render(context.Background(), tt.req); !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
	if len(fx.calls) != 0 {
		t.Errorf("executor ran %d times for rejected requests", len(fx.calls))
	}
}

func TestRenderRejectsInterpreter(t *testing.T) {
	r := newTestRenderer(t, Config{Python: "/bin/sh"}, &fakeExecutor{})
	if _, err := r.Render(context.Background(), Request{Code: "x"}); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("err = %v, want ErrInvalidRequest", err)
	}
}

func TestRenderFailure(t *testing.T) {
	var dir string
	fx := &fakeExecutor{run: func(_ context.Context, c Command) (*CommandResult, error) {
		dir = c.Dir
		return &CommandResult{
			Stdout:   []byte("Manim Community v0.19.0"),
			Stderr:   []byte("NameError in " + c.Dir + "/scene.py"),
			ExitCode: 1,
		}, nil
	}}
	r := newTestRenderer(t, Config{}, fx)

	_, err := r.Render(context.Background(), Request{Code: "class S(Scene): pass"})
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if rerr.Message != "NameError in <workdir>/scene.py" {
		t.Errorf("message = %q", rerr.Message)
	}
	if rerr.ExitCode != 1 {
		t.Errorf("exit code = %d", rerr.ExitCode)
	}
	if !strings.HasPrefix(rerr.Details, "Exit code: 1\nstdout: Manim Community v0.19.0\nstderr: NameError") {
		t.Errorf("details = %q", rerr.Details)
	}
	if strings.Contains(rerr.Details, dir) {
		t.Errorf("details leak workspace path: %q", rerr.Details)
	}
}

func TestRenderNoVideo(t *testing.T) {
	fx := &fakeExecutor{run: func(context.Context, Command) (*CommandResult, error) {
		return &CommandResult{ExitCode: 0}, nil
	}}
	r := newTestRenderer(t, Config{}, fx)
	_, err := r.Render(context.Background(), Request{Code: "class S(Scene): pass"})
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if rerr.Message != "Manim execution failed" {
		t.Errorf("message = %q", rerr.Message)
	}
}

func TestRenderProcessError(t *testing.T) {
	fx := &fakeExecutor{run: func(context.Context, Command) (*CommandResult, error) {
		return nil, errors.New("interpreter \"python\" not found")
	}}
	r := newTestRenderer(t, Config{}, fx)
	_, err := r.Render(context.Background(), Request{Code: "class S(Scene): pass"})
	var rerr *Error
	if !errors.As(err, &rerr) || !strings.HasPrefix(rerr.Message, "Process error: ") {
		t.Fatalf("err = %v, want process *Error", err)
	}
}

func TestRenderTimeout(t *testing.T) {
	fx := &fakeExecutor{run: func(ctx context.Context, _ Command) (*CommandResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	r := newTestRenderer(t, Config{Timeout: 20 * time.Millisecond}, fx)
	_, err := r.Render(context.Background(), Request{Code: "class S(Scene): pass"})
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if rerr.Message != "render timed out after 20ms" {
		t.Errorf("message = %q", rerr.Message)
	}
}

func TestRenderFiltersEnvironment(t *testing.T) {
	t.Setenv("MANIMAGIC_TEST_TOKEN", "secret")
	t.Setenv("MANIMAGIC_TEST_PLAIN", "ok")
	fx := &fakeExecutor{run: writesVideo("x")}
	r := newTestRenderer(t, Config{}, fx)
	if _, err := r.Render(context.Background(), Request{Code: "x"}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	env := strings.Join(fx.lastCall(t).Env, "\n")
	if strings.Contains(env, "MANIMAGIC_TEST_TOKEN") {
		t.Error("denied variable reached the subprocess")
	}
	if !strings.Contains(env, "MANIMAGIC_TEST_PLAIN=ok") {
		t.Error("allowed variable was dropped")
	}
}

func TestRenderConcurrencyLimit(t *testing.T) {
	var inFlight, peak int32
	fx := &fakeExecutor{}
	fx.run = func(ctx context.Context, c Command) (*CommandResult, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return writesVideo("x")(ctx, c)
	}
	r := newTestRenderer(t, Config{MaxConcurrent: 1}, fx)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Render(context.Background(), Request{Code: "x"}); err != nil {
				t.Errorf("Render: %v", err)
			}
		}()
	}
	wg.Wait()
	if got := atomic.LoadInt32(&peak); got != 1 {
		t.Errorf("peak concurrency = %d, want 1", got)
	}
}

func TestRenderWaitHonoursContext(t *testing.T) {
	release := make(chan struct{})
	fx := &fakeExecutor{run: func(ctx context.Context, c Command) (*CommandResult, error) {
		<-release
		return writesVideo("x")(ctx, c)
	}}
	r := newTestRenderer(t, Config{MaxConcurrent: 1}, fx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Render(context.Background(), Request{Code: "x"})
	}()
	for {
		fx.mu.Lock()
		n := len(fx.calls)
		fx.mu.Unlock()
		if n == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := r.Render(ctx, Request{Code: "x"}); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	close(release)
	<-done
}

func TestNewDefaults(t *testing.T) {
	r := New(Config{})
	if got := r.Config(); got != DefaultConfig() {
		t.Errorf("config = %+v, want defaults", got)
	}
}

func TestDetectScene(t *testing.T) {
	tests := []struct {
		code, want string
	}{
		{"class Hello(Scene):\n    pass", "Hello"},
		{"class  Spaced (Scene): pass", "Spaced"},
		{"class NoBase:\n    pass\nclass Real(Scene): pass", "Real"},
		{"print('hi')", DefaultScene},
	}
	for _, tt := range tests {
		if got := DetectScene(tt.code); got != tt.want {
			t.Errorf("DetectScene(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestStubPackages(t *testing.T) {
	got := StubPackages("from MF_Tools.easing import cubic_bezier\nimport manim_play_timeline")
	if strings.Join(got, ",") != "MF_Tools,manim_play_timeline" {
		t.Errorf("StubPackages = %v", got)
	}
	if got := StubPackages("from manim import *"); len(got) != 0 {
		t.Errorf("StubPackages = %v, want none", got)
	}
}

func TestWriteStubIncludesInit(t *testing.T) {
	dir := t.TempDir()
	if err := writeStub(dir, "MF_Tools"); err != nil {
		t.Fatalf("writeStub: %v", err)
	}
	for _, name := range []string{"__init__.py", "easing.py", "color.py"} {
		if _, err := os.Stat(filepath.Join(dir, "MF_Tools", name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
}

func TestFilesUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"object", `{"files":{"b.txt":"2","a.txt":"1"}}`, "a.txt=1,b.txt=2"},
		{"array", `{"files":[{"name":"z.svg","content":"<svg/>"},{"name":"a.txt","content":"x"}]}`, "z.svg=<svg/>,a.txt=x"},
		{"null", `{"files":null}`, ""},
		{"absent", `{}`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			if err := json.Unmarshal([]byte(tt.in), &req); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			var parts []string
			for _, f := range req.Files {
				parts = append(parts, f.Name+"="+f.Content)
			}
			if got := strings.Join(parts, ","); got != tt.want {
				t.Errorf("files = %q, want %q", got, tt.want)
			}
		})
	}

	var req Request
	if err := json.Unmarshal([]byte(`{"files":42}`), &req); err == nil {
		t.Error("expected an error for a scalar files value")
	}
}

func TestFileBytes(t *testing.T) {
	tests := []struct {
		content string
		want    string
		wantErr bool
	}{
		{"plain <svg/>", "plain <svg/>", false},
		{"data:image/png;base64,aGVsbG8=", "hello", false},
		{"data:image/svg+xml;utf8,%3Csvg%2F%3E", "<svg/>", false},
		{"data:image/png;base64", "", true},
		{"data:image/png;base64,!!!", "", true},
	}
	for _, tt := range tests {
		got, err := File{Name: "f", Content: tt.content}.Bytes()
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: err = %v, wantErr %v", tt.content, err, tt.wantErr)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("%q: got %q, want %q", tt.content, got, tt.want)
		}
	}
}

func TestNewFile(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{[]byte("a,b\n1,2\n"), "a,b\n1,2\n"},
		{[]byte{0x89, 'P', 'N', 'G', 0xff}, "data:application/octet-stream;base64,iVBOR/8="},
		{[]byte("data:x"), "data:application/octet-stream;base64,ZGF0YTp4"},
	}
	for _, tt := range tests {
		f := NewFile("f", tt.data)
		if f.Content != tt.want {
			t.Errorf("NewFile(%q).Content = %q, want %q", tt.data, f.Content, tt.want)
		}
		got, err := f.Bytes()
		if err != nil || !bytes.Equal(got, tt.data) {
			t.Errorf("round trip of %q = %q, %v", tt.data, got, err)
		}
	}
}

func TestFindVideo(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"b/720p/B.mp4", "a/480p15/partial_movie_files/x.txt", "a/480p15/A.mp4"} {
		full := filepath.Join(root, filepath.FromSlash(p))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	got, err := findVideo(root, "mp4")
	if err != nil {
		t.Fatalf("findVideo: %v", err)
	}
	if want := filepath.Join(root, "a", "480p15", "A.mp4"); got != want {
		t.Errorf("findVideo = %q, want %q", got, want)
	}

	got, err = findVideo(filepath.Join(root, "missing"), "mp4")
	if err != nil || got != "" {
		t.Errorf("missing root: got %q, %v", got, err)
	}
}

func TestRealExecutorDir(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("pwd is a shell builtin on Windows")
	}
	dir := t.TempDir()
	result, err := RealExecutor{}.Execute(context.Background(), Command{Name: "pwd", Dir: dir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := strings.TrimSpace(string(result.Stdout))
	if resolved, _ := filepath.EvalSymlinks(dir); out != dir && out != resolved {
		t.Errorf("stdout = %q, want %q", out, dir)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code = %d, want 0", result.ExitCode)
	}
}

func TestRealExecutorExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	result, err := RealExecutor{}.Execute(context.Background(), Command{Name: "sh", Args: []string{"-c", "echo oops >&2; exit 3"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 3 || strings.TrimSpace(string(result.Stderr)) != "oops" {
		t.Errorf("result = %+v", result)
	}
}

func TestRealExecutorNotFound(t *testing.T) {
	_, err := RealExecutor{}.Execute(context.Background(), Command{Name: "manimagic-no-such-binary"})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("err = %v, want not found", err)
	}
}
