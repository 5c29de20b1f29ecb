package governance

import (
	"strings"
	"testing"
)

func TestInterpreterAllowlist(t *testing.T) {
	g, err := NewEngine(DefaultPolicy())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	tests := []struct {
		command string
		allowed bool
	}{
		{"python", true},
		{"python3", true},
		{"/usr/bin/python3.12", true},
		{"bash", false},
		{"/bin/sh", false},
	}
	for _, tt := range tests {
		err := g.CheckInterpreter(tt.command)
		if tt.allowed && err != nil {
			t.Errorf("%q: expected allowed, got: %v", tt.command, err)
		}
		if !tt.allowed && err == nil {
			t.Errorf("%q: expected rejection", tt.command)
		}
	}
}

// TestNoPolicyAllowsAll verifies that a nil policy permits everything.
func TestNoPolicyAllowsAll(t *testing.T) {
	g, err := NewEngine(nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	if err := g.CheckInterpreter("anything"); err != nil {
		t.Errorf("empty policy should allow all: %v", err)
	}
	if err := g.CheckFileName("data.bin"); err != nil {
		t.Errorf("empty policy should allow any extension: %v", err)
	}
	if err := g.CheckFileSize("big", 1<<40); err != nil {
		t.Errorf("empty policy should allow any size: %v", err)
	}
}

func TestCheckFileName(t *testing.T) {
	g, err := NewEngine(DefaultPolicy())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	tests := []struct {
		name    string
		allowed bool
	}{
		{"helpers.py", true},
		{"logo.PNG", true},
		{"data.csv", true},
		{"", false},
		{"../escape.py", false},
		{"dir/file.py", false},
		{`dir\file.py`, false},
		{".bashrc", false},
		{"..", false},
		{"scene.py", false},
		{"run.sh", false},
		{"noext", false},
	}
	for _, tt := range tests {
		err := g.CheckFileName(tt.name)
		if tt.allowed && err != nil {
			t.Errorf("%q: expected allowed, got: %v", tt.name, err)
		}
		if !tt.allowed && err == nil {
			t.Errorf("%q: expected rejection", tt.name)
		}
	}
}

func TestCheckFileSize(t *testing.T) {
	g := &Engine{MaxFileBytes: 10}
	if err := g.CheckFileSize("a.txt", 10); err != nil {
		t.Errorf("at limit should pass: %v", err)
	}
	if err := g.CheckFileSize("a.txt", 11); err == nil {
		t.Error("over limit should fail")
	}
}

// TestEnvVarPatternMatching verifies denied env var patterns.
func TestEnvVarPatternMatching(t *testing.T) {
	g := &Engine{
		DenyEnvVars: []string{"SECRET_*", "TOKEN", "AWS_*"},
	}
	tests := []struct {
		name    string
		blocked bool
	}{
		{"SECRET_KEY", true},
		{"SECRET_VALUE", true},
		{"TOKEN", true},
		{"AWS_ACCESS_KEY", true},
		{"HOME", false},
		{"PATH", false},
		{"PYTHONPATH", false},
	}
	for _, tt := range tests {
		err := g.CheckEnvVar(tt.name)
		if tt.blocked && err == nil {
			t.Errorf("expected %q to be blocked", tt.name)
		}
		if !tt.blocked && err != nil {
			t.Errorf("expected %q to be allowed, got: %v", tt.name, err)
		}
	}
}

func TestInvalidEnvPatternBlocks(t *testing.T) {
	g := &Engine{DenyEnvVars: []string{"[unclosed"}}
	if err := g.CheckEnvVar("HOME"); err == nil {
		t.Error("invalid pattern should block")
	}
}

func TestFilterEnvVars(t *testing.T) {
	g, err := NewEngine(DefaultPolicy())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	env := []string{
		"HOME=/home/u",
		"PATH=/usr/bin",
		"GITHUB_TOKEN=abc",
		"SUPABASE_URL=https://x",
		"OPENAI_API_KEY=sk",
		"DB_PASSWORD=p=q",
	}
	filtered, blocked := g.FilterEnvVars(env)
	if strings.Join(filtered, ",") != "HOME=/home/u,PATH=/usr/bin" {
		t.Errorf("filtered = %v", filtered)
	}
	if len(blocked) != 4 {
		t.Errorf("blocked = %v, want 4 names", blocked)
	}
}

func TestFilterEnvVarsNoPolicy(t *testing.T) {
	g := &Engine{}
	env := []string{"A=1", "TOKEN=2"}
	filtered, blocked := g.FilterEnvVars(env)
	if len(filtered) != 2 || blocked != nil {
		t.Errorf("filtered=%v blocked=%v", filtered, blocked)
	}
}

func TestRedact(t *testing.T) {
	g, err := NewEngine(DefaultPolicy())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	out := g.Redact("File /tmp/manimagic-123/scene.py failed token=abc123 ok", "/tmp/manimagic-123")
	want := "File <workdir>/scene.py failed token=[REDACTED] ok"
	if out != want {
		t.Errorf("Redact = %q, want %q", out, want)
	}
}

func TestCompileRedactionRulesInvalid(t *testing.T) {
	if _, err := CompileRedactionRules([]RedactionRule{{Pattern: "("}}); err == nil {
		t.Error("expected compile error")
	}
	if _, err := NewEngine(&Policy{Redactions: []RedactionRule{{Pattern: "("}}}); err == nil {
		t.Error("expected NewEngine to fail on a bad redaction")
	}
}
