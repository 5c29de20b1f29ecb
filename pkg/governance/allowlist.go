// Package governance implements the render policy: interpreter allowlist,
// auxiliary file checks, environment variable blocking and output
// redaction.
package governance

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Policy is the configuration form of the render policy.
type Policy struct {
	AllowedInterpreters []string        `yaml:"allowed_interpreters,omitempty" json:"allowed_interpreters,omitempty"`
	DenyEnvVars         []string        `yaml:"deny_env_vars,omitempty"        json:"deny_env_vars,omitempty"`
	AllowedExtensions   []string        `yaml:"allowed_extensions,omitempty"   json:"allowed_extensions,omitempty"`
	MaxFileBytes        int64           `yaml:"max_file_bytes,omitempty"       json:"max_file_bytes,omitempty"`
	Redactions          []RedactionRule `yaml:"redactions,omitempty"           json:"redactions,omitempty"`
}

// DefaultPolicy is applied when the configuration does not set one.
func DefaultPolicy() *Policy {
	return &Policy{
		AllowedInterpreters: []string{"python", "python3", "python3.*"},
		DenyEnvVars: []string{
			"*SECRET*", "*TOKEN*", "*PASSWORD*", "*_KEY",
			"AWS_*", "SUPABASE_*", "DATABASE_URL", "MANIMAGIC_DB",
		},
		AllowedExtensions: []string{
			".py", ".txt", ".json", ".csv", ".tex",
			".png", ".jpg", ".jpeg", ".gif", ".svg",
			".wav", ".mp3", ".ttf", ".otf",
		},
		MaxFileBytes: 10 << 20,
		Redactions: []RedactionRule{
			{Pattern: `(?i)(api[_-]?key|token|secret|password)=\S+`, Replace: "${1}=[REDACTED]"},
		},
	}
}

// Engine evaluates the render policy.
type Engine struct {
	AllowedInterpreters []string
	DenyEnvVars         []string
	AllowedExtensions   []string
	MaxFileBytes        int64
	redactions          []*CompiledRedaction
}

// NewEngine creates an Engine from a Policy.
// If policy is nil, returns a permissive engine.
func NewEngine(policy *Policy) (*Engine, error) {
	if policy == nil {
		return &Engine{}, nil
	}
	redactions, err := CompileRedactionRules(policy.Redactions)
	if err != nil {
		return nil, fmt.Errorf("compile redaction rules: %w", err)
	}
	return &Engine{
		AllowedInterpreters: policy.AllowedInterpreters,
		DenyEnvVars:         policy.DenyEnvVars,
		AllowedExtensions:   policy.AllowedExtensions,
		MaxFileBytes:        policy.MaxFileBytes,
		redactions:          redactions,
	}, nil
}

// CheckInterpreter validates the base name of the Python executable
// against the allowlist patterns. An empty allowlist permits anything.
func (g *Engine) CheckInterpreter(command string) error {
	if len(g.AllowedInterpreters) == 0 {
		return nil
	}
	base := filepath.Base(command)
	base = strings.TrimSuffix(base, ".exe")
	for _, pattern := range g.AllowedInterpreters {
		if ok, _ := filepath.Match(pattern, base); ok {
			return nil
		}
	}
	return fmt.Errorf("interpreter %q is not in the render allowlist", command)
}

// CheckFileName validates an auxiliary file name. Only plain base names
// are accepted: no directories, no traversal, no hidden files, and the
// extension must be allowed when an extension list is set.
func (g *Engine) CheckFileName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("file name is empty")
	case strings.ContainsAny(name, `/\`) || path.Base(name) != name:
		return fmt.Errorf("file name %q must not contain a path", name)
	case name == "." || name == ".." || strings.HasPrefix(name, "."):
		return fmt.Errorf("file name %q must not be hidden", name)
	case name == "scene.py":
		return fmt.Errorf("file name %q is reserved", name)
	}
	if len(g.AllowedExtensions) == 0 {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range g.AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return fmt.Errorf("file extension %q is not allowed", ext)
}

// CheckFileSize validates the decoded size of an auxiliary file.
func (g *Engine) CheckFileSize(name string, size int64) error {
	if g.MaxFileBytes > 0 && size > g.MaxFileBytes {
		return fmt.Errorf("file %q is %d bytes, limit is %d", name, size, g.MaxFileBytes)
	}
	return nil
}

// CheckEnvVar validates an environment variable name against deny_env_vars patterns.
func (g *Engine) CheckEnvVar(name string) error {
	for _, pattern := range g.DenyEnvVars {
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			// An invalid pattern blocks.
			return fmt.Errorf("invalid env var deny pattern %q: %w", pattern, err)
		}
		if matched {
			return fmt.Errorf("environment variable %q matches denied pattern %q", name, pattern)
		}
	}
	return nil
}
