package config

import (
	"fmt"
	"log/slog"

	"github.com/manimagic/manimagic/pkg/governance"
	"github.com/manimagic/manimagic/pkg/render"
	"github.com/manimagic/manimagic/pkg/rules"
	"github.com/manimagic/manimagic/pkg/validator"
)

// NewValidator builds a validator from the configured rule table.
func (c *Config) NewValidator(logger *slog.Logger) (*validator.Validator, error) {
	table, err := rules.Open(c.Rules)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	return validator.New(validator.WithRules(table), validator.WithLogger(logger)), nil
}

// NewRenderer builds a renderer governed by the configured policy.
func (c *Config) NewRenderer(logger *slog.Logger) (*render.Renderer, error) {
	policy := c.Policy
	engine, err := governance.NewEngine(&policy)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	return render.New(c.Render, render.WithPolicy(engine), render.WithLogger(logger)), nil
}
