// Package main provides the manimagic-mcp binary, an MCP server for AI agents.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/manimagic/manimagic/pkg/config"
	mmcp "github.com/manimagic/manimagic/pkg/mcp"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("MANIMAGIC_CONFIG"))
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	logger := cfg.Log.NewLogger(os.Stderr)

	v, err := cfg.NewValidator(logger)
	if err != nil {
		return err
	}
	r, err := cfg.NewRenderer(logger)
	if err != nil {
		return err
	}

	s := mmcp.NewServer(version, &mmcp.Tools{Validator: v, Renderer: r})
	return server.ServeStdio(s)
}
