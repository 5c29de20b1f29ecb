// Package mcp exposes the validator, fixer and renderer as MCP tools.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with manimagic tools registered.
func NewServer(version string, t *Tools) *server.MCPServer {
	s := server.NewMCPServer(
		"manimagic",
		version,
		server.WithToolCapabilities(true),
	)

	s.AddTool(
		mcp.NewTool("manimagic/validate",
			mcp.WithDescription("Check a Manim scene script for syntax errors and Manim version incompatibilities"),
			mcp.WithString("code", mcp.Description("Python source to check")),
			mcp.WithString("path", mcp.Description("Path to a .py file to check (used when code is empty)")),
		),
		t.HandleValidate,
	)

	s.AddTool(
		mcp.NewTool("manimagic/fix",
			mcp.WithDescription("Apply the mechanical compatibility fixes to a Manim scene script"),
			mcp.WithString("code", mcp.Description("Python source to fix")),
			mcp.WithString("path", mcp.Description("Path to a .py file to fix (used when code is empty)")),
		),
		t.HandleFix,
	)

	s.AddTool(
		mcp.NewTool("manimagic/rules",
			mcp.WithDescription("List the active compatibility rules"),
		),
		t.HandleRules,
	)

	s.AddTool(
		mcp.NewTool("manimagic/schema",
			mcp.WithDescription("Export the JSON Schema of the compatibility rule table"),
		),
		t.HandleSchema,
	)

	if t.Renderer != nil {
		s.AddTool(
			mcp.NewTool("manimagic/render",
				mcp.WithDescription("Render a Manim scene to an MP4 file"),
				mcp.WithString("code", mcp.Description("Python source to render")),
				mcp.WithString("path", mcp.Description("Path to a .py file to render (used when code is empty)")),
				mcp.WithString("scene", mcp.Description("Scene class to render (default: first class in the code)")),
				mcp.WithString("out", mcp.Required(), mcp.Description("Where to write the MP4")),
			),
			t.HandleRender,
		)
	}

	return s
}
