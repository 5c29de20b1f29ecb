package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/manimagic/manimagic/pkg/render"
	"github.com/manimagic/manimagic/pkg/rules"
	"github.com/manimagic/manimagic/pkg/validator"
)

// Renderer renders scene code to video.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Video, error)
}

// Tools holds what the tool handlers operate on. Renderer may be nil, in
// which case the render tool is not offered.
type Tools struct {
	Validator *validator.Validator
	Renderer  Renderer
}

// HandleValidate implements the manimagic/validate MCP tool.
func (t *Tools) HandleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := sourceArg(req.GetArguments())
	if err != nil {
		return errorResult(err.Error()), nil
	}
	res := t.Validator.Validate(src)
	data, _ := json.MarshalIndent(res, "", "  ")
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.NewTextContent(string(data))},
		IsError: res.Blocking(),
	}, nil
}

// HandleFix implements the manimagic/fix MCP tool.
func (t *Tools) HandleFix(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := sourceArg(req.GetArguments())
	if err != nil {
		return errorResult(err.Error()), nil
	}
	fixed := t.Validator.Fix(src)
	response := map[string]any{
		"code":       fixed.Source,
		"changed":    fixed.Changed,
		"applied":    fixed.Applied,
		"validation": t.Validator.Validate(fixed.Source),
	}
	data, _ := json.MarshalIndent(response, "", "  ")
	return textResult(string(data)), nil
}

// HandleRules implements the manimagic/rules MCP tool.
func (t *Tools) HandleRules(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(t.Validator.Rules().Table(), "", "  ")
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleSchema implements the manimagic/schema MCP tool.
func (t *Tools) HandleSchema(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := rules.GenerateJSONSchema()
	if err != nil {
		return errorResult(err.Error()), nil
	}
	return textResult(string(data)), nil
}

// HandleRender implements the manimagic/render MCP tool.
func (t *Tools) HandleRender(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.Renderer == nil {
		return errorResult("rendering is not available"), nil
	}
	args := req.GetArguments()
	out, _ := args["out"].(string)
	if out == "" {
		return errorResult("out argument is required"), nil
	}
	src, err := sourceArg(args)
	if err != nil {
		return errorResult(err.Error()), nil
	}
	scene, _ := args["scene"].(string)

	video, err := t.Renderer.Render(ctx, render.Request{Code: src, Scene: scene})
	if err != nil {
		var rerr *render.Error
		if errors.As(err, &rerr) {
			data, _ := json.MarshalIndent(rerr, "", "  ")
			return errorResult(string(data)), nil
		}
		return errorResult(err.Error()), nil
	}
	if err := os.WriteFile(out, video.Data, 0o644); err != nil {
		return errorResult(fmt.Sprintf("write video: %s", err)), nil
	}

	response := map[string]any{
		"out":      out,
		"scene":    video.Scene,
		"bytes":    len(video.Data),
		"duration": video.Duration.String(),
	}
	data, _ := json.MarshalIndent(response, "", "  ")
	return textResult(string(data)), nil
}

// sourceArg returns the code argument, or the contents of the path
// argument when code is empty.
func sourceArg(args map[string]any) (string, error) {
	if code, _ := args["code"].(string); code != "" {
		return code, nil
	}
	path, _ := args["path"].(string)
	if path == "" {
		return "", errors.New("code or path argument is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(msg),
		},
		IsError: true,
	}
}
