package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/manimagic/manimagic/pkg/render"
)

type codeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleValidate(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.validator.Validate(req.Code))
}

func (s *Server) handleFix(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	fixed := s.validator.Fix(req.Code)
	c.JSON(http.StatusOK, gin.H{
		"code":       fixed.Source,
		"changed":    fixed.Changed,
		"applied":    fixed.Applied,
		"validation": s.validator.Validate(fixed.Source),
	})
}

func (s *Server) handleRules(c *gin.Context) {
	c.JSON(http.StatusOK, s.validator.Rules().Table())
}

func (s *Server) handleRunManim(c *gin.Context) {
	req, err := bindRenderRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No code provided"})
		return
	}
	if s.cfg.BlockOnSyntaxError {
		if res := s.validator.Validate(req.Code); res.Blocking() {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": res.Message, "validation": res})
			return
		}
	}

	video, err := s.renderer.Render(c.Request.Context(), req)
	if err != nil {
		s.renderFailed(c, err)
		return
	}

	c.Header("Content-Type", "video/mp4")
	c.Header("Content-Disposition", "inline; filename="+render.VideoFileName)
	c.Header("Cache-Control", "public, max-age=3600")
	// ServeContent answers Range requests and sets Accept-Ranges.
	http.ServeContent(c.Writer, c.Request, render.VideoFileName, time.Time{}, bytes.NewReader(video.Data))
}

func (s *Server) renderFailed(c *gin.Context, err error) {
	var rerr *render.Error
	switch {
	case errors.Is(err, render.ErrNoCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No code provided"})
	case errors.Is(err, render.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &rerr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": rerr.Message, "details": rerr.Details})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "render cancelled while waiting for a slot"})
	default:
		s.logger.Error("render failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error: " + err.Error()})
	}
}

// bindRenderRequest accepts the JSON body used by the playground and the
// multipart form used for uploads (code field plus repeated file parts).
func bindRenderRequest(c *gin.Context) (render.Request, error) {
	var req render.Request
	mediaType, _, _ := mime.ParseMediaType(c.ContentType())
	if mediaType != "multipart/form-data" {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			return req, fmt.Errorf("invalid request body: %w", err)
		}
		return req, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return req, fmt.Errorf("invalid multipart form: %w", err)
	}
	req.Code = firstValue(form.Value["code"])
	req.Scene = firstValue(form.Value["scene"])
	for _, fh := range form.File["file"] {
		f, err := fh.Open()
		if err != nil {
			return req, fmt.Errorf("open upload %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return req, fmt.Errorf("read upload %s: %w", fh.Filename, err)
		}
		req.Files = append(req.Files, render.NewFile(fh.Filename, data))
	}
	return req, nil
}

func firstValue(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}
