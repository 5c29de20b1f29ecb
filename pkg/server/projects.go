package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/manimagic/manimagic/pkg/community"
)

func (s *Server) storeFailed(c *gin.Context, err error) {
	switch {
	case errors.Is(err, community.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, community.ErrInvalidProject):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("project store failed", "route", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func (s *Server) handleListProjects(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Query("mine") == "true" {
		user := c.GetHeader(userHeader)
		if user == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": userHeader + " header required"})
			return
		}
		projects, err := s.store.ListByUser(ctx, user)
		if err != nil {
			s.storeFailed(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"projects": projects})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	projects, err := s.store.List(ctx, community.ListOptions{
		Sort:   community.ParseSort(c.Query("sort")),
		Tag:    c.Query("tag"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.storeFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var np community.NewProject
	if err := c.ShouldBindJSON(&np); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	p, err := s.store.Create(c.Request.Context(), c.GetHeader(userHeader), np)
	if err != nil {
		s.storeFailed(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": p, "validation": s.validator.Validate(p.Code)})
}

func (s *Server) handleGetProject(c *gin.Context) {
	ctx := c.Request.Context()
	id, viewer := c.Param("id"), c.GetHeader(userHeader)

	if _, err := s.store.Get(ctx, id, viewer); err != nil {
		s.storeFailed(c, err)
		return
	}
	if err := s.store.IncrementViews(ctx, id); err != nil {
		s.storeFailed(c, err)
		return
	}
	p, err := s.store.Get(ctx, id, viewer)
	if err != nil {
		s.storeFailed(c, err)
		return
	}

	liked := false
	if viewer != "" {
		if liked, err = s.store.HasLiked(ctx, id, viewer); err != nil {
			s.storeFailed(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"project": p, "liked": liked})
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	var upd community.ProjectUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	p, err := s.store.Update(c.Request.Context(), c.Param("id"), c.GetHeader(userHeader), upd)
	if err != nil {
		s.storeFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p, "validation": s.validator.Validate(p.Code)})
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("id"), c.GetHeader(userHeader)); err != nil {
		s.storeFailed(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleToggleLike(c *gin.Context) {
	liked, count, err := s.store.ToggleLike(c.Request.Context(), c.Param("id"), c.GetHeader(userHeader))
	if err != nil {
		s.storeFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked, "likes_count": count})
}
