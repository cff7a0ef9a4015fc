/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package server exposes document generation over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/project"
	"github.com/cloudwego/abdoc/internal/service"
	"github.com/cloudwego/abdoc/internal/templates"
	"github.com/cloudwego/abdoc/llm"
	"github.com/cloudwego/abdoc/llm/log"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// UserHeader carries the caller's identity, set by the gateway in front.
const UserHeader = "X-User-ID"

type Options struct {
	Service *service.Service
	Usage   *llm.UsageMeter // optional, serves GET /usage

	// RatePerMinute limits generation requests per user, 0 disables it.
	RatePerMinute float64
	Burst         int
}

type Server struct {
	svc    *service.Service
	usage  *llm.UsageMeter
	quota  *quota
	engine *gin.Engine
}

func New(opts Options) *Server {
	s := &Server{
		svc:   opts.Service,
		usage: opts.Usage,
		quota: newQuota(opts.RatePerMinute, opts.Burst),
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLog())

	r.GET("/templates", s.listTemplates)

	api := r.Group("/", s.authenticate)
	api.GET("/usage", s.getUsage)
	api.GET("/projects", s.listProjects)
	api.POST("/projects", s.createProject)
	api.GET("/projects/:projectId", s.getProject)
	api.PUT("/projects/:projectId/branding", s.updateBranding)
	api.DELETE("/projects/:projectId/branding", s.deleteBranding)
	api.GET("/projects/:projectId/documents/:template", s.getDocument)
	api.DELETE("/projects/:projectId/documents/:template", s.deleteDocument)

	gen := api.Group("/", s.checkQuota)
	gen.GET("/projects/:projectId/documents/:template/stream", s.streamDocument)
	gen.POST("/projects/:projectId/documents/:template", s.generateDocument)
	gen.POST("/projects/:projectId/assets", s.generateAssets)

	s.engine = r
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Info("listening on %s", addr)
	select {
	case err := <-errc:
		return errors.Wrap(err, "serve")
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("%s %s %d %s", c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) authenticate(c *gin.Context) {
	if c.GetHeader(UserHeader) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "User not authenticated"})
		return
	}
	c.Next()
}

func userID(c *gin.Context) string {
	return c.GetHeader(UserHeader)
}

func (s *Server) checkQuota(c *gin.Context) {
	if !s.quota.allow(userID(c)) {
		log.Warn("quota exceeded for userId: %s", userID(c))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Quota exceeded"})
		return
	}
	c.Next()
}

func fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, project.ErrNotFound), errors.Is(err, templates.ErrUnknownTemplate):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidSelection):
		status = http.StatusBadRequest
	}
	log.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(status, gin.H{"message": err.Error()})
}

type templateView struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Document    string   `json:"document"`
	Steps       []string `json:"steps"`
}

func (s *Server) listTemplates(c *gin.Context) {
	out := make([]templateView, 0)
	for _, t := range s.svc.Templates() {
		v := templateView{Name: t.Name, Description: t.Description, Document: t.Document}
		for _, st := range t.Steps {
			v.Steps = append(v.Steps, st.Name)
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getUsage(c *gin.Context) {
	if s.usage == nil {
		c.JSON(http.StatusOK, llm.Usage{})
		return
	}
	c.JSON(http.StatusOK, s.usage.Get(userID(c)))
}

type createProjectRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Targets     string `json:"targets"`
	Type        string `json:"type"`
	Scope       string `json:"scope"`
}

func (s *Server) createProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	p, err := s.svc.CreateProject(c.Request.Context(), &project.Project{
		ID:          req.ID,
		UserID:      userID(c),
		Name:        req.Name,
		Description: req.Description,
		Targets:     req.Targets,
		Type:        req.Type,
		Scope:       req.Scope,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) listProjects(c *gin.Context) {
	list, err := s.svc.ListProjects(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	if list == nil {
		list = []*project.Project{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) updateBranding(c *gin.Context) {
	var sel service.BrandingSelection
	if err := c.ShouldBindJSON(&sel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	b, err := s.svc.UpdateBranding(c.Request.Context(), userID(c), c.Param("projectId"), sel)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

func (s *Server) deleteBranding(c *gin.Context) {
	if err := s.svc.DeleteBranding(c.Request.Context(), userID(c), c.Param("projectId")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Branding deleted successfully"})
}

func (s *Server) getProject(c *gin.Context) {
	p, err := s.svc.GetProject(c.Request.Context(), userID(c), c.Param("projectId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) getDocument(c *gin.Context) {
	d, err := s.svc.GetDocument(c.Request.Context(), userID(c), c.Param("projectId"), c.Param("template"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) deleteDocument(c *gin.Context) {
	if err := s.svc.DeleteDocument(c.Request.Context(), userID(c), c.Param("projectId"), c.Param("template")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document deleted successfully"})
}

func generateRequest(c *gin.Context) service.Request {
	return service.Request{
		UserID:    userID(c),
		ProjectID: c.Param("projectId"),
		Template:  c.Param("template"),
		Provider:  c.Query("provider"),
		Model:     c.Query("model"),
	}
}

func (s *Server) generateDocument(c *gin.Context) {
	p, err := s.svc.Generate(c.Request.Context(), generateRequest(c), nil)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p.Document(s.documentKey(c.Param("template"))))
}

// documentKey is the project document a template writes to.
func (s *Server) documentKey(template string) string {
	for _, t := range s.svc.Templates() {
		if t.Name == template {
			return t.Document
		}
	}
	return template
}

// streamDocument sends one "section" event per started and completed step,
// then "done" or "error". Errors before the first event get a plain JSON
// response with the matching status.
func (s *Server) streamDocument(c *gin.Context) {
	started := false
	consume := func(ctx context.Context, r pipeline.SectionResult) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !started {
			c.Header("Content-Type", "text/event-stream")
			c.Header("Cache-Control", "no-cache")
			c.Header("Connection", "keep-alive")
			c.Header("X-Accel-Buffering", "no")
			started = true
		}
		c.SSEvent("section", r)
		c.Writer.Flush()
		return nil
	}

	req := generateRequest(c)
	p, err := s.svc.Generate(c.Request.Context(), req, consume)
	if err != nil {
		if !started {
			fail(c, err)
			return
		}
		log.Error("stream %s for projectId %s: %v", req.Template, req.ProjectID, err)
		c.SSEvent("error", gin.H{"message": err.Error()})
		c.Writer.Flush()
		return
	}
	hash := ""
	if d := p.Document(s.documentKey(req.Template)); d != nil {
		hash = d.Hash
	}
	c.SSEvent("done", gin.H{"projectId": p.ID, "template": req.Template, "hash": hash})
	c.Writer.Flush()
}

func (s *Server) generateAssets(c *gin.Context) {
	assets, err := s.svc.GenerateBrandAssets(c.Request.Context(), service.Request{
		UserID:    userID(c),
		ProjectID: c.Param("projectId"),
		Provider:  c.Query("provider"),
		Model:     c.Query("model"),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assets)
}
