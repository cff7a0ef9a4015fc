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

// Package mcp serves document generation as MCP tools.
package mcp

import (
	"context"
	"encoding/json"

	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/project"
	"github.com/cloudwego/abdoc/internal/service"
	"github.com/cloudwego/abdoc/llm/log"
	"github.com/invopop/jsonschema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ToolListTemplates      = "list_templates"
	ToolGenerateDocument   = "generate_document"
	ToolGenerateBrandAsset = "generate_brand_assets"
	ToolGetDocument        = "get_document"
	ToolUpdateBranding     = "update_branding"
	ToolListProjects       = "list_projects"
)

type ServerOptions struct {
	ServerName    string
	ServerVersion string
	Verbose       bool
	Service       *service.Service
}

type Server struct {
	*server.MCPServer
	svc *service.Service
}

type Tool struct {
	mcp.Tool
	Handler server.ToolHandlerFunc
}

func NewServer(opts ServerOptions) *Server {
	if opts.Verbose {
		log.SetLogLevel(log.DebugLevel)
	}
	s := &Server{
		MCPServer: server.NewMCPServer(opts.ServerName, opts.ServerVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		svc: opts.Service,
	}
	for _, t := range s.tools() {
		s.AddTool(t.Tool, t.Handler)
	}
	return s
}

func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer)
}

// NewTool binds the call arguments to R and returns handler's result as JSON
// text. Handler errors become tool errors, not protocol errors.
func NewTool[R any, T any](name string, desc string, handler func(ctx context.Context, req R) (*T, error)) Tool {
	return Tool{
		Tool: mcp.NewToolWithRawSchema(name, desc, schemaOf[R]()),
		Handler: func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var req R
			if err := request.BindArguments(&req); err != nil {
				return nil, err
			}
			var final string
			var isError bool
			if resp, err := handler(withProgressToken(ctx, request), req); err != nil {
				isError = true
				final = err.Error()
			} else if js, err := json.Marshal(resp); err != nil {
				isError = true
				final = err.Error()
			} else {
				final = string(js)
			}
			return &mcp.CallToolResult{
				Content: []mcp.Content{
					mcp.NewTextContent(final),
				},
				IsError: isError,
			}, nil
		},
	}
}

func schemaOf[R any]() json.RawMessage {
	r := &jsonschema.Reflector{DoNotReference: true, Anonymous: true}
	s := r.Reflect(new(R))
	s.Version = ""
	js, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return js
}

type progressKey struct{}

func withProgressToken(ctx context.Context, request mcp.CallToolRequest) context.Context {
	if request.Params.Meta == nil || request.Params.Meta.ProgressToken == nil {
		return ctx
	}
	return context.WithValue(ctx, progressKey{}, request.Params.Meta.ProgressToken)
}

func (s *Server) tools() []Tool {
	return []Tool{
		NewTool(ToolListTemplates, "List the document templates and their steps.", s.listTemplates),
		NewTool(ToolGenerateDocument, "Generate a document for a project from a template, section by section. "+
			"Progress is reported for every started and completed section when a progress token is given.", s.generateDocument),
		NewTool(ToolGenerateBrandAsset, "Generate color palettes, typography pairings and logo propositions for a project.", s.generateBrandAssets),
		NewTool(ToolGetDocument, "Get the stored document a template produced for a project.", s.getDocument),
		NewTool(ToolUpdateBranding, "Choose the project's colors, typography and logo by id among the options "+
			ToolGenerateBrandAsset+" produced. The branding template uses the choice.", s.updateBranding),
		NewTool(ToolListProjects, "List the projects of a user.", s.listProjects),
	}
}

type ListTemplatesReq struct{}

type TemplateInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
}

type ListTemplatesResp struct {
	Templates []TemplateInfo `json:"templates"`
}

func (s *Server) listTemplates(_ context.Context, _ ListTemplatesReq) (*ListTemplatesResp, error) {
	resp := &ListTemplatesResp{Templates: []TemplateInfo{}}
	for _, t := range s.svc.Templates() {
		info := TemplateInfo{Name: t.Name, Description: t.Description}
		for _, st := range t.Steps {
			info.Steps = append(info.Steps, st.Name)
		}
		resp.Templates = append(resp.Templates, info)
	}
	return resp, nil
}

type GenerateDocumentReq struct {
	UserID    string `json:"user_id" jsonschema:"required"`
	ProjectID string `json:"project_id" jsonschema:"required"`
	Template  string `json:"template" jsonschema:"required,description=template name from list_templates"`
	Provider  string `json:"provider,omitempty" jsonschema:"description=model provider such as openai or claude"`
	Model     string `json:"model,omitempty" jsonschema:"description=configured model alias or model name"`
}

func (r GenerateDocumentReq) request() service.Request {
	return service.Request{UserID: r.UserID, ProjectID: r.ProjectID, Template: r.Template, Provider: r.Provider, Model: r.Model}
}

func (s *Server) generateDocument(ctx context.Context, req GenerateDocumentReq) (*project.Document, error) {
	p, err := s.svc.Generate(ctx, req.request(), progress(ctx))
	if err != nil {
		return nil, err
	}
	return s.svc.GetDocument(ctx, p.UserID, p.ID, req.Template)
}

// progress reports every streamed section as a progress notification and
// waits for each send before the run continues.
func progress(ctx context.Context) pipeline.Consumer {
	token, ok := ctx.Value(progressKey{}).(mcp.ProgressToken)
	if !ok {
		return nil
	}
	srv := server.ServerFromContext(ctx)
	if srv == nil {
		return nil
	}
	n := 0
	return func(ctx context.Context, r pipeline.SectionResult) error {
		n++
		err := srv.SendNotificationToClient(ctx, "notifications/progress", map[string]any{
			"progressToken": token,
			"progress":      n,
			"message":       string(r.Status) + ": " + r.Name,
		})
		if err != nil {
			log.Warn("send progress for %s: %v", r.Name, err)
		}
		return ctx.Err()
	}
}

type GenerateBrandAssetsReq struct {
	UserID    string `json:"user_id" jsonschema:"required"`
	ProjectID string `json:"project_id" jsonschema:"required"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
}

func (s *Server) generateBrandAssets(ctx context.Context, req GenerateBrandAssetsReq) (*service.BrandAssets, error) {
	return s.svc.GenerateBrandAssets(ctx, service.Request{
		UserID: req.UserID, ProjectID: req.ProjectID, Provider: req.Provider, Model: req.Model,
	})
}

type GetDocumentReq struct {
	UserID    string `json:"user_id" jsonschema:"required"`
	ProjectID string `json:"project_id" jsonschema:"required"`
	Template  string `json:"template" jsonschema:"required"`
}

func (s *Server) getDocument(ctx context.Context, req GetDocumentReq) (*project.Document, error) {
	return s.svc.GetDocument(ctx, req.UserID, req.ProjectID, req.Template)
}

type UpdateBrandingReq struct {
	UserID       string `json:"user_id" jsonschema:"required"`
	ProjectID    string `json:"project_id" jsonschema:"required"`
	ColorID      string `json:"color_id,omitempty" jsonschema:"description=id of a generated color palette"`
	TypographyID string `json:"typography_id,omitempty" jsonschema:"description=id of a generated typography pairing"`
	LogoID       string `json:"logo_id,omitempty" jsonschema:"description=id of a generated logo"`
}

func (s *Server) updateBranding(ctx context.Context, req UpdateBrandingReq) (*project.Branding, error) {
	return s.svc.UpdateBranding(ctx, req.UserID, req.ProjectID, service.BrandingSelection{
		ColorID: req.ColorID, TypographyID: req.TypographyID, LogoID: req.LogoID,
	})
}

type ListProjectsReq struct {
	UserID string `json:"user_id" jsonschema:"required"`
}

type ProjectInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type ListProjectsResp struct {
	Projects []ProjectInfo `json:"projects"`
}

func (s *Server) listProjects(ctx context.Context, req ListProjectsReq) (*ListProjectsResp, error) {
	list, err := s.svc.ListProjects(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	resp := &ListProjectsResp{Projects: []ProjectInfo{}}
	for _, p := range list {
		resp.Projects = append(resp.Projects, ProjectInfo{ID: p.ID, Name: p.Name, Description: p.Description})
	}
	return resp, nil
}
