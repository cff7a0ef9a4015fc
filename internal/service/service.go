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

// Package service runs document templates for stored projects and persists
// the results.
package service

import (
	"context"
	"time"

	"github.com/cloudwego/abdoc/internal/parsers"
	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/project"
	"github.com/cloudwego/abdoc/internal/templates"
	"github.com/cloudwego/abdoc/llm/log"
	"github.com/pkg/errors"
)

// BrandAssetsTemplate generates the options GenerateBrandAssets returns.
const BrandAssetsTemplate = "brand-assets"

type Options struct {
	Store     project.Store
	Templates *templates.Registry
	Parsers   *parsers.Registry // default: parsers.NewRegistry()
	Backend   pipeline.Backend
}

type Service struct {
	store     project.Store
	templates *templates.Registry
	parsers   *parsers.Registry
	backend   pipeline.Backend
	now       func() time.Time
}

func New(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Templates == nil || opts.Backend == nil {
		return nil, errors.New("service: store, templates and backend are required")
	}
	if opts.Parsers == nil {
		opts.Parsers = parsers.NewRegistry()
	}
	return &Service{
		store:     opts.Store,
		templates: opts.Templates,
		parsers:   opts.Parsers,
		backend:   opts.Backend,
		now:       time.Now,
	}, nil
}

// Request names the project and template to generate, and optionally the
// model to generate with.
type Request struct {
	UserID    string `json:"userId"`
	ProjectID string `json:"projectId"`
	Template  string `json:"template"`
	Provider  string `json:"provider,omitempty"`
	Model     string `json:"model,omitempty"`
}

func (s *Service) Templates() []*templates.Template {
	return s.templates.List()
}

// WatchTemplates reloads the template registry on local file changes until
// ctx is done.
func (s *Service) WatchTemplates(ctx context.Context) error {
	return s.templates.Watch(ctx)
}

// Generate runs the template for the project. With a consumer the run is
// streamed to it, otherwise it runs in batch. Only a fully successful run is
// persisted: its completed sections replace the project's document.
func (s *Service) Generate(ctx context.Context, req Request, consume pipeline.Consumer) (*project.Project, error) {
	tpl, results, err := s.run(ctx, req, consume)
	if err != nil {
		return nil, err
	}
	doc := project.NewDocument(results, s.now())
	// the run can take minutes; merge into the project as stored now
	p, err := s.store.Update(ctx, req.UserID, req.ProjectID, func(p *project.Project) error {
		p.SetDocument(tpl.Document, doc)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "save project")
	}
	log.Info("Completed %s generation for projectId %s", tpl.Name, p.ID)
	return p, nil
}

func (s *Service) run(ctx context.Context, req Request, consume pipeline.Consumer) (*templates.Template, []pipeline.SectionResult, error) {
	log.Info("Generating %s for userId: %s, projectId: %s", req.Template, req.UserID, req.ProjectID)
	p, err := s.store.Get(ctx, req.UserID, req.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	tpl, err := s.templates.Get(req.Template)
	if err != nil {
		return nil, nil, err
	}
	steps, err := tpl.Plan(templates.NewTemplateData(p), s.parsers)
	if err != nil {
		return nil, nil, err
	}
	pl := pipeline.New(s.backend, pipeline.GenerateConfig{
		Provider: req.Provider,
		Model:    req.Model,
		UserID:   req.UserID,
	})

	var results []pipeline.SectionResult
	if consume != nil {
		err = pl.RunStreaming(ctx, steps, p.Facts(), pipeline.Collect(&results, consume))
	} else {
		results, err = pl.Run(ctx, steps, p.Facts())
	}
	if err != nil {
		return nil, nil, err
	}
	return tpl, results, nil
}

// BrandAssets are the generated branding options to choose from.
type BrandAssets struct {
	Colors     []project.Color      `json:"colors"`
	Typography []project.Typography `json:"typography"`
	Logos      []project.Logo       `json:"logos"`
}

// GenerateBrandAssets runs the brand-assets template in batch and stores the
// parsed options on the project's branding.
func (s *Service) GenerateBrandAssets(ctx context.Context, req Request) (*BrandAssets, error) {
	req.Template = BrandAssetsTemplate
	tpl, results, err := s.run(ctx, req, nil)
	if err != nil {
		return nil, err
	}

	assets := &BrandAssets{}
	for _, r := range results {
		switch v := r.ParsedData.(type) {
		case project.ColorsTypography:
			assets.Colors = v.Colors
			assets.Typography = v.Typography
		case []project.Logo:
			assets.Logos = v
		case pipeline.ParseFailure:
			return nil, errors.Errorf("section %q could not be parsed", r.Name)
		}
	}
	if assets.Colors == nil || assets.Logos == nil {
		return nil, errors.Errorf("template %s did not produce colors and logos", tpl.Name)
	}

	doc := project.NewDocument(results, s.now())
	_, err = s.store.Update(ctx, req.UserID, req.ProjectID, func(p *project.Project) error {
		p.Branding.GeneratedColors = assets.Colors
		p.Branding.GeneratedTypography = assets.Typography
		p.Branding.GeneratedLogos = assets.Logos
		p.SetDocument(tpl.Document, doc)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "save project")
	}
	return assets, nil
}

// GetDocument returns the project's document for a template, which is empty
// when it was never generated.
func (s *Service) GetDocument(ctx context.Context, userID, projectID, template string) (*project.Document, error) {
	tpl, err := s.templates.Get(template)
	if err != nil {
		return nil, err
	}
	p, err := s.store.Get(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if d := p.Document(tpl.Document); d != nil {
		return d, nil
	}
	return &project.Document{Sections: []project.Section{}}, nil
}

// DeleteDocument resets the project's document for a template to empty.
// Deleting the brand-assets document also resets the project's branding,
// chosen and generated.
func (s *Service) DeleteDocument(ctx context.Context, userID, projectID, template string) error {
	tpl, err := s.templates.Get(template)
	if err != nil {
		return err
	}
	_, err = s.store.Update(ctx, userID, projectID, func(p *project.Project) error {
		p.SetDocument(tpl.Document, &project.Document{Sections: []project.Section{}, UpdatedAt: s.now()})
		if tpl.Name == BrandAssetsTemplate {
			p.Branding = project.Branding{}
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("Deleted %s document for projectId %s", tpl.Name, projectID)
	return nil
}

// ErrInvalidSelection reports a branding choice that is not among the
// generated options.
var ErrInvalidSelection = errors.New("invalid branding selection")

// BrandingSelection picks generated options by id. An empty id keeps the
// current choice.
type BrandingSelection struct {
	ColorID      string `json:"colorId,omitempty"`
	TypographyID string `json:"typographyId,omitempty"`
	LogoID       string `json:"logoId,omitempty"`
}

func (sel BrandingSelection) apply(b *project.Branding) error {
	if sel.ColorID != "" {
		c, ok := findByID(b.GeneratedColors, sel.ColorID, func(c project.Color) string { return c.ID })
		if !ok {
			return errors.Wrapf(ErrInvalidSelection, "color %q was not generated", sel.ColorID)
		}
		b.Colors = &c
	}
	if sel.TypographyID != "" {
		t, ok := findByID(b.GeneratedTypography, sel.TypographyID, func(t project.Typography) string { return t.ID })
		if !ok {
			return errors.Wrapf(ErrInvalidSelection, "typography %q was not generated", sel.TypographyID)
		}
		b.Typography = &t
	}
	if sel.LogoID != "" {
		l, ok := findByID(b.GeneratedLogos, sel.LogoID, func(l project.Logo) string { return l.ID })
		if !ok {
			return errors.Wrapf(ErrInvalidSelection, "logo %q was not generated", sel.LogoID)
		}
		b.Logo = &l
	}
	return nil
}

func findByID[T any](opts []T, id string, idOf func(T) string) (T, bool) {
	for _, o := range opts {
		if idOf(o) == id {
			return o, true
		}
	}
	var zero T
	return zero, false
}

// UpdateBranding chooses the project's colors, typography and logo among the
// options GenerateBrandAssets produced. Nothing changes when any id is unknown.
func (s *Service) UpdateBranding(ctx context.Context, userID, projectID string, sel BrandingSelection) (*project.Branding, error) {
	if sel == (BrandingSelection{}) {
		return nil, errors.Wrap(ErrInvalidSelection, "nothing selected")
	}
	p, err := s.store.Update(ctx, userID, projectID, func(p *project.Project) error {
		return sel.apply(&p.Branding)
	})
	if err != nil {
		return nil, err
	}
	log.Info("Updated branding for projectId %s", projectID)
	return &p.Branding, nil
}

// DeleteBranding resets the project's branding and its brand-assets document.
func (s *Service) DeleteBranding(ctx context.Context, userID, projectID string) error {
	return s.DeleteDocument(ctx, userID, projectID, BrandAssetsTemplate)
}

// CreateProject stores a new project for the user.
func (s *Service) CreateProject(ctx context.Context, p *project.Project) (*project.Project, error) {
	return s.store.Create(ctx, p)
}

// ListProjects returns the user's projects.
func (s *Service) ListProjects(ctx context.Context, userID string) ([]*project.Project, error) {
	return s.store.List(ctx, userID)
}

func (s *Service) GetProject(ctx context.Context, userID, projectID string) (*project.Project, error) {
	return s.store.Get(ctx, userID, projectID)
}
