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

// Package project holds the projects documents are generated for and the
// stores that persist them.
package project

import (
	"strings"
	"time"

	"github.com/cloudwego/abdoc/internal/pipeline"
)

// DescriptionSection is the business plan section that extends a project's
// own description.
const DescriptionSection = "Project Description"

// BusinessPlan is the template whose document feeds ExtendedDescription.
const BusinessPlan = "business-plan"

type Project struct {
	ID          string               `json:"id"`
	UserID      string               `json:"userId"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	Targets     string               `json:"targets"`
	Type        string               `json:"type"`
	Scope       string               `json:"scope"`
	Documents   map[string]*Document `json:"documents,omitempty"`
	Branding    Branding             `json:"branding"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
}

// Section is a persisted completed step.
type Section struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Data       string `json:"data"`
	Summary    string `json:"summary"`
	ParsedData any    `json:"parsedData,omitempty"`
}

type Document struct {
	Sections  []Section `json:"sections"`
	Hash      string    `json:"hash,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Section returns the named section, if present.
func (d *Document) Section(name string) (Section, bool) {
	if d == nil {
		return Section{}, false
	}
	for _, s := range d.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}

// NewDocument keeps the completed sections of a run.
func NewDocument(results []pipeline.SectionResult, now time.Time) *Document {
	d := &Document{Sections: make([]Section, 0, len(results)), UpdatedAt: now}
	completed := make([]pipeline.SectionResult, 0, len(results))
	for _, r := range results {
		if r.Status != pipeline.StatusCompleted {
			continue
		}
		completed = append(completed, r)
		d.Sections = append(d.Sections, Section{
			Name:       r.Name,
			Type:       string(r.Kind),
			Data:       r.Data,
			Summary:    r.Summary,
			ParsedData: r.ParsedData,
		})
	}
	d.Hash = pipeline.Digest(completed)
	return d
}

// Facts is the project data sent to the model with every step.
func (p *Project) Facts() *pipeline.ProjectFacts {
	return &pipeline.ProjectFacts{
		ProjectID:   p.ID,
		Description: p.Description,
		Targets:     p.Targets,
		Type:        p.Type,
		Scope:       p.Scope,
	}
}

// ExtendedDescription appends the business plan's project description, when
// one was generated, to the project's own description.
func (p *Project) ExtendedDescription() string {
	var extra string
	if s, ok := p.Documents[BusinessPlan].Section(DescriptionSection); ok {
		extra = s.Data
	}
	return strings.TrimSpace(p.Description + "\n\n" + extra)
}

// Document returns the stored document for a template, or nil.
func (p *Project) Document(template string) *Document {
	return p.Documents[template]
}

func (p *Project) SetDocument(template string, d *Document) {
	if p.Documents == nil {
		p.Documents = make(map[string]*Document)
	}
	p.Documents[template] = d
}
