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

// Package templates defines document templates: named, ordered step lists
// loaded from YAML and planned into pipeline steps for one project.
package templates

import (
	"strings"

	"github.com/Knetic/govaluate"
	"github.com/cloudwego/abdoc/internal/parsers"
	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/project"
	"github.com/cloudwego/abdoc/llm/prompt"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Template struct {
	Name        string    `yaml:"name" json:"name"`
	Description string    `yaml:"description" json:"description"`
	Document    string    `yaml:"document" json:"document"` // key of the project document it fills
	Steps       []StepDef `yaml:"steps" json:"steps"`
	Source      string    `yaml:"-" json:"source"`
}

type StepDef struct {
	Name        string   `yaml:"name" json:"name"`
	Instruction string   `yaml:"instruction" json:"-"`
	Parser      string   `yaml:"parser,omitempty" json:"parser,omitempty"`
	Requires    []string `yaml:"requires,omitempty" json:"requires,omitempty"`
	// HasDependencies false isolates the step from all prior output.
	HasDependencies *bool  `yaml:"has_dependencies,omitempty" json:"has_dependencies,omitempty"`
	When            string `yaml:"when,omitempty" json:"when,omitempty"`
	SchemaHint      bool   `yaml:"schema_hint,omitempty" json:"schema_hint,omitempty"`
}

// TemplateData is what step instructions are rendered against.
type TemplateData struct {
	Project     *project.Project
	Description string // project.ExtendedDescription
	Branding    project.Branding
}

func NewTemplateData(p *project.Project) TemplateData {
	return TemplateData{Project: p, Description: p.ExtendedDescription(), Branding: p.Branding}
}

// Variables are the parameters available to `when` expressions.
func (d TemplateData) Variables() map[string]interface{} {
	p := d.Project
	return map[string]interface{}{
		"name":           p.Name,
		"type":           p.Type,
		"scope":          p.Scope,
		"targets":        p.Targets,
		"description":    p.Description,
		"has_colors":     d.Branding.Colors != nil,
		"has_typography": d.Branding.Typography != nil,
		"has_logo":       d.Branding.Logo != nil,
	}
}

// Parse decodes and checks a YAML template.
func Parse(data []byte, source string) (*Template, error) {
	var t Template
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.Wrapf(err, "decode template %s", source)
	}
	t.Source = source
	if err := t.Validate(); err != nil {
		return nil, errors.Wrapf(err, "template %s", source)
	}
	return &t, nil
}

// Validate checks the step graph and the syntax of every expression and
// instruction, without rendering anything.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("template name is empty")
	}
	if len(t.Steps) == 0 {
		return errors.Errorf("template %q has no steps", t.Name)
	}
	if t.Document == "" {
		t.Document = t.Name
	}
	specs := make([]pipeline.StepSpec, 0, len(t.Steps))
	for _, s := range t.Steps {
		if s.When != "" {
			if _, err := govaluate.NewEvaluableExpression(s.When); err != nil {
				return errors.Wrapf(err, "step %q: when", s.Name)
			}
		}
		if _, err := prompt.Parse(t.Name+"/"+s.Name, s.Instruction); err != nil {
			return err
		}
		specs = append(specs, s.spec())
	}
	return pipeline.ValidateSteps(specs)
}

func (s StepDef) spec() pipeline.StepSpec {
	return pipeline.StepSpec{
		Name:          s.Name,
		Instruction:   s.Instruction,
		RequiresSteps: s.Requires,
		Isolated:      s.HasDependencies != nil && !*s.HasDependencies,
	}
}

// Plan turns the template into the steps to run for one project. Steps whose
// `when` expression is false are left out; a remaining step may not require
// one of them.
func (t *Template) Plan(data TemplateData, reg *parsers.Registry) ([]pipeline.StepSpec, error) {
	vars := data.Variables()
	steps := make([]pipeline.StepSpec, 0, len(t.Steps))
	for _, s := range t.Steps {
		ok, err := s.enabled(vars)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		spec := s.spec()
		tpl, err := prompt.Parse(t.Name+"/"+s.Name, s.Instruction)
		if err != nil {
			return nil, err
		}
		if spec.Instruction, err = prompt.Render(tpl, data); err != nil {
			return nil, err
		}
		if s.Parser != "" {
			p, ok := reg.Get(s.Parser)
			if !ok {
				return nil, errors.Errorf("step %q: unknown parser %q", s.Name, s.Parser)
			}
			spec.Parser = p
			if s.SchemaHint {
				if hint := parsers.SchemaHint(p); hint != "" {
					spec.Instruction += "\n\n" + hint
				}
			}
		}
		steps = append(steps, spec)
	}
	if err := pipeline.ValidateSteps(steps); err != nil {
		return nil, errors.Wrapf(err, "plan %s", t.Name)
	}
	return steps, nil
}

func (s StepDef) enabled(vars map[string]interface{}) (bool, error) {
	if s.When == "" {
		return true, nil
	}
	expr, err := govaluate.NewEvaluableExpression(s.When)
	if err != nil {
		return false, errors.Wrapf(err, "step %q: when", s.Name)
	}
	v, err := expr.Evaluate(vars)
	if err != nil {
		return false, errors.Wrapf(err, "step %q: evaluate %q", s.Name, s.When)
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.Errorf("step %q: when %q is not a boolean", s.Name, s.When)
	}
	return b, nil
}
