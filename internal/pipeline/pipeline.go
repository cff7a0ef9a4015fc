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

package pipeline

import (
	"context"
	"strings"

	"github.com/cloudwego/abdoc/llm/log"
	"github.com/pkg/errors"
)

// Pipeline runs step lists against a Backend, one step at a time in
// declaration order. It keeps no state between runs, so independent runs
// may share one Pipeline.
type Pipeline struct {
	Backend Backend
	// Config is passed to every backend call. An empty PromptType is
	// replaced by the step name.
	Config GenerateConfig
}

// New returns a Pipeline calling backend with cfg.
func New(backend Backend, cfg GenerateConfig) *Pipeline {
	return &Pipeline{Backend: backend, Config: cfg}
}

// Run executes steps and returns one SectionResult per step. A backend
// failure aborts the run and no results are returned.
func (p *Pipeline) Run(ctx context.Context, steps []StepSpec, facts *ProjectFacts) ([]SectionResult, error) {
	if err := p.prepare(steps); err != nil {
		return nil, err
	}
	var completed CompletedLog
	results := make([]SectionResult, 0, len(steps))
	for _, step := range steps {
		res, next, err := p.runStep(ctx, completed, step, facts)
		if err != nil {
			return nil, err
		}
		completed = next
		results = append(results, res)
	}
	return results, nil
}

func (p *Pipeline) prepare(steps []StepSpec) error {
	if p.Backend == nil {
		return errors.New("pipeline: backend is nil")
	}
	if err := ValidateSteps(steps); err != nil {
		return errors.Wrap(err, "pipeline")
	}
	return nil
}

// runStep performs assemble, compose, generate, clean, append and parse for
// one step and returns its completed result with the grown log.
func (p *Pipeline) runStep(ctx context.Context, completed CompletedLog, step StepSpec, facts *ProjectFacts) (SectionResult, CompletedLog, error) {
	prior := AssembleContext(completed, step)
	logContext(completed, step)

	request := ComposeRequest(prior, facts, step)

	cfg := p.Config
	if cfg.PromptType == "" {
		cfg.PromptType = step.Name
	}
	log.Info("Generating section '%s'", step.Name)
	raw, err := p.Backend.Generate(ctx, request, cfg)
	if err != nil {
		log.Error("Generation of section '%s' failed: %v", step.Name, err)
		return SectionResult{}, completed, &BackendError{Step: step.Name, Err: err}
	}
	content := p.Backend.Clean(raw)
	completed = completed.Append(CompletedStep{Name: step.Name, Content: content})

	parsed := ParseResult(content, step)
	if step.Parser != nil && !parsed.Failed {
		log.Info("Successfully parsed %s", step.Name)
	}

	return SectionResult{
		Name:       step.Name,
		Kind:       KindText,
		Status:     StatusCompleted,
		Data:       content,
		Summary:    summaryFor(step.Name, facts),
		ParsedData: parsed.Value,
	}, completed, nil
}

func logContext(completed CompletedLog, step StepSpec) {
	switch {
	case step.Isolated:
		log.Debug("No context needed for step '%s' (no dependencies)", step.Name)
	case len(step.RequiresSteps) > 0:
		var names []string
		for _, s := range completed.entries {
			if step.requires(s.Name) {
				names = append(names, s.Name)
			}
		}
		log.Debug("Built context for step '%s' from %d required steps: [%s]", step.Name, len(names), strings.Join(names, ", "))
	default:
		log.Debug("Built context for step '%s' from all %d previous steps", step.Name, completed.Len())
	}
}
