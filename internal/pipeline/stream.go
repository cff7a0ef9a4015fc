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
)

// Consumer receives streamed results. The pipeline waits for it to return
// before doing anything else, so a slow consumer throttles the run.
// A non-nil error aborts the run.
type Consumer func(ctx context.Context, result SectionResult) error

// RunStreaming executes steps like Run, but hands a started event and a
// completed result for every step to consume as they happen. After a
// failure no further events are emitted.
func (p *Pipeline) RunStreaming(ctx context.Context, steps []StepSpec, facts *ProjectFacts, consume Consumer) error {
	if err := p.prepare(steps); err != nil {
		return err
	}
	if consume == nil {
		consume = func(context.Context, SectionResult) error { return nil }
	}
	var completed CompletedLog
	for _, step := range steps {
		if err := consume(ctx, startedEvent(step.Name)); err != nil {
			return &ConsumerError{Step: step.Name, Err: err}
		}
		res, next, err := p.runStep(ctx, completed, step, facts)
		if err != nil {
			return err
		}
		completed = next
		if err := consume(ctx, res); err != nil {
			return &ConsumerError{Step: step.Name, Err: err}
		}
	}
	return nil
}

// Collect returns a Consumer appending every completed text result to dst
// and forwarding every event to next (which may be nil).
func Collect(dst *[]SectionResult, next Consumer) Consumer {
	return func(ctx context.Context, res SectionResult) error {
		if res.Status == StatusCompleted {
			*dst = append(*dst, res)
		}
		if next == nil {
			return nil
		}
		return next(ctx, res)
	}
}
