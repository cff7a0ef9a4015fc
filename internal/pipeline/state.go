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

import "fmt"

// StepSpec declares one unit of generation work. Declaration order is
// execution order; RequiresSteps may only name steps declared earlier.
type StepSpec struct {
	Name        string
	Instruction string

	// Parser turns the cleaned output into structured data. Optional.
	Parser Parser

	// RequiresSteps restricts the context to these earlier steps (set semantics).
	// Empty means "all previous steps".
	RequiresSteps []string

	// Isolated steps never see previous output, whatever RequiresSteps says.
	Isolated bool
}

// requires reports whether name is in the RequiresSteps set.
func (s StepSpec) requires(name string) bool {
	for _, r := range s.RequiresSteps {
		if r == name {
			return true
		}
	}
	return false
}

// CompletedStep is one entry of a run's completed log.
type CompletedStep struct {
	Name    string
	Content string
}

// CompletedLog is the append-only record of finished steps in execution order.
// Append never touches the receiver, so a log handed to AssembleContext is
// effectively immutable.
type CompletedLog struct {
	entries []CompletedStep
}

// Append returns a new log with step added at the end.
func (l CompletedLog) Append(step CompletedStep) CompletedLog {
	next := make([]CompletedStep, len(l.entries), len(l.entries)+1)
	copy(next, l.entries)
	return CompletedLog{entries: append(next, step)}
}

func (l CompletedLog) Len() int { return len(l.entries) }

// Entries returns a copy of the log entries.
func (l CompletedLog) Entries() []CompletedStep {
	return append([]CompletedStep(nil), l.entries...)
}

// NewCompletedLog builds a log from steps, in order.
func NewCompletedLog(steps ...CompletedStep) CompletedLog {
	var l CompletedLog
	for _, s := range steps {
		l = l.Append(s)
	}
	return l
}

// Kind is the SectionResult type tag.
type Kind string

const (
	KindEvent Kind = "event"
	KindText  Kind = "text"
)

// Status is the lifecycle position of a SectionResult.
type Status string

const (
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
)

// EventStepStarted is the Data of a started event.
const EventStepStarted = "step_started"

// SectionResult is the output for one step: once per step in batch mode,
// a started/completed pair in streaming mode.
type SectionResult struct {
	Name       string `json:"name"`
	Kind       Kind   `json:"type"`
	Status     Status `json:"status"`
	Data       string `json:"data"`
	Summary    string `json:"summary"`
	ParsedData any    `json:"parsedData,omitempty"`
}

// ProjectFacts is a read-only snapshot of the project being documented.
// Only the descriptive fields are sent to the backend.
type ProjectFacts struct {
	ProjectID   string `json:"-"`
	Description string `json:"description"`
	Targets     string `json:"targets"`
	Type        string `json:"type"`
	Scope       string `json:"scope"`
}

func summaryFor(name string, facts *ProjectFacts) string {
	if facts == nil || facts.ProjectID == "" {
		return name
	}
	return fmt.Sprintf("%s for Project %s", name, facts.ProjectID)
}

func startedEvent(name string) SectionResult {
	return SectionResult{
		Name:    name,
		Kind:    KindEvent,
		Status:  StatusStarted,
		Data:    EventStepStarted,
		Summary: "Starting " + name,
	}
}
