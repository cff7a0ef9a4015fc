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
	"encoding/json"
	"strings"
)

// AssembleContext renders the previous output a step is allowed to see.
//   - isolated steps get "".
//   - steps with RequiresSteps get those entries only, in completion order.
//   - every other step gets all completed entries.
func AssembleContext(completed CompletedLog, spec StepSpec) string {
	if spec.Isolated {
		return ""
	}
	var sb strings.Builder
	for _, s := range completed.entries {
		if len(spec.RequiresSteps) > 0 && !spec.requires(s.Name) {
			continue
		}
		writeBlock(&sb, s)
	}
	return sb.String()
}

func writeBlock(sb *strings.Builder, s CompletedStep) {
	sb.WriteString("## ")
	sb.WriteString(s.Name)
	sb.WriteString("\n\n")
	sb.WriteString(s.Content)
	sb.WriteString("\n\n---\n")
}

// ComposeRequest builds the final request text for a step. A nil facts
// omits the project details block.
func ComposeRequest(context string, facts *ProjectFacts, spec StepSpec) string {
	var sb strings.Builder
	if context != "" {
		sb.WriteString("You are generating content section by section.\n")
		sb.WriteString("Here is the previously generated content for context:\n\n")
		sb.WriteString("--- PREVIOUS CONTEXT ---\n")
		sb.WriteString(context)
		sb.WriteString("\n--- END PREVIOUS CONTEXT ---\n\n")
	}

	sb.WriteString("CURRENT TASK: Generate the '" + spec.Name + "' section.\n\n")

	if facts != nil {
		sb.WriteString("PROJECT DETAILS (from input 'data' object):\n")
		sb.WriteString(marshalFacts(facts))
		sb.WriteString("\n\n")
	}

	sb.WriteString("SPECIFIC INSTRUCTIONS FOR '" + spec.Name + "':\n")
	sb.WriteString(spec.Instruction)
	sb.WriteString("\n\n")

	sb.WriteString("Please generate *only* the content for the '" + spec.Name + "' section")
	if context != "" {
		sb.WriteString(", building upon the context provided above")
	}
	sb.WriteString(".")
	return sb.String()
}

func marshalFacts(facts *ProjectFacts) string {
	js, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		// only string fields; cannot fail
		return "{}"
	}
	return string(js)
}
