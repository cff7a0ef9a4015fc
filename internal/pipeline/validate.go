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
	"fmt"
	"strings"
)

// ValidateSteps checks that steps can run in declaration order:
// names are non-empty and unique, and every RequiresSteps entry names a step
// declared before the one requiring it.
func ValidateSteps(steps []StepSpec) error {
	declared := make(map[string]int, len(steps))
	for i, s := range steps {
		if strings.TrimSpace(s.Name) == "" {
			return &SpecError{Index: i, Step: s.Name, Reason: "step name is empty"}
		}
		if j, ok := declared[s.Name]; ok {
			return &SpecError{Index: i, Step: s.Name, Reason: fmt.Sprintf("duplicate step name (first declared at %d)", j)}
		}
		for _, req := range s.RequiresSteps {
			if req == s.Name {
				return &SpecError{Index: i, Step: s.Name, Reason: "step requires itself"}
			}
			if _, ok := declared[req]; !ok {
				reason := fmt.Sprintf("requires %q, which is not declared", req)
				if later(steps[i+1:], req) {
					reason = fmt.Sprintf("requires %q, which is declared later", req)
				}
				return &SpecError{Index: i, Step: s.Name, Reason: reason}
			}
		}
		declared[s.Name] = i
	}
	return nil
}

func later(steps []StepSpec, name string) bool {
	for _, s := range steps {
		if s.Name == name {
			return true
		}
	}
	return false
}
