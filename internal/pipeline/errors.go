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

// BackendError reports a failed generation call. The run is aborted.
type BackendError struct {
	Step string
	Err  error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("step %q: generation failed: %v", e.Step, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Cause implements the github.com/pkg/errors causer interface.
func (e *BackendError) Cause() error { return e.Err }

// ConsumerError reports a streaming consumer that refused an event.
type ConsumerError struct {
	Step string
	Err  error
}

func (e *ConsumerError) Error() string {
	return fmt.Sprintf("step %q: consumer failed: %v", e.Step, e.Err)
}

func (e *ConsumerError) Unwrap() error { return e.Err }

func (e *ConsumerError) Cause() error { return e.Err }

// SpecError reports a step list that cannot be run as declared.
type SpecError struct {
	Index  int
	Step   string
	Reason string
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("invalid step %d (%q): %s", e.Index, e.Step, e.Reason)
}
