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

import "context"

// GenerateConfig selects the model for a call and identifies the caller
// for quota and telemetry. The pipeline treats it as opaque.
type GenerateConfig struct {
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	PromptType string `json:"prompt_type,omitempty"`
}

// Backend is the text-generation service called once per step.
type Backend interface {
	// Generate sends request and returns the raw generated text.
	Generate(ctx context.Context, request string, cfg GenerateConfig) (string, error)
	// Clean strips transport and formatting artifacts. It never fails.
	Clean(raw string) string
}
