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

package llm

import (
	"sort"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// Usage is the accumulated token spend of one user.
type Usage struct {
	Calls            int            `json:"calls"`
	PromptTokens     int            `json:"prompt_tokens"`
	CompletionTokens int            `json:"completion_tokens"`
	TotalTokens      int            `json:"total_tokens"`
	ByPromptType     map[string]int `json:"by_prompt_type,omitempty"`
}

// UsageMeter records token usage per user. The zero value is ready to use.
type UsageMeter struct {
	mu    sync.Mutex
	users map[string]*Usage
}

func NewUsageMeter() *UsageMeter {
	return &UsageMeter{}
}

// Record adds one call to the user's totals. A nil usage still counts the call.
func (m *UsageMeter) Record(userID, promptType string, usage *schema.TokenUsage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.users == nil {
		m.users = make(map[string]*Usage)
	}
	u := m.users[userID]
	if u == nil {
		u = &Usage{ByPromptType: make(map[string]int)}
		m.users[userID] = u
	}
	u.Calls++
	if usage == nil {
		return
	}
	u.PromptTokens += usage.PromptTokens
	u.CompletionTokens += usage.CompletionTokens
	u.TotalTokens += usage.TotalTokens
	if promptType != "" {
		u.ByPromptType[promptType] += usage.TotalTokens
	}
}

// Get returns a copy of the user's totals.
func (m *UsageMeter) Get(userID string) Usage {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.users[userID]
	if u == nil {
		return Usage{}
	}
	cp := *u
	cp.ByPromptType = make(map[string]int, len(u.ByPromptType))
	for k, v := range u.ByPromptType {
		cp.ByPromptType[k] = v
	}
	return cp
}

// Users lists every user with recorded usage, sorted.
func (m *UsageMeter) Users() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
