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
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/llm/log"
	"github.com/cloudwego/abdoc/llm/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
)

var _ pipeline.Backend = (*ChatBackend)(nil)

type BackendOptions struct {
	Models       []ModelConfig
	DefaultModel string        // alias used when a request names no known model
	SysPrompt    prompt.Prompt // nil means prompt.PromptDocumentWriter
	Retries      int           // retries per call on transient failures, default: 0
	Usage        *UsageMeter   // optional

	// NewModel builds the chat model for a config, default: NewChatModel
	NewModel func(ModelConfig) (ChatModel, error)
}

// ChatBackend generates section text through an eino chain per configured model.
type ChatBackend struct {
	opts    BackendOptions
	byAlias map[string]ModelConfig

	mu      sync.Mutex
	runners map[string]compose.Runnable[*callInput, *schema.Message]
}

type callInput struct {
	system  string
	request string
}

func NewChatBackend(opts BackendOptions) (*ChatBackend, error) {
	if len(opts.Models) == 0 {
		return nil, errors.New("no model configured")
	}
	if opts.SysPrompt == nil {
		opts.SysPrompt = prompt.NewTextPrompt(prompt.PromptDocumentWriter)
	}
	if opts.NewModel == nil {
		opts.NewModel = NewChatModel
	}
	opts.Models = append([]ModelConfig(nil), opts.Models...)
	b := &ChatBackend{
		opts:    opts,
		byAlias: make(map[string]ModelConfig, len(opts.Models)),
		runners: make(map[string]compose.Runnable[*callInput, *schema.Message]),
	}
	for i, m := range opts.Models {
		if m.Name == "" {
			m.Name = m.ModelName
		}
		if m.Name == "" {
			return nil, errors.Errorf("model #%d has neither name nor model_name", i)
		}
		if _, dup := b.byAlias[m.Name]; dup {
			return nil, errors.Errorf("duplicate model alias %q", m.Name)
		}
		opts.Models[i] = m
		b.byAlias[m.Name] = m
	}
	if opts.DefaultModel != "" {
		if _, ok := b.byAlias[opts.DefaultModel]; !ok {
			return nil, errors.Errorf("default model %q is not configured", opts.DefaultModel)
		}
	}
	return b, nil
}

// Resolve picks the model for a request: alias, then endpoint name, then
// provider, then the default model, then the first configured one.
func (b *ChatBackend) Resolve(cfg pipeline.GenerateConfig) ModelConfig {
	if m, ok := b.byAlias[cfg.Model]; ok {
		return m
	}
	if cfg.Model != "" {
		for _, m := range b.opts.Models {
			if m.ModelName == cfg.Model {
				return m
			}
		}
	}
	if cfg.Provider != "" {
		typ := NewModelType(cfg.Provider)
		for _, m := range b.opts.Models {
			if m.APIType == typ {
				return m
			}
		}
	}
	if m, ok := b.byAlias[b.opts.DefaultModel]; ok {
		return m
	}
	return b.opts.Models[0]
}

func (b *ChatBackend) runner(ctx context.Context, m ModelConfig) (compose.Runnable[*callInput, *schema.Message], error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r, ok := b.runners[m.Name]; ok {
		return r, nil
	}
	cm, err := b.opts.NewModel(m)
	if err != nil {
		return nil, err
	}
	chain := compose.NewChain[*callInput, *schema.Message]()
	chain.AppendLambda(compose.InvokableLambda(func(ctx context.Context, in *callInput) ([]*schema.Message, error) {
		return []*schema.Message{
			schema.SystemMessage(in.system),
			schema.UserMessage(in.request),
		}, nil
	}))
	chain.AppendChatModel(cm)
	r, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "compile chain for model %q", m.Name)
	}
	b.runners[m.Name] = r
	return r, nil
}

func (b *ChatBackend) Generate(ctx context.Context, request string, cfg pipeline.GenerateConfig) (string, error) {
	m := withDefaults(b.Resolve(cfg))
	r, err := b.runner(ctx, m)
	if err != nil {
		return "", err
	}
	in := &callInput{system: b.opts.SysPrompt.String(), request: request}
	log.Debug("[User:%s] %s -> %s (%d bytes)", cfg.UserID, cfg.PromptType, m.Name, len(request))

	var lastErr error
	for attempt := 0; attempt <= b.opts.Retries; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt-1)) * time.Second
			if wait > 10*time.Second {
				wait = 10 * time.Second
			}
			log.Info("Retrying %s call (attempt %d/%d) in %s", m.Name, attempt+1, b.opts.Retries+1, wait)
			select {
			case <-ctx.Done():
				return "", errors.Wrap(ctx.Err(), "generate")
			case <-time.After(wait):
			}
		}
		out, err := b.invoke(ctx, r, in, m.Timeout)
		if err == nil {
			if b.opts.Usage != nil {
				var usage *schema.TokenUsage
				if out.ResponseMeta != nil {
					usage = out.ResponseMeta.Usage
				}
				b.opts.Usage.Record(cfg.UserID, cfg.PromptType, usage)
			}
			return out.Content, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
		log.Info("Retryable error from %s: %v", m.Name, err)
	}
	return "", errors.Wrapf(lastErr, "generate %s with %s", cfg.PromptType, m.Name)
}

func (b *ChatBackend) invoke(ctx context.Context, r compose.Runnable[*callInput, *schema.Message], in *callInput, timeout time.Duration) (*schema.Message, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	out, err := r.Invoke(callCtx, in, compose.WithCallbacks(CallbackHandler{}))
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, errors.New("empty response from model")
	}
	return out, nil
}

func (b *ChatBackend) Clean(raw string) string {
	return CleanText(raw)
}

// retryableStatus matches rate limiting and server-side HTTP statuses as the
// provider clients print them, e.g. "status code: 429" or "Error code: 503".
var retryableStatus = regexp.MustCompile(`(?i)\b(?:status(?: code)?|error code|http)\s*[:=]?\s*(?:429|5\d\d)\b`)

// isRetryable reports transport-level failures such as timeouts and resets,
// rate limiting, and 5xx responses.
func isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, s := range []string{
		"timeout",
		"connection reset",
		"connection refused",
		"operation timed out",
		"context deadline exceeded",
		"read tcp",
		"write tcp",
		"rate limit",
		"too many requests",
		"overloaded",
		"service unavailable",
		"bad gateway",
		"internal server error",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return retryableStatus.MatchString(msg)
}
