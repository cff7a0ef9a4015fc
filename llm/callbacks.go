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

	"github.com/cloudwego/abdoc/llm/log"
	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

/*
	type Handler interface {
		OnStart(ctx context.Context, info *RunInfo, input CallbackInput) context.Context
		OnEnd(ctx context.Context, info *RunInfo, output CallbackOutput) context.Context

		OnError(ctx context.Context, info *RunInfo, err error) context.Context

		OnStartWithStreamInput(ctx context.Context, info *RunInfo,
			input *schema.StreamReader[CallbackInput]) context.Context
		OnEndWithStreamOutput(ctx context.Context, info *RunInfo,
			output *schema.StreamReader[CallbackOutput]) context.Context
	}
*/

type CallbackHandler struct{}

var _ callbacks.Handler = (*CallbackHandler)(nil)

func (h CallbackHandler) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if cb := model.ConvCallbackInput(input); cb != nil {
		log.Debug("<OnStart> %s/%s messages=%d", info.Component, info.Name, len(cb.Messages))
		return ctx
	}
	log.Debug("<OnStart> %+v", info)
	return ctx
}

func (h CallbackHandler) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if cb := model.ConvCallbackOutput(output); cb != nil && cb.TokenUsage != nil {
		log.Debug("<OnEnd> %s/%s tokens=%d", info.Component, info.Name, cb.TokenUsage.TotalTokens)
		return ctx
	}
	log.Debug("<OnEnd> %+v", info)
	return ctx
}

func (h CallbackHandler) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	log.Error("<OnError> %+v: %v", info, err)
	return ctx
}

func (h CallbackHandler) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func (h CallbackHandler) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}
