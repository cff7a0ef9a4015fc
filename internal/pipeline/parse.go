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

	"github.com/cloudwego/abdoc/llm/log"
)

// Parser turns the cleaned text of a step into structured data.
type Parser interface {
	Parse(text string) (any, error)
}

// ParserFunc adapts a plain function to Parser.
type ParserFunc func(text string) (any, error)

func (f ParserFunc) Parse(text string) (any, error) { return f(text) }

// ParseErrorMessage is the Error of every ParseFailure.
const ParseErrorMessage = "Parsing error"

// ParseFailure is the fallback payload recorded when a step's parser fails.
type ParseFailure struct {
	Error   string `json:"error"`
	Content string `json:"content"`
}

// ParseOutput is the result of ParseResult.
type ParseOutput struct {
	Value  any
	Failed bool
}

// ParseResult runs the step's parser on raw. It never fails: a parser error
// or panic is converted into a ParseFailure value.
func ParseResult(raw string, spec StepSpec) (out ParseOutput) {
	if spec.Parser == nil {
		return ParseOutput{}
	}
	defer func() {
		if r := recover(); r != nil {
			out = parseFailed(raw, spec.Name, fmt.Errorf("panic: %v", r))
		}
	}()
	v, err := spec.Parser.Parse(raw)
	if err != nil {
		return parseFailed(raw, spec.Name, err)
	}
	return ParseOutput{Value: v}
}

func parseFailed(raw, step string, err error) ParseOutput {
	log.Error("Error parsing %s: %v", step, err)
	return ParseOutput{
		Value:  ParseFailure{Error: ParseErrorMessage, Content: raw},
		Failed: true,
	}
}
