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

// Package parsers turns model replies into structured section data.
package parsers

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"

	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/project"
	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// Parser is a pipeline parser that may describe its output as a JSON schema.
type Parser interface {
	pipeline.Parser
	// Schema is nil when the output shape is free-form.
	Schema() *jsonschema.Schema
}

// ExtractJSON returns the JSON payload of a model reply: the body of a
// fenced json block when present, else the first balanced object or array.
func ExtractJSON(text string) (string, error) {
	if body, ok := fenced(text); ok {
		text = body
	}
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", errors.New("no JSON value found")
	}
	end, err := balanced(text[start:])
	if err != nil {
		return "", err
	}
	return text[start : start+end], nil
}

func fenced(text string) (string, bool) {
	const open = "```"
	i := strings.Index(text, open)
	if i < 0 {
		return "", false
	}
	rest := text[i+len(open):]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return "", false
	}
	lang := strings.TrimSpace(rest[:nl])
	if lang != "" && !strings.EqualFold(lang, "json") {
		return "", false
	}
	body := rest[nl+1:]
	if j := strings.Index(body, open); j >= 0 {
		body = body[:j]
	}
	return body, true
}

// balanced returns the length of the JSON value at the start of s.
func balanced(s string) (int, error) {
	var (
		depth    int
		inString bool
		escaped  bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		}
	}
	return 0, errors.New("unterminated JSON value")
}

type jsonParser struct{}

// JSON decodes the extracted payload into generic values.
var JSON Parser = jsonParser{}

func (jsonParser) Parse(text string) (any, error) {
	payload, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, errors.Wrap(err, "decode JSON")
	}
	return v, nil
}

func (jsonParser) Schema() *jsonschema.Schema { return nil }

// Typed decodes the extracted payload into T.
type Typed[T any] struct {
	// Check rejects decoded values that are well-formed but unusable.
	Check func(T) error
}

func (p Typed[T]) Parse(text string) (any, error) {
	payload, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal([]byte(payload), &v); err != nil {
		return nil, errors.Wrapf(err, "decode %T", v)
	}
	if p.Check != nil {
		if err := p.Check(v); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (p Typed[T]) Schema() *jsonschema.Schema {
	r := &jsonschema.Reflector{DoNotReference: true, Anonymous: true}
	return r.Reflect(new(T))
}

// SchemaHint renders an instruction appendix describing p's output, or ""
// when p has no schema.
func SchemaHint(p Parser) string {
	s := p.Schema()
	if s == nil {
		return ""
	}
	bs, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return ""
	}
	return "Respond with JSON only. The JSON must validate against this schema:\n" + string(bs)
}

const (
	NameJSON             = "json"
	NameColorsTypography = "colors-typography"
	NameLogos            = "logos"
)

// ColorsTypography parses a colors and typography generation step.
var ColorsTypography = Typed[project.ColorsTypography]{
	Check: func(v project.ColorsTypography) error {
		if len(v.Colors) == 0 || len(v.Typography) == 0 {
			return errors.New("colors and typography must both be non-empty")
		}
		return nil
	},
}

// Logos parses a logo generation step.
var Logos = Typed[[]project.Logo]{
	Check: func(v []project.Logo) error {
		if len(v) == 0 {
			return errors.New("no logo propositions")
		}
		for i, l := range v {
			if strings.TrimSpace(l.SVG) == "" {
				return errors.Errorf("logo #%d has no svg", i)
			}
		}
		return nil
	},
}

// Registry maps parser names used by templates to parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry returns a registry with the built-in parsers.
func NewRegistry() *Registry {
	return &Registry{parsers: map[string]Parser{
		NameJSON:             JSON,
		NameColorsTypography: ColorsTypography,
		NameLogos:            Logos,
	}}
}

func (r *Registry) Register(name string, p Parser) error {
	if name == "" || p == nil {
		return errors.New("parser name and parser are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.parsers[name]; ok {
		return errors.Errorf("parser %q already registered", name)
	}
	r.parsers[name] = p
	return nil
}

func (r *Registry) Get(name string) (Parser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.parsers[name]
	return p, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.parsers))
	for n := range r.parsers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
