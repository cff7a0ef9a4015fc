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

package prompt

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

type Prompt interface {
	String() string
}

type PromptType string

const (
	PromptTypePlainText  PromptType = "text"
	PromptTypeDummy      PromptType = "dummy"
	PromptTypeGoTemplate PromptType = "go-template"
)

// FilePrompt loads a prompt from disk. Go templates are rendered against Data.
type FilePrompt struct {
	Type PromptType `json:"type" yaml:"type"`
	Path string     `json:"path" yaml:"path"`
	Data any        `json:"data" yaml:"data"`
	text string
}

func (p *FilePrompt) String() string {
	return p.text
}

func NewFilePrompt(c *FilePrompt) (Prompt, error) {
	switch c.Type {
	case PromptTypePlainText:
		bs, err := os.ReadFile(c.Path)
		if err != nil {
			return nil, errors.Wrap(err, "read prompt")
		}
		c.text = string(bs)
		return c, nil
	case PromptTypeDummy:
		return TextPrompt(""), nil
	case PromptTypeGoTemplate:
		bs, err := os.ReadFile(c.Path)
		if err != nil {
			return nil, errors.Wrap(err, "read prompt")
		}
		tpl, err := Parse(c.Path, string(bs))
		if err != nil {
			return nil, err
		}
		c.text, err = Render(tpl, c.Data)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, errors.Errorf("unsupported prompt type %q", c.Type)
	}
}

type TextPrompt string

func (p TextPrompt) String() string {
	return string(p)
}

func NewTextPrompt(content string) Prompt {
	return TextPrompt(content)
}

// Funcs are available to every template parsed by this package.
var Funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		bs, err := json.Marshal(v)
		return string(bs), err
	},
	"join": strings.Join,
	"default": func(def string, v any) any {
		if s, ok := v.(string); ok && s == "" || v == nil {
			return def
		}
		return v
	},
}

// Parse compiles a text template with Funcs. Missing map keys render as errors.
func Parse(name, text string) (*template.Template, error) {
	tpl, err := template.New(name).Funcs(Funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, errors.Wrapf(err, "parse template %s", name)
	}
	return tpl, nil
}

func Render(tpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render template %s", tpl.Name())
	}
	return strings.TrimSpace(buf.String()), nil
}

// PromptDocumentWriter is the default system prompt for section generation.
//
//go:embed writer.md
var PromptDocumentWriter string
