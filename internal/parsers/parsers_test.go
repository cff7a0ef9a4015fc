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

package parsers

import (
	"encoding/json"
	"testing"

	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/project"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "bare object", in: `{"a":1}`, want: `{"a":1}`},
		{name: "prose around", in: "Here you go: {\"a\":{\"b\":[1,2]}} hope it helps", want: `{"a":{"b":[1,2]}}`},
		{name: "array", in: "[1, [2]] trailing", want: "[1, [2]]"},
		{name: "braces in strings", in: `{"svg":"<g>}</g>","q":"\"}"}`, want: `{"svg":"<g>}</g>","q":"\"}"}`},
		{name: "json fence", in: "text {not this}\n```json\n{\"x\":true}\n```\n", want: `{"x":true}`},
		{name: "untagged fence", in: "```\n[\"a\"]\n```", want: `["a"]`},
		{name: "no json", in: "plain words", wantErr: true},
		{name: "unterminated", in: `{"a":1`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSON(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJSON(t *testing.T) {
	v, err := JSON.Parse("```json\n{\"n\": 2}\n```")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"n": float64(2)}, v)

	_, err = JSON.Parse("{oops}")
	assert.Error(t, err)
	assert.Nil(t, JSON.Schema())
	assert.Equal(t, "", SchemaHint(JSON))
}

const colorsReply = `Sure!
{
  "colors": [{"id": "color-scheme-1", "name": "Deep Ocean", "url": "palette/deep-ocean",
    "colors": {"primary": "#0A2463", "secondary": "#3E92CC", "accent": "#D8315B", "background": "#F7F7F7", "text": "#1E1E1E"}}],
  "typography": [{"id": "typography-set-1", "name": "Tech Forward", "url": "typography/tech-forward",
    "primaryFont": "Roboto", "secondaryFont": "Source Code Pro"}]
}`

func TestColorsTypography(t *testing.T) {
	v, err := ColorsTypography.Parse(colorsReply)
	require.NoError(t, err)
	ct, ok := v.(project.ColorsTypography)
	require.True(t, ok)
	require.Len(t, ct.Colors, 1)
	assert.Equal(t, "#3E92CC", ct.Colors[0].Colors.Secondary)
	assert.Equal(t, "Roboto", ct.Typography[0].PrimaryFont)

	_, err = ColorsTypography.Parse(`{"colors": [], "typography": []}`)
	assert.ErrorContains(t, err, "non-empty")
}

func TestLogos(t *testing.T) {
	v, err := Logos.Parse(`[{"id":"l1","name":"Spark","svg":"<svg viewBox=\"0 0 120 40\"></svg>","concept":"c","colors":["#000"],"fonts":[]}]`)
	require.NoError(t, err)
	logos := v.([]project.Logo)
	require.Len(t, logos, 1)
	assert.Equal(t, "Spark", logos[0].Name)
	assert.Nil(t, logos[0].Variations)

	_, err = Logos.Parse(`[{"id":"l1"}]`)
	assert.ErrorContains(t, err, "no svg")
	_, err = Logos.Parse(`{"id":"l1"}`)
	assert.Error(t, err, "an object is not a list of logos")
}

func TestSchemaHint(t *testing.T) {
	hint := SchemaHint(ColorsTypography)
	require.NotEmpty(t, hint)
	assert.Contains(t, hint, "Respond with JSON only")
	assert.Contains(t, hint, "primaryFont")
	assert.Contains(t, hint, "^#[0-9A-Fa-f]{6}$")

	var raw map[string]any
	body := hint[len("Respond with JSON only. The JSON must validate against this schema:\n"):]
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	assert.Equal(t, "object", raw["type"])

	assert.Contains(t, SchemaHint(Logos), "\"array\"")
}

func TestParseFailureThroughPipeline(t *testing.T) {
	out := pipeline.ParseResult("not json at all", pipeline.StepSpec{Name: "Logo Generation", Parser: Logos})
	assert.True(t, out.Failed)
	assert.Equal(t, pipeline.ParseFailure{Error: "Parsing error", Content: "not json at all"}, out.Value)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{"colors-typography", "json", "logos"}, r.Names())

	p, ok := r.Get("logos")
	require.True(t, ok)
	assert.NotNil(t, p.Schema())

	_, ok = r.Get("yaml")
	assert.False(t, ok)

	assert.Error(t, r.Register("json", JSON))
	assert.Error(t, r.Register("", JSON))
	require.NoError(t, r.Register("palette", Typed[[]project.Color]{}))
	_, ok = r.Get("palette")
	assert.True(t, ok)
}
