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

package project

// Palette is the five colors of a color scheme, as hex codes.
type Palette struct {
	Primary    string `json:"primary" jsonschema:"pattern=^#[0-9A-Fa-f]{6}$"`
	Secondary  string `json:"secondary" jsonschema:"pattern=^#[0-9A-Fa-f]{6}$"`
	Accent     string `json:"accent" jsonschema:"pattern=^#[0-9A-Fa-f]{6}$"`
	Background string `json:"background" jsonschema:"pattern=^#[0-9A-Fa-f]{6}$"`
	Text       string `json:"text" jsonschema:"pattern=^#[0-9A-Fa-f]{6}$"`
}

type Color struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	URL    string  `json:"url" jsonschema:"description=slug such as palette/earthy-tones"`
	Colors Palette `json:"colors"`
}

type Typography struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	URL           string `json:"url" jsonschema:"description=slug such as typography/tech-forward"`
	PrimaryFont   string `json:"primaryFont"`
	SecondaryFont string `json:"secondaryFont"`
}

type LogoVariations struct {
	LightBackground string `json:"lightBackground"`
	DarkBackground  string `json:"darkBackground"`
	Monochrome      string `json:"monochrome"`
}

type Logo struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	SVG        string          `json:"svg"`
	Concept    string          `json:"concept"`
	Colors     []string        `json:"colors"`
	Fonts      []string        `json:"fonts"`
	Variations *LogoVariations `json:"variations,omitempty"`
}

// ColorsTypography is the parsed output of a colors and typography step.
type ColorsTypography struct {
	Colors     []Color      `json:"colors" jsonschema:"minItems=1"`
	Typography []Typography `json:"typography" jsonschema:"minItems=1"`
}

// Branding holds the chosen identity and the generated options to pick from.
type Branding struct {
	Colors     *Color      `json:"colors,omitempty"`
	Typography *Typography `json:"typography,omitempty"`
	Logo       *Logo       `json:"logo,omitempty"`

	GeneratedColors     []Color      `json:"generatedColors,omitempty"`
	GeneratedTypography []Typography `json:"generatedTypography,omitempty"`
	GeneratedLogos      []Logo       `json:"generatedLogos,omitempty"`
}
