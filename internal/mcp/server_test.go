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

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	stdlog "log"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/project"
	"github.com/cloudwego/abdoc/internal/service"
	"github.com/cloudwego/abdoc/internal/templates"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoBackend struct{}

func (echoBackend) Generate(_ context.Context, _ string, cfg pipeline.GenerateConfig) (string, error) {
	switch cfg.PromptType {
	case "Colors and Typography Generation":
		return `{"colors":[{"id":"c1","name":"Ember","url":"palette/ember","colors":{"primary":"#B23A48","secondary":"#FCB9B2","accent":"#461220","background":"#FFFFFF","text":"#111111"}}],"typography":[{"id":"t1","name":"Classic","url":"typography/classic","primaryFont":"Merriweather","secondaryFont":"Inter"}]}`, nil
	case "Logo Generation":
		return `[{"id":"l1","name":"Loaf","svg":"<svg/>","concept":"c","colors":[],"fonts":[]}]`, nil
	}
	return "## " + cfg.PromptType, nil
}

func (echoBackend) Clean(raw string) string { return strings.TrimSpace(raw) }

type session struct {
	t      *testing.T
	in     *io.PipeWriter
	lines  chan map[string]any
	cancel context.CancelFunc
}

func startSession(t *testing.T) (*session, *project.Project) {
	reg, err := templates.NewRegistry("")
	require.NoError(t, err)
	svc, err := service.New(service.Options{Store: project.NewMemoryStore(), Templates: reg, Backend: echoBackend{}})
	require.NoError(t, err)
	p, err := svc.CreateProject(context.Background(), &project.Project{UserID: "u1", Name: "Crumb", Scope: "local"})
	require.NoError(t, err)

	svr := NewServer(ServerOptions{ServerName: "abdoc", ServerVersion: "test", Service: svc})
	stdinReader, stdinWriter := io.Pipe()
	stdoutReader, stdoutWriter := io.Pipe()
	stdio := server.NewStdioServer(svr.MCPServer)
	stdio.SetErrorLogger(stdlog.New(io.Discard, "", 0))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = stdio.Listen(ctx, stdinReader, stdoutWriter)
		stdoutWriter.Close()
	}()

	s := &session{t: t, in: stdinWriter, lines: make(chan map[string]any, 64), cancel: cancel}
	go func() {
		scanner := bufio.NewScanner(stdoutReader)
		scanner.Buffer(make([]byte, 1<<20), 1<<20)
		for scanner.Scan() {
			var msg map[string]any
			if json.Unmarshal(scanner.Bytes(), &msg) == nil {
				s.lines <- msg
			}
		}
		close(s.lines)
	}()
	t.Cleanup(func() {
		cancel()
		stdinWriter.Close()
	})

	s.send(map[string]any{
		"jsonrpc": "2.0", "id": 1, "method": "initialize",
		"params": map[string]any{
			"protocolVersion": "2024-11-05",
			"clientInfo":      map[string]any{"name": "test-client", "version": "1.0.0"},
		},
	})
	s.await(1)
	s.send(map[string]any{"jsonrpc": "2.0", "method": "notifications/initialized"})
	return s, p
}

func (s *session) send(msg any) {
	bs, err := json.Marshal(msg)
	require.NoError(s.t, err)
	_, err = s.in.Write(append(bs, '\n'))
	require.NoError(s.t, err)
}

// await returns the response with the given id and the notifications read
// on the way.
func (s *session) await(id float64) (map[string]any, []map[string]any) {
	var notes []map[string]any
	timeout := time.After(5 * time.Second)
	for {
		select {
		case msg, ok := <-s.lines:
			require.True(s.t, ok, "server closed stdout")
			if msg["id"] == id {
				return msg, notes
			}
			if _, isNote := msg["method"]; isNote {
				notes = append(notes, msg)
			}
		case <-timeout:
			s.t.Fatalf("no response for request %v", id)
		}
	}
}

func (s *session) drain(notes []map[string]any, want int) []map[string]any {
	timeout := time.After(2 * time.Second)
	for len(notes) < want {
		select {
		case msg := <-s.lines:
			if _, isNote := msg["method"]; isNote {
				notes = append(notes, msg)
			}
		case <-timeout:
			return notes
		}
	}
	return notes
}

func toolText(t *testing.T, resp map[string]any) (string, bool) {
	result, ok := resp["result"].(map[string]any)
	require.True(t, ok, "response %v has no result", resp)
	content := result["content"].([]any)
	require.NotEmpty(t, content)
	isError, _ := result["isError"].(bool)
	return content[0].(map[string]any)["text"].(string), isError
}

func TestListTools(t *testing.T) {
	s, _ := startSession(t)
	s.send(map[string]any{"jsonrpc": "2.0", "id": 2, "method": "tools/list"})
	resp, _ := s.await(2)

	var names []string
	for _, tool := range resp["result"].(map[string]any)["tools"].([]any) {
		names = append(names, tool.(map[string]any)["name"].(string))
	}
	assert.ElementsMatch(t, []string{ToolListTemplates, ToolGenerateDocument, ToolGenerateBrandAsset, ToolGetDocument,
		ToolUpdateBranding, ToolListProjects}, names)
}

func TestListTemplatesTool(t *testing.T) {
	s, _ := startSession(t)
	s.send(map[string]any{"jsonrpc": "2.0", "id": 2, "method": "tools/call",
		"params": map[string]any{"name": ToolListTemplates, "arguments": map[string]any{}}})
	resp, _ := s.await(2)

	text, isError := toolText(t, resp)
	require.False(t, isError)
	var got ListTemplatesResp
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	require.Len(t, got.Templates, 3)
	assert.Equal(t, "brand-assets", got.Templates[0].Name)
}

func TestGenerateDocumentTool_Progress(t *testing.T) {
	s, p := startSession(t)
	s.send(map[string]any{"jsonrpc": "2.0", "id": 2, "method": "tools/call",
		"params": map[string]any{
			"name":      ToolGenerateDocument,
			"arguments": map[string]any{"user_id": "u1", "project_id": p.ID, "template": "branding"},
			"_meta":     map[string]any{"progressToken": "run-1"},
		}})
	resp, notes := s.await(2)

	text, isError := toolText(t, resp)
	require.False(t, isError, text)
	var doc project.Document
	require.NoError(t, json.Unmarshal([]byte(text), &doc))
	require.Len(t, doc.Sections, 5)
	assert.Equal(t, "## Brand Header", doc.Sections[0].Data)

	notes = s.drain(notes, 10)
	require.Len(t, notes, 10)
	first := notes[0]["params"].(map[string]any)
	assert.Equal(t, "notifications/progress", notes[0]["method"])
	assert.Equal(t, "run-1", first["progressToken"])
	assert.Equal(t, "started: Brand Header", first["message"])
	assert.Equal(t, "completed: Brand Footer", notes[9]["params"].(map[string]any)["message"])
}

func TestGenerateDocumentTool_Errors(t *testing.T) {
	s, _ := startSession(t)
	s.send(map[string]any{"jsonrpc": "2.0", "id": 2, "method": "tools/call",
		"params": map[string]any{
			"name":      ToolGenerateDocument,
			"arguments": map[string]any{"user_id": "u1", "project_id": "missing", "template": "branding"},
		}})
	resp, _ := s.await(2)
	text, isError := toolText(t, resp)
	assert.True(t, isError)
	assert.Contains(t, text, "project not found")
}

func callTool(s *session, id float64, name string, args map[string]any) (string, bool) {
	s.send(map[string]any{"jsonrpc": "2.0", "id": id, "method": "tools/call",
		"params": map[string]any{"name": name, "arguments": args}})
	resp, _ := s.await(id)
	return toolText(s.t, resp)
}

func TestUpdateBrandingTool(t *testing.T) {
	s, p := startSession(t)
	choice := map[string]any{"user_id": "u1", "project_id": p.ID, "color_id": "c1", "logo_id": "l1"}

	text, isError := callTool(s, 2, ToolUpdateBranding, choice)
	assert.True(t, isError)
	assert.Contains(t, text, "invalid branding selection")

	text, isError = callTool(s, 3, ToolGenerateBrandAsset, map[string]any{"user_id": "u1", "project_id": p.ID})
	require.False(t, isError, text)

	text, isError = callTool(s, 4, ToolUpdateBranding, choice)
	require.False(t, isError, text)
	var b project.Branding
	require.NoError(t, json.Unmarshal([]byte(text), &b))
	require.NotNil(t, b.Colors)
	assert.Equal(t, "Ember", b.Colors.Name)
	assert.Equal(t, "Loaf", b.Logo.Name)
	assert.Nil(t, b.Typography)
}

func TestListProjectsTool(t *testing.T) {
	s, p := startSession(t)
	text, isError := callTool(s, 2, ToolListProjects, map[string]any{"user_id": "u1"})
	require.False(t, isError, text)
	var got ListProjectsResp
	require.NoError(t, json.Unmarshal([]byte(text), &got))
	require.Len(t, got.Projects, 1)
	assert.Equal(t, ProjectInfo{ID: p.ID, Name: "Crumb"}, got.Projects[0])
}

func TestSchemaOf(t *testing.T) {
	var schema map[string]any
	require.NoError(t, json.Unmarshal(schemaOf[GenerateDocumentReq](), &schema))
	assert.Equal(t, "object", schema["type"])
	assert.NotContains(t, schema, "$schema")
	assert.ElementsMatch(t, []any{"user_id", "project_id", "template"}, schema["required"])
}
