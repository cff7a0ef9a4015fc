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

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cloudwego/abdoc/internal/pipeline"
	"github.com/cloudwego/abdoc/internal/project"
	"github.com/cloudwego/abdoc/internal/service"
	"github.com/cloudwego/abdoc/internal/templates"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubBackend struct {
	failOn string
}

func (b stubBackend) Generate(_ context.Context, _ string, cfg pipeline.GenerateConfig) (string, error) {
	if cfg.PromptType == b.failOn {
		return "", errors.New("model unavailable")
	}
	switch cfg.PromptType {
	case "Colors and Typography Generation":
		return `{"colors":[{"id":"c1","name":"n","url":"palette/n","colors":{"primary":"#000000","secondary":"#111111","accent":"#222222","background":"#ffffff","text":"#000000"}}],"typography":[{"id":"t1","name":"n","url":"typography/n","primaryFont":"Inter","secondaryFont":"Lato"}]}`, nil
	case "Logo Generation":
		return `[{"id":"l1","name":"Mark","svg":"<svg/>","concept":"c","colors":[],"fonts":[]}]`, nil
	}
	return cfg.PromptType + " by " + cfg.Model, nil
}

func (stubBackend) Clean(raw string) string { return strings.TrimSpace(raw) }

func newTestServer(t *testing.T, be pipeline.Backend, opts Options) (*Server, *project.Project) {
	reg, err := templates.NewRegistry("")
	require.NoError(t, err)
	svc, err := service.New(service.Options{Store: project.NewMemoryStore(), Templates: reg, Backend: be})
	require.NoError(t, err)
	p, err := svc.CreateProject(context.Background(), &project.Project{UserID: "u1", Name: "Crumb", Scope: "local"})
	require.NoError(t, err)
	opts.Service = svc
	return New(opts), p
}

func do(s *Server, method, path, user, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestListTemplates(t *testing.T) {
	s, _ := newTestServer(t, stubBackend{}, Options{})
	w := do(s, http.MethodGet, "/templates", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	var got []templateView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 3)
	assert.Equal(t, "brand-assets", got[0].Name)
	assert.Equal(t, []string{"Colors and Typography Generation", "Logo Generation"}, got[0].Steps)
}

func TestAuthRequired(t *testing.T) {
	s, p := newTestServer(t, stubBackend{}, Options{})
	w := do(s, http.MethodGet, "/projects/"+p.ID, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "User not authenticated")
}

func TestCreateAndGetProject(t *testing.T) {
	s, _ := newTestServer(t, stubBackend{}, Options{})
	w := do(s, http.MethodPost, "/projects", "u2", `{"name":"Kiln","description":"Pottery studio"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var p project.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, "u2", p.UserID)

	w = do(s, http.MethodGet, "/projects/"+p.ID, "u2", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(s, http.MethodGet, "/projects/"+p.ID, "u1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(s, http.MethodPost, "/projects", "u2", `{"description":"no name"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamDocument(t *testing.T) {
	s, p := newTestServer(t, stubBackend{}, Options{})
	w := do(s, http.MethodGet, "/projects/"+p.ID+"/documents/branding/stream?model=fast", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Equal(t, 10, strings.Count(body, "event:section"))
	assert.Contains(t, body, `"data":"step_started"`)
	assert.Contains(t, body, "Brand Header by fast")
	assert.Equal(t, 1, strings.Count(body, "event:done"))
	assert.True(t, strings.Index(body, "Brand Header by fast") < strings.Index(body, "Brand Footer by fast"))

	w = do(s, http.MethodGet, "/projects/"+p.ID+"/documents/branding", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var doc project.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Len(t, doc.Sections, 5)
	assert.Contains(t, body, doc.Hash)
}

func TestStreamDocument_Errors(t *testing.T) {
	s, p := newTestServer(t, stubBackend{failOn: "Color Palette"}, Options{})

	w := do(s, http.MethodGet, "/projects/"+p.ID+"/documents/pitch/stream", "u1", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "errors before the first event are plain responses")

	w = do(s, http.MethodGet, "/projects/"+p.ID+"/documents/branding/stream", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(body, "event:error"))
	assert.Equal(t, 0, strings.Count(body, "event:done"))
	assert.Contains(t, body, "model unavailable")

	w = do(s, http.MethodGet, "/projects/"+p.ID+"/documents/branding", "u1", "")
	assert.Contains(t, w.Body.String(), `"sections":[]`, "failed runs are not persisted")
}

func TestGenerateAndDeleteDocument(t *testing.T) {
	s, p := newTestServer(t, stubBackend{}, Options{})
	w := do(s, http.MethodPost, "/projects/"+p.ID+"/documents/business-plan", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var doc project.Document
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Len(t, doc.Sections, 7)

	w = do(s, http.MethodDelete, "/projects/"+p.ID+"/documents/business-plan", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = do(s, http.MethodGet, "/projects/"+p.ID+"/documents/business-plan", "u1", "")
	assert.Contains(t, w.Body.String(), `"sections":[]`)
}

func TestGenerateAssets(t *testing.T) {
	s, p := newTestServer(t, stubBackend{}, Options{})
	w := do(s, http.MethodPost, "/projects/"+p.ID+"/assets", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var assets service.BrandAssets
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &assets))
	assert.Len(t, assets.Colors, 1)
	assert.Equal(t, "Mark", assets.Logos[0].Name)
}

func TestBrandingSelection(t *testing.T) {
	s, p := newTestServer(t, stubBackend{}, Options{})
	path := "/projects/" + p.ID + "/branding"

	w := do(s, http.MethodPut, path, "u1", `{"colorId":"c1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "nothing generated yet")

	require.Equal(t, http.StatusOK, do(s, http.MethodPost, "/projects/"+p.ID+"/assets", "u1", "").Code)
	w = do(s, http.MethodPut, path, "u1", `{"colorId":"c1","typographyId":"t1","logoId":"l1"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var b project.Branding
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &b))
	require.NotNil(t, b.Logo)
	assert.Equal(t, "Mark", b.Logo.Name)

	w = do(s, http.MethodPost, "/projects/"+p.ID+"/documents/branding", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Logo System"`, "a chosen logo adds the logo section")

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodPut, "/projects/nope/branding", "u1", `{"logoId":"l1"}`).Code)

	require.Equal(t, http.StatusOK, do(s, http.MethodDelete, path, "u1", "").Code)
	w = do(s, http.MethodGet, "/projects/"+p.ID, "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got project.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, project.Branding{}, got.Branding)
}

func TestListProjects(t *testing.T) {
	s, p := newTestServer(t, stubBackend{}, Options{})
	w := do(s, http.MethodGet, "/projects", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []project.Project
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)

	w = do(s, http.MethodGet, "/projects", "u9", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestQuota(t *testing.T) {
	s, p := newTestServer(t, stubBackend{}, Options{RatePerMinute: 1, Burst: 1})
	path := "/projects/" + p.ID + "/documents/branding"

	assert.Equal(t, http.StatusOK, do(s, http.MethodPost, path, "u1", "").Code)
	w := do(s, http.MethodPost, path, "u1", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Quota exceeded")

	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, path, "u1", "").Code, "reads are not limited")
	assert.NotEqual(t, http.StatusTooManyRequests, do(s, http.MethodPost, path, "u2", "").Code, "limits are per user")
}

func TestUsage(t *testing.T) {
	s, _ := newTestServer(t, stubBackend{}, Options{})
	w := do(s, http.MethodGet, "/usage", "u1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"calls":0`)
}
