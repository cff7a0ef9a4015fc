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
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// traceBackend writes into a shared trace so event and call order can be compared.
type traceBackend struct {
	trace  *[]string
	failOn string
}

func (b *traceBackend) Generate(_ context.Context, _ string, cfg GenerateConfig) (string, error) {
	*b.trace = append(*b.trace, "generate("+cfg.PromptType+")")
	if cfg.PromptType == b.failOn {
		return "", errors.New("quota exceeded")
	}
	return cfg.PromptType + "-OUT", nil
}

func (b *traceBackend) Clean(raw string) string { return raw }

func recorder(trace *[]string) Consumer {
	return func(_ context.Context, r SectionResult) error {
		*trace = append(*trace, fmt.Sprintf("%s(%s)", r.Status, r.Name))
		return nil
	}
}

func TestRunStreaming_EventOrder(t *testing.T) {
	var trace []string
	be := &traceBackend{trace: &trace}
	steps := []StepSpec{{Name: "1"}, {Name: "2"}, {Name: "3"}}

	err := New(be, GenerateConfig{}).RunStreaming(context.Background(), steps, nil, recorder(&trace))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"started(1)", "generate(1)", "completed(1)",
		"started(2)", "generate(2)", "completed(2)",
		"started(3)", "generate(3)", "completed(3)",
	}, trace)
}

func TestRunStreaming_EventShapes(t *testing.T) {
	var got []SectionResult
	be := &echoBackend{}
	facts := &ProjectFacts{ProjectID: "p9"}
	err := New(be, GenerateConfig{}).RunStreaming(context.Background(), []StepSpec{{Name: "Header"}}, facts,
		func(_ context.Context, r SectionResult) error {
			got = append(got, r)
			return nil
		})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, SectionResult{
		Name: "Header", Kind: KindEvent, Status: StatusStarted, Data: "step_started", Summary: "Starting Header",
	}, got[0])
	assert.Equal(t, SectionResult{
		Name: "Header", Kind: KindText, Status: StatusCompleted, Data: "Header-OUT", Summary: "Header for Project p9",
	}, got[1])
}

func TestRunStreaming_BackendFailureStopsEvents(t *testing.T) {
	var trace []string
	be := &traceBackend{trace: &trace, failOn: "2"}
	steps := []StepSpec{{Name: "1"}, {Name: "2"}, {Name: "3"}}

	err := New(be, GenerateConfig{}).RunStreaming(context.Background(), steps, nil, recorder(&trace))
	var berr *BackendError
	require.True(t, errors.As(err, &berr))
	assert.Equal(t, "2", berr.Step)
	assert.Equal(t, []string{
		"started(1)", "generate(1)", "completed(1)",
		"started(2)", "generate(2)",
	}, trace)
}

func TestRunStreaming_ConsumerBackpressure(t *testing.T) {
	var trace []string
	be := &traceBackend{trace: &trace}
	parked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	consumer := func(ctx context.Context, r SectionResult) error {
		trace = append(trace, string(r.Status)+"("+r.Name+")")
		if r.Status == StatusStarted && r.Name == "1" {
			close(parked)
			<-release
		}
		return nil
	}
	go func() {
		done <- New(be, GenerateConfig{}).RunStreaming(context.Background(), []StepSpec{{Name: "1"}}, nil, consumer)
	}()

	<-parked
	assert.Equal(t, []string{"started(1)"}, trace, "no backend call while the consumer holds the started event")
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"started(1)", "generate(1)", "completed(1)"}, trace)
}

func TestRunStreaming_ConsumerErrorAborts(t *testing.T) {
	var trace []string
	be := &traceBackend{trace: &trace}
	steps := []StepSpec{{Name: "1"}, {Name: "2"}}
	refuse := errors.New("client went away")

	err := New(be, GenerateConfig{}).RunStreaming(context.Background(), steps, nil, func(_ context.Context, r SectionResult) error {
		trace = append(trace, string(r.Status)+"("+r.Name+")")
		if r.Status == StatusCompleted {
			return refuse
		}
		return nil
	})
	var cerr *ConsumerError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "1", cerr.Step)
	assert.True(t, errors.Is(err, refuse))
	assert.Equal(t, []string{"started(1)", "generate(1)", "completed(1)"}, trace)
}

func TestRunStreaming_MatchesBatch(t *testing.T) {
	steps := headerBodyFooter()
	facts := &ProjectFacts{ProjectID: "p1"}
	batch, err := New(&echoBackend{}, GenerateConfig{}).Run(context.Background(), steps, facts)
	require.NoError(t, err)

	var streamed []SectionResult
	err = New(&echoBackend{}, GenerateConfig{}).RunStreaming(context.Background(), steps, facts, Collect(&streamed, nil))
	require.NoError(t, err)
	assert.Equal(t, batch, streamed)
}

func TestRunStreaming_ValidatesBeforeEvents(t *testing.T) {
	var trace []string
	steps := []StepSpec{{Name: "A"}, {Name: "A"}}
	err := New(&traceBackend{trace: &trace}, GenerateConfig{}).RunStreaming(context.Background(), steps, nil, recorder(&trace))
	require.Error(t, err)
	assert.Empty(t, trace)
}

func TestRunStreaming_NilConsumer(t *testing.T) {
	err := New(&echoBackend{}, GenerateConfig{}).RunStreaming(context.Background(), headerBodyFooter(), nil, nil)
	assert.NoError(t, err)
}
