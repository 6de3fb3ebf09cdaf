package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/vignette/pkg/pipeline"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    options
		wantErr string
	}{
		{"scene ok", options{mode: "scene", description: "A cave"}, ""},
		{"scene missing description", options{mode: "scene"}, "mode scene requires -description"},
		{"action ok", options{mode: "action", scene: "s", name: "Ada", action: "jump"}, ""},
		{"action missing fields", options{mode: "action", scene: "s"}, "mode action requires -name, -action"},
		{"ending ok", options{mode: "ending", scene: "s"}, ""},
		{"unknown mode", options{mode: "epilogue"}, `unknown mode "epilogue"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.EqualError(t, err, tt.wantErr)
		})
	}
}

type stubTeller struct {
	called string
	args   []string
}

func (s *stubTeller) CreateScene(ctx context.Context, description string) (*pipeline.State, error) {
	s.called, s.args = "scene", []string{description}
	return &pipeline.State{Refined: "scene"}, nil
}

func (s *stubTeller) AddAction(ctx context.Context, scene, outcomes, name, action string) (*pipeline.State, error) {
	s.called, s.args = "action", []string{scene, outcomes, name, action}
	return &pipeline.State{Refined: "outcome"}, nil
}

func (s *stubTeller) EndScene(ctx context.Context, scene, outcomes string) (*pipeline.State, error) {
	s.called, s.args = "ending", []string{scene, outcomes}
	return &pipeline.State{Refined: "summary"}, nil
}

func TestRun_DispatchesByMode(t *testing.T) {
	tests := []struct {
		opts     options
		wantArgs []string
	}{
		{options{mode: "scene", description: "A cave"}, []string{"A cave"}},
		{options{mode: "action", scene: "s", outcomes: "o", name: "Ada", action: "jump"}, []string{"s", "o", "Ada", "jump"}},
		{options{mode: "ending", scene: "s", outcomes: "o"}, []string{"s", "o"}},
	}

	for _, tt := range tests {
		t.Run(tt.opts.mode, func(t *testing.T) {
			stub := &stubTeller{}
			st, err := run(context.Background(), stub, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.opts.mode, stub.called)
			assert.Equal(t, tt.wantArgs, stub.args)
			assert.NotEmpty(t, st.Refined)
		})
	}
}
