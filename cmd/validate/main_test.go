package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateFile_BuiltInPack(t *testing.T) {
	data, err := os.ReadFile("../../pkg/prompts/prompts.yaml")
	require.NoError(t, err)
	assert.NoError(t, validateFile(writeFile(t, "prompts.yaml", string(data))))
}

func TestValidateFile_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"wrong extension", "prompts.json", "{}", "must have .yaml or .yml extension"},
		{"unknown field", "prompts.yaml", "version: 1\ntemplates:\n  create_scene:\n    placeholder: [description]\n", "failed strict YAML decoding"},
		{"missing templates", "prompts.yml", "version: 1\ntemplates: {}\n", `missing template "create_scene"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateFile(writeFile(t, tt.file, tt.content))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	assert.ErrorContains(t, validateFile(filepath.Join(t.TempDir(), "missing.yaml")), "failed to read file")
}
