package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_DefinesEveryRequiredTemplate(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	for _, name := range Required {
		assert.Contains(t, p.Templates, name)
	}
}

func TestRender(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	out, err := p.Render(AddAction, map[string]string{
		"scene":    "A bridge over lava.",
		"outcomes": "",
		"name":     "Ada",
		"action":   "I jump.",
	})
	require.NoError(t, err)

	assert.Contains(t, out, "A bridge over lava.")
	assert.Contains(t, out, "Current action by Ada:")
	assert.Contains(t, out, "I jump.")
	assert.NotContains(t, out, "{scene}")
}

func TestRender_DoesNotExpandPlaceholdersInsideValues(t *testing.T) {
	p, err := Parse([]byte(validPackYAML))
	require.NoError(t, err)

	out, err := p.Render(RefineScene, map[string]string{"scene": "literal {scene} text"})
	require.NoError(t, err)
	assert.Equal(t, "Edit: literal {scene} text\n", out)
}

func TestRender_Errors(t *testing.T) {
	p, err := Default()
	require.NoError(t, err)

	_, err = p.Render("nope", nil)
	assert.ErrorContains(t, err, `unknown prompt template "nope"`)

	_, err = p.Render(CreateScene, map[string]string{})
	assert.ErrorContains(t, err, `missing argument "description"`)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "bad yaml",
			yaml:    "version: [",
			wantErr: "failed to parse prompt pack",
		},
		{
			name:    "wrong version",
			yaml:    "version: 2\ntemplates: {}\n",
			wantErr: "unsupported prompt pack version: 2",
		},
		{
			name:    "missing templates",
			yaml:    "version: 1\ntemplates: {}\n",
			wantErr: `missing template "create_scene"`,
		},
		{
			name: "undeclared placeholder",
			yaml: validPackYAML + `  extra:
    placeholders: []
    template: "uses {ghost}"
`,
			wantErr: `template "extra" uses undeclared placeholder {ghost}`,
		},
		{
			name: "unused placeholder",
			yaml: validPackYAML + `  extra:
    placeholders: [scene]
    template: "nothing here"
`,
			wantErr: `template "extra" declares unused placeholder {scene}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validPackYAML), 0o644))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read prompt pack")
}

func TestLoadOrDefault(t *testing.T) {
	p, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Contains(t, p.Templates[AddAction].Text, "Current action by {name}:")

	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validPackYAML), 0o644))
	p, err = LoadOrDefault(path)
	require.NoError(t, err)
	assert.Equal(t, "Create: {description}", p.Templates[CreateScene].Text)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"a", "b_c"}, Placeholders("{a} and {b_c} and {a} but not {Upper} or { spaced }"))
	assert.Nil(t, Placeholders("plain"))
}

const validPackYAML = `version: 1
templates:
  create_scene:
    placeholders: [description]
    template: "Create: {description}"
  select_scene:
    placeholders: [scenes]
    template: "Pick: {scenes}"
  refine_scene:
    placeholders: [scene]
    template: |
      Edit: {scene}
  visualize_scene:
    placeholders: [scene]
    template: "Draw: {scene}"
  add_action:
    placeholders: [scene, outcomes, name, action]
    template: "{scene} {outcomes} {name} {action}"
  refine_outcome:
    placeholders: [outcome]
    template: "Edit: {outcome}"
  end_scene:
    placeholders: [scene, outcomes]
    template: "End: {scene} {outcomes}"
  select_summary:
    placeholders: [summaries]
    template: "Pick: {summaries}"
  refine_summary:
    placeholders: [summary]
    template: "Edit: {summary}"
`
