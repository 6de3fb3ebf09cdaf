package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/vignette/pkg/prompts"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <prompts.yaml>\n", os.Args[0])
		os.Exit(1)
	}

	filename := os.Args[1]
	fmt.Printf("Validating %s...\n", filename)

	if err := validateFile(filename); err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Prompt file is valid!")
}

func validateFile(filename string) error {
	ext := filepath.Ext(filename)
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("prompt file must have .yaml or .yml extension: %s", filepath.Base(filename))
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	// Unknown keys are usually typos of "placeholders" or "template".
	var strict prompts.Pack
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&strict); err != nil {
		return fmt.Errorf("file %s failed strict YAML decoding: %w", filename, err)
	}

	pack, err := prompts.Parse(data)
	if err != nil {
		return err
	}

	var extra []string
	for name := range pack.Templates {
		if !slices.Contains(prompts.Required, name) {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		fmt.Printf("Note: templates not used by the game: %s\n", strings.Join(extra, ", "))
	}
	return nil
}
