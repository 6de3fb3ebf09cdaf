package services

import (
	"io"
	"log/slog"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var sceneSchema = Schema{
	Name:        "scene",
	Description: "An expanded scene description",
	Properties: map[string]Property{
		"description": {Type: TypeString, Description: "The scene"},
	},
	Required: []string{"description"},
}

var indexSchema = Schema{
	Name: "selection",
	Properties: map[string]Property{
		"index": {Type: TypeInteger},
	},
	Required: []string{"index"},
}
