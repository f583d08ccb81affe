package util

import (
	"fmt"
	"strings"
	"text/template"
)

// promptFuncs are the helpers available inside instruction templates.
var promptFuncs = template.FuncMap{
	// default substitutes a fallback when a state value is absent or empty.
	"default": func(fallback any, val any) any {
		if val == nil || val == "" {
			return fallback
		}
		return val
	},
	// join renders a state slice as a delimited list.
	"join": func(sep string, items []any) string {
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, sep)
	},
}

// RenderTemplate expands {{...}} references in an instruction against the
// run's state map. Text without template markers is returned as is, so plain
// instructions skip parsing entirely.
func RenderTemplate(text string, state map[string]any) (string, error) {
	if !strings.Contains(text, "{{") {
		return text, nil
	}

	tmpl, err := template.New("instruction").Funcs(promptFuncs).Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse instruction template: %w", err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, state); err != nil {
		return "", fmt.Errorf("render instruction template: %w", err)
	}

	return b.String(), nil
}
