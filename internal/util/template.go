package util

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// RenderTemplate expands {{...}} markers in an instruction text against the
// given data. text/template, not html/template: instructions go to models,
// and HTML escaping would mangle quotes and angle brackets in them.
func RenderTemplate(text string, data map[string]any) (string, error) {
	if !strings.Contains(text, "{{") { // fast path: no template markers
		return text, nil
	}

	tmpl, err := template.New("instructions").Funcs(template.FuncMap{
		"default": func(defaultVal any, val any) any {
			if val == nil || val == "" {
				return defaultVal
			}
			return val
		},
		"upper": strings.ToUpper,
		"lower": strings.ToLower,
		"join": func(sep string, items []any) string {
			strItems := make([]string, len(items))
			for i, item := range items {
				strItems[i] = fmt.Sprintf("%v", item)
			}
			return strings.Join(strItems, sep)
		},
	}).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
