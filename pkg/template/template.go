// Package template renders the text templates used to build prompts.
package template

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Funcs are the helpers available to every template.
var Funcs = template.FuncMap{
	"now": func() string {
		return time.Now().UTC().Format(time.RFC3339)
	},
	"inc": func(i int) int {
		return i + 1
	},
	"yen": func(amount *int) string {
		if amount == nil {
			return "不明"
		}

		return formatYen(*amount)
	},
	"orEmpty": func(value, placeholder string) string {
		if strings.TrimSpace(value) == "" {
			return placeholder
		}

		return value
	},
}

// Parse compiles a named template with the shared helpers.
func Parse(name, templateStr string) (*template.Template, error) {
	tmpl, err := template.New(name).Funcs(Funcs).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", name, err)
	}

	return tmpl, nil
}

// Execute renders a parsed template and trims the surrounding whitespace.
func Execute(tmpl *template.Template, data any) (string, error) {
	var buf strings.Builder

	err := tmpl.Execute(&buf, data)
	if err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", tmpl.Name(), err)
	}

	return strings.TrimSpace(buf.String()), nil
}

// Render parses and executes templateStr in one call.
func Render(templateStr string, data any) (string, error) {
	tmpl, err := Parse("inline", templateStr)
	if err != nil {
		return "", err
	}

	return Execute(tmpl, data)
}

// formatYen renders an amount with thousands separators, e.g. "12,500円".
func formatYen(amount int) string {
	digits := strconv.Itoa(amount)

	sign := ""
	if amount < 0 {
		sign, digits = "-", digits[1:]
	}

	var sb strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte(',')
		}

		sb.WriteRune(r)
	}

	return sign + sb.String() + "円"
}
