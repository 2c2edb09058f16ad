// Package template renders item names from text/template expressions.
package template

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/models"
)

var ErrEmptyResult = errors.New("template rendered an empty name")

// Template is a parsed name template. It is safe for concurrent use.
type Template struct {
	text string
	tmpl *template.Template
}

// Parse compiles text. Templates see the fields documented on Data.
func Parse(text string) (*Template, error) {
	tmpl, err := template.
		New("name").
		Option("missingkey=error").
		Funcs(template.FuncMap{
			"now": func(layout string) string {
				return time.Now().UTC().Format(layout)
			},
			"env":     os.Getenv,
			"lower":   strings.ToLower,
			"upper":   strings.ToUpper,
			"trim":    strings.TrimSpace,
			"replace": func(old, replacement, s string) string { return strings.ReplaceAll(s, old, replacement) },
			"join":    strings.Join,
		}).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", text, err)
	}

	return &Template{text: text, tmpl: tmpl}, nil
}

func (t *Template) String() string {
	return t.text
}

// Data is what a name template renders against.
type Data struct {
	Name     string   // name after any plain rename rules
	Original string   // name as read from the instance
	ID       string
	Tags     []string
	Active   bool
	Nodes    int
}

// ItemData describes item, whose name has already become name.
func ItemData(item models.Item, name string) Data {
	return Data{
		Name:     name,
		Original: item.Name,
		ID:       item.ID,
		Tags:     item.TagNames(),
		Active:   item.Active,
		Nodes:    len(item.Nodes),
	}
}

// Render executes the template and returns the trimmed result, which must not be empty.
func (t *Template) Render(data Data) (string, error) {
	var buf strings.Builder

	if err := t.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template '%s': %w", t.text, err)
	}

	result := strings.TrimSpace(buf.String())
	if result == "" {
		return "", ErrEmptyResult
	}

	return result, nil
}
