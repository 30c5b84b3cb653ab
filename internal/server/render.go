// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"embed"
	"html/template"
	"regexp"
	"strings"
)

//go:embed templates/config.html
var assets embed.FS

// Placeholders substituted in the page template.
const (
	TitlePlaceholder    = "$title"
	SettingsPlaceholder = "$settings"
)

// Field is one setting as shown on the edit page.
type Field struct {
	Key   string
	Value string
}

// Widget is the input control chosen for a value.
type Widget string

const (
	WidgetCheckbox Widget = "checkbox"
	WidgetNumber   Widget = "number"
	WidgetText     Widget = "text"
)

// numberPattern matches what an HTML number input can display.
var numberPattern = regexp.MustCompile(`^-?(\d+(\.\d+)?|\.\d+)([eE][-+]?\d+)?$`)

// WidgetFor picks the control for a stored value: a checkbox for "true" and
// "false", a number input for decimal numbers, a text input otherwise.
func WidgetFor(value string) Widget {
	switch {
	case value == "true" || value == "false":
		return WidgetCheckbox
	case numberPattern.MatchString(value):
		return WidgetNumber
	default:
		return WidgetText
	}
}

type fieldView struct {
	Key     string
	Value   string
	Widget  Widget
	Checked bool
}

// A checkbox is preceded by a hidden field of the same name carrying
// "false"; when the box is ticked the browser sends both and the later
// "true" wins.
var fieldsTemplate = template.Must(template.New("fields").Parse(
	`{{range .}}{{if eq .Widget "checkbox"}}<div class="form-check">
  <input type="hidden" name="{{.Key}}" value="false">
  <input type="checkbox" class="form-check-input" id="field-{{.Key}}" name="{{.Key}}" value="true"{{if .Checked}} checked{{end}}>
  <label class="form-check-label" for="field-{{.Key}}">{{.Key}}</label>
</div>
{{else}}<div class="form-group">
  <label for="field-{{.Key}}">{{.Key}}</label>
  <input type="{{.Widget}}"{{if eq .Widget "number"}} step="any"{{end}} class="form-control" id="field-{{.Key}}" name="{{.Key}}" value="{{.Value}}">
</div>
{{end}}{{end}}`))

var bannerTemplate = template.Must(template.New("banner").Parse(
	`<div class="alert alert-danger" role="alert">Some changes were not saved: {{.}}</div>
`))

// RenderForm returns the HTML fragment with one labelled control per
// field. Keys and values are escaped.
func RenderForm(fields []Field) string {
	views := make([]fieldView, 0, len(fields))
	for _, f := range fields {
		w := WidgetFor(f.Value)
		views = append(views, fieldView{
			Key:     f.Key,
			Value:   f.Value,
			Widget:  w,
			Checked: w == WidgetCheckbox && f.Value == "true",
		})
	}

	var sb strings.Builder
	if err := fieldsTemplate.Execute(&sb, views); err != nil {
		// Only reachable on a writer error, which strings.Builder never has.
		panic(err)
	}
	return sb.String()
}

// RenderPage substitutes the escaped title and the rendered form into the
// page template. A non-nil bannerErr adds an error banner above the form.
func RenderPage(tpl, title string, fields []Field, bannerErr error) string {
	var settings strings.Builder
	if bannerErr != nil {
		_ = bannerTemplate.Execute(&settings, bannerErr.Error())
	}
	settings.WriteString(RenderForm(fields))

	r := strings.NewReplacer(
		TitlePlaceholder, template.HTMLEscapeString(title),
		SettingsPlaceholder, settings.String(),
	)
	return r.Replace(tpl)
}
