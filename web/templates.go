// ABOUTME: HTML templates and helper FuncMap for the monitor dashboard.
// ABOUTME: Task descriptions render as markdown; raw HTML is escaped via goldmark's defaults.

package web

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
)

// buildFuncMap creates the template FuncMap with rendering helpers.
func buildFuncMap() template.FuncMap {
	return template.FuncMap{
		"markdown": markdownToHTML,
		"timeAgo":  timeAgo,
		"laneCell": laneCell,
	}
}

// markdownToHTML converts a markdown string to HTML using goldmark.
func markdownToHTML(input string) template.HTML {
	var buf bytes.Buffer
	md := goldmark.New()
	if err := md.Convert([]byte(input), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(input))
	}
	return template.HTML(buf.String())
}

// timeAgo formats a time as a relative duration string.
func timeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

// laneCell renders one pipeline cell: filled when the lane was reached.
func laneCell(reached bool) template.HTML {
	if reached {
		return template.HTML(`<span class="lane reached">&#9632;</span>`)
	}
	return template.HTML(`<span class="lane">&#9633;</span>`)
}

const baseTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>spyglass monitor</title>
<style>
body { font-family: ui-monospace, monospace; margin: 2rem; background: #14151a; color: #d8dae0; }
h1 { font-size: 1.2rem; }
table { border-collapse: collapse; width: 100%; }
th, td { text-align: left; padding: 0.4rem 0.8rem; border-bottom: 1px solid #2a2c33; }
.lane { color: #3a3d47; margin-right: 2px; }
.lane.reached { color: #6fd18b; }
.tag { padding: 0 0.4rem; border-radius: 3px; font-size: 0.8rem; }
.tag.local { background: #2b4a6f; }
.tag.done { background: #2f5a3a; }
.desc p { margin: 0; }
a { color: #8ab4f8; }
</style>
</head>
<body>
<h1>spyglass monitor</h1>
{{ template "body" . }}
</body>
</html>`

const indexTemplate = `{{ define "body" }}
<table>
<tr><th>task</th><th>description</th><th>pipeline</th><th>thoughts</th><th>first seen</th><th></th></tr>
{{ range .Tasks }}
<tr>
<td><a href="/tasks/{{ .ID }}">{{ .ID }}</a></td>
<td class="desc">{{ markdown .Description }}</td>
<td>{{ range .Lanes }}{{ laneCell . }}{{ end }}</td>
<td>{{ len .Thoughts }}</td>
<td>{{ timeAgo .FirstObservedAt }}</td>
<td>
{{ if .LocallyOriginated }}<span class="tag local">local</span>{{ end }}
{{ if .Completed }}<span class="tag done">done</span>{{ end }}
</td>
</tr>
{{ else }}
<tr><td colspan="6">no tasks observed yet</td></tr>
{{ end }}
</table>
{{ end }}`

const taskTemplate = `{{ define "body" }}
<p><a href="/">&larr; all tasks</a></p>
<h2>{{ .Task.ID }}</h2>
<div class="desc">{{ markdown .Task.Description }}</div>
<table>
<tr><th>thought</th><th>pipeline</th><th>current stage</th></tr>
{{ range .Task.Thoughts }}
<tr>
<td>{{ .ID }}</td>
<td>{{ range .Lanes }}{{ laneCell . }}{{ end }}</td>
<td>{{ .CurrentStage }}</td>
</tr>
{{ end }}
</table>
{{ end }}`
