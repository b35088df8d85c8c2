// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Melodies Contributors

package notify

import (
	"bytes"
	"embed"
	"html"
	"html/template"
	"strings"

	"github.com/samber/oops"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

// Template sections every notification template defines.
const (
	sectionSubject = "subject"
	sectionBody    = "body"
)

// VerificationData is the verification template input.
type VerificationData struct {
	AppName      string
	Name         string
	Code         string
	ValidMinutes int
}

// WelcomeData is the welcome template input.
type WelcomeData struct {
	AppName  string
	Name     string
	LoginURL string
}

// Renderer turns a Kind and its data into a subject and HTML body.
type Renderer struct {
	templates map[Kind]*template.Template
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[Kind]*template.Template)}
	for _, kind := range []Kind{KindVerification, KindWelcome} {
		name := "templates/" + string(kind) + ".html.tmpl"
		tmpl, err := template.ParseFS(templateFS, name)
		if err != nil {
			return nil, oops.Code("NOTIFY_TEMPLATE_INVALID").With("template", name).Wrap(err)
		}
		r.templates[kind] = tmpl
	}
	return r, nil
}

// Render executes the subject and body sections of the kind's template.
func (r *Renderer) Render(kind Kind, data any) (subject, body string, err error) {
	tmpl, ok := r.templates[kind]
	if !ok {
		return "", "", oops.Code("NOTIFY_TEMPLATE_UNKNOWN").With("kind", kind).Errorf("no template for %s", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, sectionSubject, data); err != nil {
		return "", "", oops.Code("NOTIFY_RENDER_FAILED").With("kind", kind).With("section", sectionSubject).Wrap(err)
	}
	// subjects are plain header text, not HTML
	subject = strings.TrimSpace(html.UnescapeString(buf.String()))

	buf.Reset()
	if err := tmpl.ExecuteTemplate(&buf, sectionBody, data); err != nil {
		return "", "", oops.Code("NOTIFY_RENDER_FAILED").With("kind", kind).With("section", sectionBody).Wrap(err)
	}
	return subject, buf.String(), nil
}
