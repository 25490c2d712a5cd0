package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	htmlGreeting = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/greeting.html.tmpl"))
	textGreeting = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/greeting.txt.tmpl"))
)

// Greeting is one birthday message before rendering.
type Greeting struct {
	Name  string
	Email string
	Wish  string
}

// Rendered holds the final subject and both bodies.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

type templateData struct {
	Name     string
	Wish     string
	FromName string
}

// Subject returns the greeting subject line for name.
func Subject(name string) string {
	return fmt.Sprintf("🎂 %s，生日快乐！", name)
}

// Render fills both templates. The HTML body escapes name and wish.
func Render(g Greeting, fromName string) (Rendered, error) {
	data := templateData{Name: g.Name, Wish: g.Wish, FromName: fromName}

	var text bytes.Buffer
	if err := textGreeting.Execute(&text, data); err != nil {
		return Rendered{}, fmt.Errorf("render text body: %w", err)
	}

	var html bytes.Buffer
	if err := htmlGreeting.Execute(&html, data); err != nil {
		return Rendered{}, fmt.Errorf("render html body: %w", err)
	}

	return Rendered{
		Subject: Subject(g.Name),
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
