package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmpl "html/template"
	"strings"
	texttpl "text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// defaultFn supports pipe usage: {{ .name | default "there" }}
func defaultFn(fallback, value string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

var funcs = map[string]any{
	"default": defaultFn,
}

type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

// Render expands the text and html templates of msg.Template.
func Render(msg Message) (*Rendered, error) {
	switch msg.Template {
	case TemplateVerifyEmail, TemplateResetPassword:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, msg.Template)
	}

	text, err := renderFile(msg.Template+".text.tmpl", false, msg.Data)
	if err != nil {
		return nil, err
	}
	html, err := renderFile(msg.Template+".html.tmpl", true, msg.Data)
	if err != nil {
		return nil, err
	}
	return &Rendered{Subject: msg.Subject, Text: text, HTML: html}, nil
}

func renderFile(name string, isHTML bool, data map[string]string) (string, error) {
	var (
		buf bytes.Buffer
		err error
	)

	if data == nil {
		data = map[string]string{}
	}

	if isHTML {
		tpl, e := htmpl.New(name).Funcs(htmpl.FuncMap(funcs)).Option("missingkey=zero").ParseFS(templateFS, "templates/"+name)
		if e != nil {
			return "", fmt.Errorf("parse html %q: %w", name, e)
		}
		err = tpl.Execute(&buf, data)
	} else {
		tpl, e := texttpl.New(name).Funcs(texttpl.FuncMap(funcs)).Option("missingkey=zero").ParseFS(templateFS, "templates/"+name)
		if e != nil {
			return "", fmt.Errorf("parse text %q: %w", name, e)
		}
		err = tpl.Execute(&buf, data)
	}
	if err != nil {
		return "", fmt.Errorf("exec %q: %w", name, err)
	}
	return buf.String(), nil
}
