package service

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"
	"time"

	"github.com/templui/authapi/internal/markdown"
)

//go:embed templates/*.md
var templateFS embed.FS

var (
	emailTemplates = template.Must(template.ParseFS(templateFS, "templates/*.md"))
	emailMarkdown  = markdown.NewParser()
)

type emailContent struct {
	Subject string
	Text    string
	HTML    string
}

type resetPasswordData struct {
	AppName  string
	ResetURL string
	Expiry   string
}

func resetPasswordEmailTemplate(resetURL, appName string, expiry time.Duration) (*emailContent, error) {
	return renderEmail("reset_password.md", resetPasswordData{
		AppName:  appName,
		ResetURL: resetURL,
		Expiry:   humanDuration(expiry),
	})
}

func renderEmail(name string, data any) (*emailContent, error) {
	var buf bytes.Buffer
	err := emailTemplates.ExecuteTemplate(&buf, name, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute email template %s: %w", name, err)
	}

	doc, err := emailMarkdown.Render(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to render email template %s: %w", name, err)
	}

	return &emailContent{
		Subject: doc.MetaString("subject"),
		Text:    doc.Text,
		HTML:    doc.HTML,
	}, nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute && d%time.Minute == 0:
		if d == time.Minute {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
