package handlers

import (
	"bytes"
	"html/template"
	"time"

	"github.com/MegaGrindStone/chat-playground/internal/models"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

type markdown struct {
	md goldmark.Markdown
}

// message is the view of a transcript entry handed to the chat_message templates.
type message struct {
	ID        string
	Role      string
	Parts     []models.Part
	Timestamp time.Time

	// Streaming is set while the message still grows. Reasoning is only shown while streaming.
	Streaming bool
}

func newMarkdown() markdown {
	return markdown{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				highlighting.NewHighlighting(
					highlighting.WithStyle("github"),
				),
			),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		),
	}
}

// render converts Markdown to HTML. Partial Markdown, as seen mid-stream, is rendered as far as it goes.
func (m markdown) render(s string) template.HTML {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(buf.String())
}

func messageView(m models.Message) message {
	return message{
		ID:        m.ID,
		Role:      string(m.Role),
		Parts:     m.Parts,
		Timestamp: m.Timestamp,
		Streaming: m.Role == models.RoleAssistant && !m.Final,
	}
}
