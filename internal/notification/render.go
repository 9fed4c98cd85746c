package notification

import (
	"bytes"
	"fmt"
	"html"
	"html/template"
	"strings"
	"time"
	"unicode"

	"github.com/richdadretirement/leadrelay/internal/entity"
)

const timeLayout = "Jan 2, 2006 3:04:05 PM MST"

// Message is a rendered notification, ready for any channel.
type Message struct {
	NotificationID string
	Type           entity.EventType
	Urgent         bool
	Subject        string
	// Text is the chat rendering (Telegram HTML parse mode).
	Text string
	// HTML is the email body.
	HTML string
	// Lines holds the unescaped body lines in display order, header excluded.
	Lines []string
}

type Renderer struct {
	loc *time.Location
}

func NewRenderer(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.UTC
	}
	return &Renderer{loc: loc}
}

// LoadRenderer resolves an IANA zone name, falling back to UTC.
func LoadRenderer(zone string) (*Renderer, error) {
	if zone == "" {
		return NewRenderer(time.UTC), nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return NewRenderer(time.UTC), fmt.Errorf("load timezone %q: %w", zone, err)
	}
	return NewRenderer(loc), nil
}

func (r *Renderer) Render(n Notification) Message {
	meta := MetaFor(n.Type)
	lines := r.lines(n)
	footer := footers[n.Type]

	source := n.SubID.Source
	if source == "" {
		source = "unknown"
	}

	msg := Message{
		NotificationID: n.ID,
		Type:           n.Type,
		Urgent:         meta.Urgent(),
		Subject:        fmt.Sprintf("%s %s - %s", meta.Emoji, meta.Label, source),
		Lines:          lines,
	}

	var text strings.Builder
	fmt.Fprintf(&text, "%s <b>%s</b>\n", meta.Emoji, html.EscapeString(meta.Label))
	for _, line := range lines {
		text.WriteString("\n")
		text.WriteString(html.EscapeString(line))
	}
	if footer != "" {
		text.WriteString("\n\n")
		text.WriteString(html.EscapeString(footer))
	}
	msg.Text = text.String()

	var body bytes.Buffer
	err := emailTemplate.Execute(&body, emailData{
		Emoji:  meta.Emoji,
		Label:  meta.Label,
		Lines:  lines,
		Footer: footer,
	})
	if err != nil {
		// the template is static; fall back to the chat rendering
		body.Reset()
		body.WriteString("<pre>" + msg.Text + "</pre>")
	}
	msg.HTML = body.String()

	return msg
}

func (r *Renderer) lines(n Notification) []string {
	occurred := n.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	source := n.SubID.Source
	if source == "" {
		source = "unknown"
	}

	lines := []string{
		"Time: " + occurred.In(r.loc).Format(timeLayout),
		"Source: " + source,
	}
	if n.SubID.ClickID != "" {
		lines = append(lines, "Click ID: "+n.SubID.ClickID)
	}
	if n.Location != "" {
		lines = append(lines, "Location: "+n.Location)
	}
	if n.LeadID != "" {
		lines = append(lines, "Lead ID: "+n.LeadID)
	}
	if !n.Type.Known() && n.RawType != "" {
		lines = append(lines, "Event: "+n.RawType)
	}
	for _, f := range n.Fields {
		lines = append(lines, humanize(f.Key)+": "+f.Value)
	}
	return lines
}

// humanize turns "first_name" into "First Name".
func humanize(key string) string {
	words := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	if len(words) == 0 {
		return key
	}
	return strings.Join(words, " ")
}

type emailData struct {
	Emoji  string
	Label  string
	Lines  []string
	Footer string
}

var emailTemplate = template.Must(template.New("notification").Parse(`<div style="font-family: Arial, sans-serif; max-width: 560px;">
  <h2 style="color: #1a1a1a;">{{.Emoji}} {{.Label}}</h2>
  <table style="border-collapse: collapse; width: 100%;">
  {{- range .Lines}}
    <tr><td style="padding: 6px 0; border-bottom: 1px solid #eee;">{{.}}</td></tr>
  {{- end}}
  </table>
  {{- if .Footer}}
  <p style="font-weight: bold; margin-top: 16px;">{{.Footer}}</p>
  {{- end}}
</div>`))
