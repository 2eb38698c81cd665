package worker

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"github.com/okian/gmassign/internal/adapters/email"
	"github.com/okian/gmassign/internal/domain/model"
)

// Raw HTML in titles is escaped since WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// Markdown builds the plain-text body of a notice.
func Markdown(n model.AssignmentNotice) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello **%s**,\n\n", n.GM.Name)
	fmt.Fprintf(&b, "You have been assigned to **%s** on %s from %s to %s.\n\n",
		n.Activity.Title, n.Activity.Date, n.Activity.StartTime, n.Activity.EndTime)
	if n.GameName != "" {
		fmt.Fprintf(&b, "- Game: %s\n", n.GameName)
	}
	fmt.Fprintf(&b, "- Activity: `%s`\n", n.Activity.ID)
	if n.RunID != "" {
		fmt.Fprintf(&b, "- Batch run: `%s`\n", n.RunID)
	}
	return b.String()
}

// Render turns a notice into an email addressed to its GM.
func Render(n model.AssignmentNotice, from string) (email.Message, error) {
	md := Markdown(n)
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return email.Message{}, fmt.Errorf("render notice %s: %w", n.ID, err)
	}
	return email.Message{
		To:      []string{n.GM.Email},
		From:    from,
		Subject: fmt.Sprintf("Assignment: %s on %s", n.Activity.Title, n.Activity.Date),
		HTML:    buf.String(),
		Text:    md,
	}, nil
}
