// Package cliui provides reusable terminal UI helpers (spinners, step indicators,
// markdown rendering, transcript printing) for chatstream CLI commands.
package cliui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"

	"github.com/papercomputeco/chatstream/pkg/chat"
)

var (
	SuccessMark  = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	DimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	NameStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	ValueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	HashStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	HeaderStyle  = lipgloss.NewStyle().Bold(true)
	WarnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	StatusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Italic(true)
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	UserPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	AssistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("assistant> ")
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex

	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)

	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RenderMarkdown renders markdown content for terminal display using glamour.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

// PrintTranscript writes every message with its role prompt. Assistant
// messages are rendered as markdown when markdown is true; a render failure
// falls back to the raw text.
func PrintTranscript(w io.Writer, messages []chat.Message, markdown bool) {
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleUser:
			fmt.Fprintf(w, "%s%s\n", UserPrompt, msg.Content)
		default:
			body := msg.Content
			if markdown {
				if rendered, err := RenderMarkdown(body); err == nil {
					body = strings.TrimRight(rendered, "\n")
				}
			}
			fmt.Fprintf(w, "%s%s\n", AssistantPrompt, body)
			if cites := FormatCitations(msg.Citations); cites != "" {
				fmt.Fprintf(w, "  %s\n", DimStyle.Render(cites))
			}
		}
		fmt.Fprintln(w)
	}
}

// FormatCitations renders sources as "sources: a.pdf p.3, b.pdf p.1".
func FormatCitations(citations []chat.Citation) string {
	if len(citations) == 0 {
		return ""
	}

	parts := make([]string, len(citations))
	for i, c := range citations {
		if c.Page > 0 {
			parts[i] = fmt.Sprintf("%s p.%d", c.Filename, c.Page)
		} else {
			parts[i] = c.Filename
		}
	}
	return "sources: " + strings.Join(parts, ", ")
}
