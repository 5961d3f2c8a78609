// Package summarizer holds the prompt shared by the LLM briefing summarizers.
package summarizer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mikey/mail-priority/internal/core"
	"github.com/mikey/mail-priority/internal/utils"
)

// SystemPrompt frames the model as a briefing assistant
const SystemPrompt = "You are an executive assistant. Write short, factual morning briefings in plain text."

// ErrEmptyResponse is returned when a provider answers without any text
var ErrEmptyResponse = errors.New("empty response from model")

const promptFormat = `Summarize the previous work day for the mailbox owner in at most five sentences.
Lead with the messages that need action and mention deadlines explicitly.
Do not invent facts that are not listed below.

Messages received from %s to %s: %d

Top priorities:
%s
Meetings:
%s`

const subjectLimit = 200

// BuildPrompt renders a briefing into the user prompt. The rendered text is
// cut to maxSize bytes when maxSize is positive.
func BuildPrompt(b *core.Briefing, tp *utils.TextProcessor, maxSize int) string {
	var priorities, meetings strings.Builder

	var start, end string
	if b.Digest != nil {
		start = b.Digest.WindowStart.UTC().Format("Mon 2006-01-02 15:04 UTC")
		end = b.Digest.WindowEnd.UTC().Format("Mon 2006-01-02 15:04 UTC")
		for i, item := range b.Digest.Items {
			m := item.Message
			fmt.Fprintf(&priorities, "%d. %q from %s <%s>, score %g",
				i+1, tp.OneLine(tp.TruncateText(m.Subject, subjectLimit)), tp.OneLine(m.SenderName), m.SenderAddress, item.Score)
			if m.DueAt != nil {
				fmt.Fprintf(&priorities, ", due %s", m.DueAt.UTC().Format("Mon 15:04 UTC"))
			}
			fmt.Fprintf(&priorities, " (%s)\n", strings.Join(item.Reasons, "; "))
		}
	}
	if priorities.Len() == 0 {
		priorities.WriteString("- none\n")
	}

	for _, ev := range b.Events {
		fmt.Fprintf(&meetings, "- %s at %s", tp.OneLine(ev.Subject), ev.Start.UTC().Format("15:04 UTC"))
		if len(ev.Attendees) > 0 {
			fmt.Fprintf(&meetings, " with %s", strings.Join(ev.Attendees, ", "))
		}
		meetings.WriteString("\n")
	}
	if meetings.Len() == 0 {
		meetings.WriteString("- none\n")
	}

	received := len(b.Messages)
	if received == 0 && b.Digest != nil {
		received = len(b.Digest.Items)
	}
	prompt := fmt.Sprintf(promptFormat, start, end, received, priorities.String(), meetings.String())
	return tp.ProcessText(prompt, maxSize)
}

// CleanResponse trims model output and rejects empty answers
func CleanResponse(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
