package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/ka2n/sitebot/api/assistant"
	"github.com/ka2n/sitebot/api/session"
	"github.com/morikuni/failure/v2"
	"github.com/pkg/browser"
)

const chatHelp = ":open N open link N • :stats counters • :new new conversation • :end end conversation • :quit exit"

// conversation is the state shared by the chat widget and the line mode.
type conversation struct {
	assistant *assistant.Assistant
	owner     string
	sessionID string
	open      func(url string) error
	// failures holds the IDs of visitor messages whose turn failed
	failures map[string]bool
}

func newConversation(a *assistant.Assistant, owner string) *conversation {
	return &conversation{
		assistant: a,
		owner:     owner,
		sessionID: a.StartSession(owner).ID,
		open:      browser.OpenURL,
	}
}

func (c *conversation) session() session.Session {
	s, err := c.assistant.Sessions().Get(c.sessionID)
	if err != nil {
		return session.Session{ID: c.sessionID}
	}
	return s
}

func (c *conversation) typing() bool {
	return c.assistant.Typing(c.sessionID)
}

func (c *conversation) send(ctx context.Context, text string) (assistant.Reply, error) {
	return c.assistant.SendMessage(ctx, c.sessionID, text)
}

// failed puts a fallback bubble after the visitor message of a failed turn.
func (c *conversation) failed(question session.Message) {
	if question.ID == "" {
		return
	}
	if c.failures == nil {
		c.failures = make(map[string]bool)
	}
	c.failures[question.ID] = true
}

// links returns every link of the transcript, numbered from 1 in order.
func (c *conversation) links() []session.Link {
	var links []session.Link
	for _, m := range c.session().Messages {
		links = append(links, m.Links...)
	}
	return links
}

func isCommand(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), ":")
}

// command runs a ":" command and returns a notice for the user.
func (c *conversation) command(line string) (notice string, quit bool, err error) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), ":"))
	if len(fields) == 0 {
		return chatHelp, false, nil
	}

	switch fields[0] {
	case "open", "o":
		if len(fields) != 2 {
			return "", false, failure.New(InvalidArguments, failure.Message("Usage: :open N"))
		}
		links := c.links()
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > len(links) {
			return "", false, failure.New(NoSuchLink,
				failure.Message(fmt.Sprintf("No link %s, the transcript has %d", fields[1], len(links))),
			)
		}
		link := links[n-1]
		if err := c.open(link.URL); err != nil {
			return "", false, failure.Wrap(err, failure.Message("Failed to open "+link.URL))
		}
		return "Opened " + link.URL, false, nil
	case "stats":
		s := c.assistant.Sessions().Stats()
		return fmt.Sprintf("Sessions: %d (active %d, closed %d) • messages: %d",
			s.Sessions, s.Active, s.Closed, s.Messages), false, nil
	case "new":
		c.sessionID = c.assistant.StartSession(c.owner).ID
		c.failures = nil
		return "Started a new conversation", false, nil
	case "end":
		if _, err := c.assistant.EndSession(c.sessionID); err != nil {
			return "", false, err
		}
		return "Conversation ended. Type :new to start another.", false, nil
	case "help", "h":
		return chatHelp, false, nil
	case "quit", "q", "exit":
		return "", true, nil
	default:
		return "", false, failure.New(UnknownCommand,
			failure.Message("Unknown command :"+fields[0]+", try :help"),
		)
	}
}

// transcriptStyles decorates rendered messages. The zero value renders plain text.
type transcriptStyles struct {
	user     lipgloss.Style
	bot      lipgloss.Style
	link     lipgloss.Style
	fallback lipgloss.Style
}

func richStyles() transcriptStyles {
	return transcriptStyles{
		user:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		bot:      lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true),
		link:     lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Underline(true),
		fallback: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// renderMessages renders msgs, numbering links from next. It returns the
// number of the next link.
func renderMessages(b *strings.Builder, msgs []session.Message, next int, st transcriptStyles) int {
	for _, m := range msgs {
		name := st.bot.Render("Bot")
		if m.Sender == session.SenderUser {
			name = st.user.Render("You")
		}
		fmt.Fprintf(b, "%s: %s\n", name, m.Text)
		for _, l := range m.Links {
			fmt.Fprintf(b, "  [%d] %s %s\n", next, l.Label, st.link.Render(l.URL))
			next++
		}
	}
	return next
}

func renderFallback(b *strings.Builder, st transcriptStyles) {
	fmt.Fprintf(b, "%s: %s\n", st.bot.Render("Bot"), st.fallback.Render(assistant.FallbackText))
}

// transcript renders the whole conversation with fallback bubbles in place.
func (c *conversation) transcript(st transcriptStyles) string {
	var b strings.Builder
	msgs := c.session().Messages
	next := 1
	for i, m := range msgs {
		next = renderMessages(&b, msgs[i:i+1], next, st)
		if c.failures[m.ID] {
			renderFallback(&b, st)
		}
	}
	return b.String()
}
