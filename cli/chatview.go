package cli

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ka2n/sitebot/api/assistant"
	"github.com/morikuni/failure/v2"
)

var (
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).PaddingLeft(2)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("228")).PaddingLeft(2)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).PaddingLeft(2)
)

// replyMsg carries the outcome of a turn back to the widget.
type replyMsg struct {
	sessionID string
	reply     assistant.Reply
	err       error
}

// typingMsg reports that a turn started or finished answering; by then the
// visitor's message is stored.
type typingMsg struct {
	sessionID string
	typing    bool
}

// chatModel is the chat widget: transcript viewport, input line and typing indicator.
type chatModel struct {
	ctx      context.Context
	conv     *conversation
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	styles   transcriptStyles
	ready    bool
	pending  int
	notice   string
	err      error
}

func newChatModel(ctx context.Context, conv *conversation) *chatModel {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask about the site, or :help"
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	ti.PlaceholderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	return &chatModel{
		ctx:     ctx,
		conv:    conv,
		input:   ti,
		spinner: sp,
		styles:  richStyles(),
	}
}

// Init initializes the chat model
func (m *chatModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Update handles user input and turn results
func (m *chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.Reset()
			cmd := m.submit(line)
			m.refresh()
			return m, cmd
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case replyMsg:
		m.pending--
		if msg.err != nil && msg.sessionID == m.conv.sessionID {
			m.conv.failed(msg.reply.Question)
			m.err = msg.err
		}
		m.refresh()
		return m, nil

	case typingMsg:
		if msg.sessionID == m.conv.sessionID {
			m.refresh()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		height := msg.Height - 4
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.Style = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				PaddingLeft(1).
				PaddingRight(1)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.input.Width = msg.Width - 4
		m.refresh()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit handles an entered line and returns the command running the turn, if any.
func (m *chatModel) submit(line string) tea.Cmd {
	m.notice, m.err = "", nil

	if isCommand(line) {
		notice, quit, err := m.conv.command(line)
		if quit {
			return tea.Quit
		}
		m.notice, m.err = notice, err
		return nil
	}
	if line == "" {
		return nil
	}

	m.pending++
	ctx, a, id := m.ctx, m.conv.assistant, m.conv.sessionID
	return func() tea.Msg {
		reply, err := a.SendMessage(ctx, id, line)
		return replyMsg{sessionID: id, reply: reply, err: err}
	}
}

func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.conv.transcript(m.styles))
	m.viewport.GotoBottom()
}

// View renders the current state of the model
func (m *chatModel) View() string {
	if !m.ready {
		return "\nInitializing..."
	}

	status := helpStyle.Render(chatHelp)
	switch {
	case m.pending > 0 || m.conv.typing():
		status = helpStyle.Render(m.spinner.View() + " Assistant is typing...")
	case m.err != nil:
		status = errorStyle.Render(errorText(m.err))
	case m.notice != "":
		status = noticeStyle.Render(m.notice)
	}

	return m.viewport.View() + "\n" + status + "\n" + m.input.View()
}

func errorText(err error) string {
	if msg := failure.MessageOf(err); msg != "" {
		return msg.String()
	}
	return err.Error()
}

// runChatView runs the chat widget until the user quits
func runChatView(ctx context.Context, conv *conversation) error {
	p := tea.NewProgram(
		newChatModel(ctx, conv),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	conv.assistant.OnTyping = func(sessionID string, typing bool) {
		p.Send(typingMsg{sessionID: sessionID, typing: typing})
	}
	defer func() { conv.assistant.OnTyping = nil }()

	_, err := p.Run()
	return err
}
