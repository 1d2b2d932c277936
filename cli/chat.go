package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ka2n/sitebot/api/session"
	"github.com/mattn/go-isatty"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	userFlag string
	lineFlag bool

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant of the configured site",
		Long: `Open the chat widget. Questions are answered by the chat endpoint and
followed by links to related pages of the site. Type :help for commands.

When stdin or stdout is not a terminal, or --line is given, a plain line
mode is used instead: one question per line, answers printed as they come.`,
		Args: cobra.NoArgs,
		RunE: runChat,
	}
)

func init() {
	chatCmd.Flags().StringVar(&userFlag, "user", "", "Owner id recorded on the session")
	chatCmd.Flags().BoolVar(&lineFlag, "line", false, "Use the plain line mode")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, "")
	if err != nil {
		return err
	}
	conv := newConversation(app.Assistant, userFlag)

	if lineFlag || !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return chatLines(cmd.Context(), conv, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	restore := quietLogs()
	defer restore()
	return runChatView(cmd.Context(), conv)
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// chatLines runs a conversation over plain lines of text.
func chatLines(ctx context.Context, conv *conversation, in io.Reader, out io.Writer) error {
	var b strings.Builder
	next := renderMessages(&b, conv.session().Messages, 1, transcriptStyles{})
	fmt.Fprint(out, b.String())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		if isCommand(line) {
			before := conv.sessionID
			notice, quit, err := conv.command(line)
			if quit {
				return nil
			}
			if err != nil {
				fmt.Fprintln(out, errorText(err))
				continue
			}
			fmt.Fprintln(out, notice)
			if conv.sessionID != before {
				b.Reset()
				next = renderMessages(&b, conv.session().Messages, 1, transcriptStyles{})
				fmt.Fprint(out, b.String())
			}
			continue
		}
		if line == "" {
			continue
		}

		seen := len(conv.session().Messages)
		reply, err := conv.send(ctx, line)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// the user message is already known to the reader
		b.Reset()
		next = renderMessages(&b, botMessages(conv.session().Messages[seen:]), next, transcriptStyles{})
		if err != nil {
			conv.failed(reply.Question)
			renderFallback(&b, transcriptStyles{})
			b.WriteString("  (" + errorText(err) + ")\n")
		}
		fmt.Fprint(out, b.String())
	}
}

func botMessages(msgs []session.Message) []session.Message {
	return lo.Filter(msgs, func(m session.Message, _ int) bool {
		return m.Sender == session.SenderBot
	})
}
