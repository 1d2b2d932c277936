package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/ka2n/sitebot/api/page"
	"github.com/ka2n/sitebot/api/sitemap"
	"github.com/morikuni/failure/v2"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var (
	infoFlag     bool
	rawFlag      bool
	markdownFlag bool
	titleFlag    bool

	sitemapCmd = &cobra.Command{
		Use:   "sitemap [origin]",
		Short: "Fetch and list the sitemap of a site",
		Long: `Fetch <origin>/sitemap.xml through the configured relays and list its
entries. Without an argument the configured origin is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runSitemap,
	}

	pageCmd = &cobra.Command{
		Use:   "page <url>",
		Short: "Fetch the content of a page through the page relays",
		Args:  cobra.ExactArgs(1),
		RunE:  runPage,
	}

	askCmd = &cobra.Command{
		Use:   "ask <message...>",
		Short: "Ask a single question in a fresh conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
)

func init() {
	sitemapCmd.Flags().BoolVar(&infoFlag, "info", false, "Print page labels and categories")
	sitemapCmd.Flags().BoolVar(&rawFlag, "raw", false, "Print the sitemap XML as delivered")
	pageCmd.Flags().BoolVar(&markdownFlag, "markdown", false, "Convert the page to readable Markdown")
	pageCmd.Flags().BoolVar(&titleFlag, "title", false, "Print only the page title")

	rootCmd.AddCommand(sitemapCmd, pageCmd, askCmd)
}

func runSitemap(cmd *cobra.Command, args []string) error {
	var origin string
	if len(args) == 1 {
		var err error
		if origin, err = parseOrigin(args[0]); err != nil {
			return err
		}
	}

	app, err := loadApp(cmd, origin)
	if err != nil {
		return err
	}

	report, err := app.FetchSitemap(cmd.Context(), "", forceFlag)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if rawFlag {
		fmt.Fprintln(out, report.XML)
		return nil
	}

	if infoFlag {
		fmt.Fprintln(out, sectionStyle.Render("Pages"))
		for _, p := range report.Info.Pages {
			fmt.Fprintf(out, "  %s\n", p)
		}
		fmt.Fprintln(out, sectionStyle.Render("Categories"))
		fmt.Fprintf(out, "  %s\n", strings.Join(report.Info.Categories, ", "))
		return nil
	}

	fmt.Fprintln(out, entriesTable(report.Entries))
	summary := fmt.Sprintf("%d pages in %s", report.TotalCount, report.URL)
	if report.LastModified != "" {
		summary += ", last modified " + report.LastModified
	}
	fmt.Fprintln(out, summary)
	return nil
}

var sectionStyle = lipgloss.NewStyle().Bold(true)

func entriesTable(entries []sitemap.Entry) string {
	rows := lo.Map(entries, func(e sitemap.Entry, _ int) []string {
		return []string{e.Location, e.LastModified, e.ChangeFrequency, e.Priority}
	})
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("241"))).
		Headers("URL", "LAST MODIFIED", "CHANGE", "PRIORITY").
		Rows(rows...).
		String()
}

func runPage(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, "")
	if err != nil {
		return err
	}
	if markdownFlag {
		app.Pages.Format = page.FormatMarkdown
	}

	p, err := app.FetchPage(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if titleFlag {
		fmt.Fprintln(cmd.OutOrStdout(), p.Title)
		return nil
	}
	if !markdownFlag {
		fmt.Fprintln(cmd.OutOrStdout(), p.Content)
		return nil
	}

	// Render markdown with glamour
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return failure.Wrap(err)
	}

	out, err := renderer.Render(pageMarkdown(p))
	if err != nil {
		return failure.Wrap(err)
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
	return nil
}

// pageMarkdown heads the converted page with its title.
func pageMarkdown(p page.Page) string {
	if p.Title == "" {
		return p.Content
	}
	return "# " + p.Title + "\n\n" + strings.TrimLeft(p.Content, "\n")
}

func runAsk(cmd *cobra.Command, args []string) error {
	app, err := loadApp(cmd, "")
	if err != nil {
		return err
	}

	conv := newConversation(app.Assistant, "")
	return ask(cmd.Context(), conv, strings.Join(args, " "), cmd.OutOrStdout())
}

func ask(ctx context.Context, conv *conversation, text string, w io.Writer) error {
	reply, err := conv.send(ctx, text)
	if err != nil {
		conv.failed(reply.Question)
	}
	fmt.Fprint(w, conv.transcript(transcriptStyles{}))
	return err
}
