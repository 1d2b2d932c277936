package mcp

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"
	"github.com/ka2n/sitebot/api"
	"github.com/ka2n/sitebot/api/assistant"
	"github.com/ka2n/sitebot/api/session"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/mitchellh/mapstructure"
	"github.com/morikuni/failure/v2"
)

var validate = validator.New()

func InitTools(app *api.App) []server.ServerTool {
	tools := []server.ServerTool{}

	tools = append(tools, newServerTool(FetchSitemap(app)))
	tools = append(tools, newServerTool(RelatedPages(app)))
	tools = append(tools, newServerTool(FetchPage(app)))
	tools = append(tools, newServerTool(AskSite(app)))
	tools = append(tools, newServerTool(SessionStats(app)))

	return tools
}

// decodeArgs decodes and validates tool arguments into args.
func decodeArgs(ctx context.Context, req mcp.CallToolRequest, args any) *mcp.CallToolResult {
	if err := mapstructure.Decode(req.Params.Arguments, args); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	if err := validate.StructCtx(ctx, args); err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	if msg := failure.MessageOf(err); msg != "" {
		return mcp.NewToolResultError(msg.String())
	}
	return mcp.NewToolResultError(err.Error())
}

func FetchSitemap(app *api.App) (tool mcp.Tool, handler server.ToolHandlerFunc) {
	return mcp.NewTool(
			"fetch_sitemap",
			mcp.WithDescription("Fetch a site's sitemap.xml and list its pages with a summary"),
			mcp.WithString("origin", mcp.Description("Site origin, e.g. https://shop.example.com. Defaults to the configured site")),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			type ToolArguments struct {
				Origin string `mapstructure:"origin" validate:"omitempty,http_url"`
			}
			var args ToolArguments
			if res := decodeArgs(ctx, req, &args); res != nil {
				return res, nil
			}

			report, err := app.FetchSitemap(ctx, args.Origin, false)
			if err != nil {
				return errorResult(err), nil
			}
			return jsonResult(report)
		}
}

func RelatedPages(app *api.App) (tool mcp.Tool, handler server.ToolHandlerFunc) {
	return mcp.NewTool(
			"related_pages",
			mcp.WithDescription("Find pages of a site whose URL slug matches words of a message"),
			mcp.WithString("message", mcp.Required(), mcp.Description("Visitor message")),
			mcp.WithString("origin", mcp.Description("Site origin. Defaults to the configured site")),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			type ToolArguments struct {
				Message string `mapstructure:"message" validate:"required"`
				Origin  string `mapstructure:"origin" validate:"omitempty,http_url"`
			}
			var args ToolArguments
			if res := decodeArgs(ctx, req, &args); res != nil {
				return res, nil
			}

			pages, err := app.RelatedPages(ctx, args.Origin, args.Message)
			if err != nil {
				return errorResult(err), nil
			}
			return jsonResult(map[string]any{"pages": pages})
		}
}

func FetchPage(app *api.App) (tool mcp.Tool, handler server.ToolHandlerFunc) {
	return mcp.NewTool(
			"fetch_page",
			mcp.WithDescription("Fetch a page through the page relays and return its title and content"),
			mcp.WithString("url", mcp.Required(), mcp.Description("Absolute page URL")),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			type ToolArguments struct {
				URL string `mapstructure:"url" validate:"required,http_url"`
			}
			var args ToolArguments
			if res := decodeArgs(ctx, req, &args); res != nil {
				return res, nil
			}

			p, err := app.FetchPage(ctx, args.URL)
			if err != nil {
				return errorResult(err), nil
			}
			return jsonResult(p)
		}
}

func AskSite(app *api.App) (tool mcp.Tool, handler server.ToolHandlerFunc) {
	return mcp.NewTool(
			"ask_site",
			mcp.WithDescription("Ask the site assistant a question. Pass session_id to continue a conversation"),
			mcp.WithString("message", mcp.Required(), mcp.Description("Question for the assistant")),
			mcp.WithString("session_id", mcp.Description("Conversation to continue; a new one is started when empty")),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			type ToolArguments struct {
				Message   string `mapstructure:"message" validate:"required"`
				SessionID string `mapstructure:"session_id" validate:"omitempty,uuid"`
			}
			var args ToolArguments
			if res := decodeArgs(ctx, req, &args); res != nil {
				return res, nil
			}

			sessionID := args.SessionID
			if sessionID == "" {
				sessionID = app.Assistant.StartSession("mcp").ID
			}

			reply, err := app.Assistant.SendMessage(ctx, sessionID, args.Message)
			if err != nil {
				res := errorResult(err)
				res.Content = append(res.Content, mcp.NewTextContent("kind: "+string(assistant.Kind(err))))
				return res, nil
			}

			type Answer struct {
				SessionID string         `json:"session_id"`
				Kind      session.Kind   `json:"kind"`
				Text      string         `json:"text"`
				Links     []session.Link `json:"links"`
			}
			return jsonResult(Answer{
				SessionID: sessionID,
				Kind:      reply.Message.Kind,
				Text:      reply.Message.Text,
				Links:     reply.Message.Links,
			})
		}
}

func SessionStats(app *api.App) (tool mcp.Tool, handler server.ToolHandlerFunc) {
	return mcp.NewTool(
			"session_stats",
			mcp.WithDescription("Count conversations and messages held by this server"),
		), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return jsonResult(app.Sessions.Stats())
		}
}
