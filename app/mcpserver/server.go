package mcpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"portfolio/app/client/inference"
	"portfolio/app/service/interview"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

const version = "1.0.0"

// Server exposes a single interview controller as MCP tools over stdio.
type Server struct {
	mcp        *server.MCPServer
	controller *interview.Controller
}

func New(di *do.Injector) (*Server, error) {
	return NewServer(interview.NewController(do.MustInvoke[*inference.Service](di))), nil
}

func NewServer(controller *interview.Controller) *Server {
	s := &Server{
		mcp:        server.NewMCPServer("portfolio-interview", version, server.WithToolCapabilities(false)),
		controller: controller,
	}

	for _, t := range s.tools() {
		s.mcp.AddTool(t.tool, t.handler)
	}

	return s
}

// Run serves MCP over stdin/stdout until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("MCP server listening on stdio")

	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

type tool struct {
	tool    mcp.Tool
	handler server.ToolHandlerFunc
}

func (s *Server) tools() []tool {
	return []tool{
		{
			tool: mcp.NewTool("interview_state",
				mcp.WithDescription("Show the current phase, topics, transcript and feedback of the interview session."),
			),
			handler: s.handle(func(context.Context, mcp.CallToolRequest) error {
				return nil
			}),
		},
		{
			tool: mcp.NewTool("request_topics",
				mcp.WithDescription("Generate practice topics for a job role and experience level. Available in the setup phase."),
				mcp.WithString("domain", mcp.Required(), mcp.Description("Job role, e.g. Backend Engineer")),
				mcp.WithString("experience_level", mcp.Required(), mcp.Description("Candidate experience, e.g. 2 years")),
			),
			handler: s.handle(func(ctx context.Context, req mcp.CallToolRequest) error {
				return s.controller.RequestTopics(ctx, req.GetString("domain", ""), req.GetString("experience_level", ""))
			}),
		},
		{
			tool: mcp.NewTool("select_topic",
				mcp.WithDescription("Start a guided practice session on one of the generated topics."),
				mcp.WithString("topic", mcp.Required(), mcp.Description("One of the topics returned by request_topics")),
			),
			handler: s.handle(func(ctx context.Context, req mcp.CallToolRequest) error {
				return s.controller.SelectTopic(ctx, req.GetString("topic", ""))
			}),
		},
		{
			tool: mcp.NewTool("start_interview",
				mcp.WithDescription("Start a full mock interview. Available in the setup phase."),
				mcp.WithString("domain", mcp.Required(), mcp.Description("Job role, e.g. Backend Engineer")),
				mcp.WithString("experience_level", mcp.Required(), mcp.Description("Candidate experience, e.g. 2 years")),
			),
			handler: s.handle(func(ctx context.Context, req mcp.CallToolRequest) error {
				return s.controller.StartInterview(ctx, req.GetString("domain", ""), req.GetString("experience_level", ""))
			}),
		},
		{
			tool: mcp.NewTool("send_message",
				mcp.WithDescription("Answer the interviewer in the running practice or interview session."),
				mcp.WithString("text", mcp.Required(), mcp.Description("The candidate's answer")),
			),
			handler: s.handle(func(ctx context.Context, req mcp.CallToolRequest) error {
				return s.controller.SendUserMessage(ctx, req.GetString("text", ""))
			}),
		},
		{
			tool: mcp.NewTool("end_session",
				mcp.WithDescription("Finish the session and get a rating from 1 to 5 with a summary."),
			),
			handler: s.handle(func(ctx context.Context, _ mcp.CallToolRequest) error {
				return s.controller.EndSession(ctx)
			}),
		},
		{
			tool: mcp.NewTool("change_topic",
				mcp.WithDescription("Leave the practice session and pick another topic."),
			),
			handler: s.handle(func(context.Context, mcp.CallToolRequest) error {
				return s.controller.ChangeTopic()
			}),
		},
		{
			tool: mcp.NewTool("reset",
				mcp.WithDescription("Discard the session and start over."),
			),
			handler: s.handle(func(context.Context, mcp.CallToolRequest) error {
				s.controller.Reset()
				return nil
			}),
		},
	}
}

// handle runs op and replies with the controller snapshot. Controller errors become tool errors.
func (s *Server) handle(op func(ctx context.Context, req mcp.CallToolRequest) error) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := op(ctx, req); err != nil {
			slog.Debug("Tool call failed", "tool", req.Params.Name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}

		data, err := json.Marshal(s.controller.Snapshot())
		if err != nil {
			return nil, err
		}

		return mcp.NewToolResultText(string(data)), nil
	}
}
