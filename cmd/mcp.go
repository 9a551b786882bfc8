package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/agentic-research/vartree/internal/assign"
	"github.com/agentic-research/vartree/internal/codec"
	"github.com/agentic-research/vartree/internal/nv"
)

var mcpVersion = "0.1.0"

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp [file...]",
	Short: "Serve the variables to MCP clients over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newStore()
		if len(args) > 0 {
			var err error
			if s, err = loadInputs(args, cmd.InOrStdin()); err != nil {
				return err
			}
		}
		ro, err := opts.RenderOptions()
		if err != nil {
			return err
		}
		logger.Info("mcp server starting", "variables", len(s.Global().Names()))
		return server.ServeStdio(newMCPServer(&session{store: s, scope: s.Global(), render: ro}))
	},
}

// session serializes tool calls against one store.
type session struct {
	mu     sync.Mutex
	store  *nv.Store
	scope  *nv.Scope
	render nv.RenderOptions
}

func newMCPServer(sess *session) *server.MCPServer {
	srv := server.NewMCPServer("vartree", mcpVersion, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool("vars_eval",
		mcp.WithDescription("Evaluate assignments such as cfg=(host=db port=5432) or typeset -i n=3"),
		mcp.WithString("source", mcp.Required(), mcp.Description("Assignment text")),
	), sess.eval)

	srv.AddTool(mcp.NewTool("vars_render",
		mcp.WithDescription("Render variables in canonical assignment form"),
		mcp.WithString("name", mcp.Description("Variable to render; all when empty")),
		mcp.WithString("layout", mcp.Description("pretty, flat or compact")),
	), sess.renderTool)

	srv.AddTool(mcp.NewTool("vars_get",
		mcp.WithDescription("Get the scalar value of a variable"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Variable name, e.g. cfg.port or list[1]")),
	), sess.get)

	srv.AddTool(mcp.NewTool("vars_list",
		mcp.WithDescription("List the names visited by a walk of a variable"),
		mcp.WithString("prefix", mcp.Description("Variable to walk; the whole scope when empty")),
	), sess.list)

	srv.AddTool(mcp.NewTool("vars_json",
		mcp.WithDescription("Convert variables to JSON, optionally selecting with JSONPath"),
		mcp.WithString("name", mcp.Description("Variable to convert; all when empty")),
		mcp.WithString("query", mcp.Description("JSONPath expression")),
	), sess.json)

	srv.AddTool(mcp.NewTool("vars_unset",
		mcp.WithDescription("Unset a variable and everything below it"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Variable name")),
	), sess.unset)

	srv.AddTool(mcp.NewTool("vars_copy",
		mcp.WithDescription("Copy or move a variable tree"),
		mcp.WithString("from", mcp.Required(), mcp.Description("Source variable")),
		mcp.WithString("to", mcp.Required(), mcp.Description("Destination variable")),
		mcp.WithBoolean("move", mcp.Description("Unset the source afterwards")),
		mcp.WithBoolean("append", mcp.Description("Keep members the destination already has")),
		mcp.WithBoolean("share", mcp.Description("Link the destination to the source's members")),
	), sess.copy)

	return srv
}

func (sess *session) eval(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := assign.Eval(sess.store, sess.scope, src); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("ok"), nil
}

func (sess *session) renderTool(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ro := sess.render
	if layout := req.GetString("layout", ""); layout != "" {
		l, err := nv.ParseLayout(layout)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		ro.Layout, ro.Export = l, false
	}
	var names []string
	if name := req.GetString("name", ""); name != "" {
		names = []string{name}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	var b strings.Builder
	if err := renderVariables(&b, sess.store, sess.scope, names, ro); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (sess *session) get(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	e, ok := sess.store.Lookup(sess.scope, name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", name, nv.ErrNotFound)), nil
	}
	return mcp.NewToolResultText(e.Value()), nil
}

func (sess *session) list(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prefix := req.GetString("prefix", "")
	sess.mu.Lock()
	defer sess.mu.Unlock()
	var names []string
	err := sess.store.WalkDir(sess.scope, prefix, func(name string) bool {
		names = append(names, name)
		return true
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (sess *session) json(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	var v any
	if name := req.GetString("name", ""); name != "" {
		e, ok := sess.store.Lookup(sess.scope, name)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("%s: %v", name, nv.ErrNotFound)), nil
		}
		v = codec.ToValue(e)
	} else {
		v = codec.ScopeValue(sess.store, sess.scope)
	}
	if q := req.GetString("query", ""); q != "" {
		got, err := codec.Query(v, q)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		v = got
	}
	return mcp.NewToolResultText(codec.JSON(v, 2)), nil
}

func (sess *session) unset(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.store.Unset(sess.scope, name); err != nil {
		var we *nv.WalkError
		if errors.As(err, &we) {
			return mcp.NewToolResultText(fmt.Sprintf("partially unset; kept read-only: %s", strings.Join(we.Skipped, ", "))), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("ok"), nil
}

func (sess *session) copy(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	from, err := req.RequireString("from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := req.RequireString("to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var flags nv.WalkFlag
	if req.GetBool("move", false) {
		flags |= nv.Move
	}
	if req.GetBool("append", false) {
		flags |= nv.Append
	}
	if req.GetBool("share", false) {
		flags |= nv.Share
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	dst, err := sess.store.Copy(sess.scope, from, to, flags)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(sess.store.RenderString(dst, nv.RenderOptions{Layout: nv.LayoutFlat})), nil
}
