package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/brain-access/internal/brainaccess"
	brainmcp "github.com/ajitpratap0/brain-access/internal/mcp"
	"github.com/ajitpratap0/brain-access/internal/quota"
	"github.com/ajitpratap0/brain-access/internal/store"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  list_plans            plans with quotas and features
  check_feature         entitlement check with upgrade prompt
  sharing_options       sharing destinations for a plan
  user_context          a user's resolved entitlements
  upload_quota          a user's remaining uploads
  brain_access_status   a user's Brain provisioning status
  request_brain_access  request Brain provisioning

If the store is unavailable at startup the server still starts; catalog
tools keep working and per-user tools return MCP error responses.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			var (
				users   store.UserStore
				checker *quota.Checker
				wf      *brainaccess.Workflow
			)
			st, storeErr := newStore(ctx, logger)
			if storeErr != nil {
				// Log to stderr and continue without per-user tools.
				logger.Error("mcp: failed to connect to store; per-user tools will fail", "error", storeErr)
			} else {
				defer func() { _ = st.Close() }()

				n, closeNotifier, err := newNotifier(logger)
				if err != nil {
					return err
				}
				defer func() { _ = closeNotifier() }()

				users = st
				checker = newChecker(st, logger)
				wf = newWorkflow(st, n, logger)
				defer wf.Wait()
			}

			srv := brainmcp.NewServer(users, checker, wf, logger)

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: brain-access MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
