package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/kaizen-client/httpclient"
	"github.com/jrsteele09/kaizen-client/internal/bootstrap"
	"github.com/spf13/cobra"
)

var (
	requestData   string
	requestParams []string
)

var requestCmd = &cobra.Command{
	Use:   "request METHOD PATH",
	Short: "Send an authenticated request to the API",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		method := strings.ToUpper(args[0])
		options := httpclient.RequestOptions{Method: method}

		if len(requestParams) > 0 {
			options.Params = url.Values{}
			for _, p := range requestParams {
				key, value, ok := strings.Cut(p, "=")
				if !ok {
					return fmt.Errorf("invalid param %q, want key=value", p)
				}
				options.Params.Add(key, value)
			}
		}
		if requestData != "" {
			if !json.Valid([]byte(requestData)) {
				return fmt.Errorf("--data is not valid JSON")
			}
			options.Body = json.RawMessage(requestData)
		}

		return withApp(cmd, true, func(ctx context.Context, app *bootstrap.App) error {
			data, err := app.API.Request(ctx, args[1], options)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		})
	},
}

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "List the ideas on the board",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, app *bootstrap.App) error {
			posts, err := app.Ideas.Posts.List(ctx, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), posts)
		})
	},
}

var notificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Show the unread notification count",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, app *bootstrap.App) error {
			count, err := app.Ideas.Notifications.UnreadCount(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"unread_count": count})
		})
	},
}

func init() {
	requestCmd.Flags().StringVarP(&requestData, "data", "d", "", "JSON request body")
	requestCmd.Flags().StringArrayVarP(&requestParams, "param", "q", nil, "Query parameter key=value, repeatable")
	requestCmd.Example = "  kaizen request GET /api/posts/ -q status=" + http.StatusText(http.StatusOK)

	rootCmd.AddCommand(requestCmd, postsCmd, notificationsCmd)
}
