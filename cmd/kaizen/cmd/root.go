package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jrsteele09/kaizen-client/internal/bootstrap"
	"github.com/jrsteele09/kaizen-client/internal/config"
	"github.com/jrsteele09/kaizen-client/internal/logging"
	"github.com/spf13/cobra"
)

var (
	configFile string
	envFiles   []string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "kaizen",
	Short: "Kaizen idea board client",
	Long: `Command line client for the Kaizen idea board.
The session is persisted between runs; access tokens are refreshed
automatically from the stored refresh cookie.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFiles...); err != nil {
			return err
		}
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logging.Setup(cfg.GetLogLevel(), cfg.GetEnv(), cmd.ErrOrStderr())
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML file with configuration values")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")
}

// withApp builds the client, optionally resumes the persisted session and
// runs fn.
func withApp(cmd *cobra.Command, resume bool, fn func(ctx context.Context, app *bootstrap.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if resume {
		app.Resume(ctx)
	}
	return fn(ctx, app)
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
