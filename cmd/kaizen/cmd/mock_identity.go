package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/kaizen-client/mockidentity"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var mockPort string

var mockIdentityCmd = &cobra.Command{
	Use:   "mock-identity",
	Short: "Run the in-memory backend for local development",
	Long: `Serves the identity endpoints and an in-memory idea board.
Seeded accounts: ` + mockidentity.DefaultUsername + `/` + mockidentity.DefaultPassword + ` and mentor/mentor123.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.GetMockIdentityPort()
		if mockPort != "" {
			addr = ":" + mockPort
		}
		return runMockIdentity(addr)
	},
}

func init() {
	mockIdentityCmd.Flags().StringVarP(&mockPort, "port", "p", "", "Port to listen on (default MOCK_IDENTITY_PORT)")
	rootCmd.AddCommand(mockIdentityCmd)
}

func runMockIdentity(addr string) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	mock, err := mockidentity.New(mockidentity.WithLogger(log.Logger))
	if err != nil {
		return err
	}
	displayAppname(cfg.GetAppName())

	server := &http.Server{Addr: addr, Handler: mock.Handler(), ReadHeaderTimeout: 10 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- listenAndServe(server)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(server)
}

func listenAndServe(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("mock identity listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(server *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	log.Info().Msg("mock identity stopped")
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
