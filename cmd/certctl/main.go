// Command certctl renders certificate templates offline and talks to a
// running certcanvas server.
//
// Render a template file with bindings:
//
//	certctl render template.json --bindings data.json --format pdf -o out.pdf
//
// List the fields a template needs:
//
//	certctl fields template.json
//
// Remote commands read CERTCANVAS_URL and CERTCANVAS_TOKEN.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type remoteFlags struct {
	server string
	token  string
}

func buildRootCmd() *cobra.Command {
	remote := &remoteFlags{}
	rootCmd := &cobra.Command{
		Use:          "certctl",
		Short:        "Certificate template tooling",
		Version:      version,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&remote.server, "server", envOr("CERTCANVAS_URL", "http://localhost:8080"), "certcanvas server URL")
	rootCmd.PersistentFlags().StringVar(&remote.token, "token", os.Getenv("CERTCANVAS_TOKEN"), "bearer token for the server")

	rootCmd.AddCommand(
		buildFieldsCmd(),
		buildRenderCmd(),
		buildSampleCmd(),
		buildTokenCmd(),
		buildTemplatesCmd(remote),
		buildExportCmd(remote),
	)
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
