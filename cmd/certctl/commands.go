package main

import (
	"time"

	"github.com/spf13/cobra"
)

func buildFieldsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "fields <template.json>",
		Short: "List the placeholder fields a template uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFields(cmd, args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print fields as JSON")
	return cmd
}

type renderOptions struct {
	bindingsPath string
	sets         []string
	format       string
	output       string
	scale        float64
	qrFallback   string
	baseURL      string
	thumbnail    bool
}

func buildRenderCmd() *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <template.json|sample>",
		Short: "Render a template to PNG or PDF",
		Long: `Render a template file, or the built-in sample certificate, with
placeholder values from a JSON bindings file and --set key=value pairs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVarP(&opts.bindingsPath, "bindings", "b", "", "JSON file of field values")
	cmd.Flags().StringArrayVar(&opts.sets, "set", nil, "Field value as key=value (repeatable)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "png", "Output format: png or pdf")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().Float64Var(&opts.scale, "scale", 0, "Pixels per canvas unit (default 1 for png, 2 for pdf)")
	cmd.Flags().StringVar(&opts.qrFallback, "qr-default", "https://default-link.com", "QR value when no URL is bound")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "Base URL for site-relative image references")
	cmd.Flags().BoolVar(&opts.thumbnail, "thumbnail", false, "Render a downscaled PNG thumbnail")
	return cmd
}

func buildSampleCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write the sample certificate template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSample(cmd, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func buildTokenCmd() *cobra.Command {
	var secret, org, subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, secret, subject, org, ttl)
		},
	}
	cmd.Flags().StringVar(&secret, "secret", envOr("JWT_SECRET", "dev-secret-change-in-production"), "HMAC secret shared with the server")
	cmd.Flags().StringVar(&org, "org", "", "Organization id")
	cmd.Flags().StringVar(&subject, "subject", "certctl", "Token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	cmd.MarkFlagRequired("org")
	return cmd
}

func buildTemplatesCmd(remote *remoteFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage templates on a server",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the organization's templates",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTemplatesList(cmd, remote)
			},
		},
		buildTemplatesPullCmd(remote),
		buildTemplatesPushCmd(remote),
		&cobra.Command{
			Use:   "delete <template-id>",
			Short: "Delete a template",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runTemplatesDelete(cmd, remote, args[0])
			},
		},
	)
	return cmd
}

func buildTemplatesPullCmd(remote *remoteFlags) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "pull <template-id>",
		Short: "Download a template as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatesPull(cmd, remote, args[0], output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	return cmd
}

func buildTemplatesPushCmd(remote *remoteFlags) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "push <template.json>",
		Short: "Upload a template, creating it unless --id is given",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTemplatesPush(cmd, remote, args[0], id)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "Update this template instead of creating one")
	return cmd
}

func buildExportCmd(remote *remoteFlags) *cobra.Command {
	var bindingsPath string
	var sets []string
	cmd := &cobra.Command{
		Use:   "export <template-id>",
		Short: "Export a certificate PDF on the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, remote, args[0], bindingsPath, sets)
		},
	}
	cmd.Flags().StringVarP(&bindingsPath, "bindings", "b", "", "JSON file of field values")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Field value as key=value (repeatable)")
	return cmd
}
