package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/certcanvas/certcanvas/backend-go/internal/auth"
	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/export"
	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
	"github.com/certcanvas/certcanvas/backend-go/internal/render"
	"github.com/certcanvas/certcanvas/backend-go/internal/template"
)

// loadDocument reads either a stored template (canvasWidth/canvasHeight)
// or an editor document (canvasSize). "sample" is the built-in certificate.
func loadDocument(path string) (*document.Document, error) {
	if path == "sample" {
		return document.NewSampleDocument(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var sniff struct {
		CanvasWidth *int `json:"canvasWidth"`
	}
	if err := json.Unmarshal(data, &sniff); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if sniff.CanvasWidth != nil {
		var t template.Template
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", path, err)
		}
		if err := document.CheckUniqueIDs(t.Elements); err != nil {
			return nil, fmt.Errorf("parse template %s: %w", path, err)
		}
		return t.Document(), nil
	}

	var doc document.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document %s: %w", path, err)
	}
	return &doc, nil
}

// loadBindings merges a JSON bindings file with key=value pairs; pairs win.
func loadBindings(path string, sets []string) (placeholder.Bindings, error) {
	bindings := placeholder.Bindings{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &bindings); err != nil {
			return nil, fmt.Errorf("parse bindings %s: %w", path, err)
		}
	}
	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --set %q, want key=value", kv)
		}
		bindings[strings.TrimSpace(key)] = value
	}
	return bindings, nil
}

// writeOutput writes data to path, or to the command's stdout when path is empty.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%d bytes)\n", path, len(data))
	return nil
}

func writeJSON(cmd *cobra.Command, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(cmd, path, append(data, '\n'))
}

func runFields(cmd *cobra.Command, path string, asJSON bool) error {
	doc, err := loadDocument(path)
	if err != nil {
		return err
	}
	fields := placeholder.Describe(placeholder.ExtractFields(doc))
	if asJSON {
		return writeJSON(cmd, "", fields)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FIELD\tLABEL")
	for _, f := range fields {
		fmt.Fprintf(tw, "%s\t%s\n", f.Name, f.Label)
	}
	return tw.Flush()
}

func runRender(cmd *cobra.Command, path string, opts *renderOptions) error {
	doc, err := loadDocument(path)
	if err != nil {
		return err
	}
	bindings, err := loadBindings(opts.bindingsPath, opts.sets)
	if err != nil {
		return err
	}

	loader, err := render.NewHTTPLoader(render.HTTPLoaderOptions{BaseURL: opts.baseURL})
	if err != nil {
		return err
	}
	r := render.New(loader, render.WithQRFallback(opts.qrFallback))
	ctx := cmd.Context()

	var out []byte
	switch {
	case opts.thumbnail:
		out, err = r.Thumbnail(ctx, placeholder.Apply(doc, bindings, opts.qrFallback), render.ThumbnailWidth)
	case opts.format == "pdf":
		out, err = r.RenderPDF(ctx, doc, render.Options{Bindings: bindings, Scale: opts.scale})
	case opts.format == "png":
		out, err = r.RenderPNG(ctx, doc, render.Options{Bindings: bindings, Scale: opts.scale})
	default:
		return fmt.Errorf("unknown format %q, want png or pdf", opts.format)
	}
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return writeOutput(cmd, opts.output, out)
}

func runSample(cmd *cobra.Command, output string) error {
	return writeJSON(cmd, output, template.DataFromDocument(document.NewSampleDocument(), ""))
}

func runToken(cmd *cobra.Command, secret, subject, org string, ttl time.Duration) error {
	if secret == "" {
		return errors.New("--secret is required")
	}
	token, err := auth.NewService(auth.Options{JWTSecret: secret}).IssueToken(subject, org, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func (r *remoteFlags) templates() *template.Client {
	return template.NewClient(r.server, r.token, nil)
}

func runTemplatesList(cmd *cobra.Command, remote *remoteFlags) error {
	list, err := remote.templates().List(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tELEMENTS\tUPDATED")
	for _, t := range list {
		fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%d\t%s\n", t.ID, t.Name, t.CanvasWidth, t.CanvasHeight, len(t.Elements), t.UpdatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

func runTemplatesPull(cmd *cobra.Command, remote *remoteFlags, id, output string) error {
	t, err := remote.templates().Get(cmd.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(cmd, output, t)
}

func runTemplatesPush(cmd *cobra.Command, remote *remoteFlags, path, id string) error {
	doc, err := loadDocument(path)
	if err != nil {
		return err
	}
	data := template.DataFromDocument(doc, "")
	client := remote.templates()

	var t *template.Template
	if id == "" {
		t, err = client.Create(cmd.Context(), data)
	} else {
		t, err = client.Update(cmd.Context(), id, data)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.ID)
	return nil
}

func runTemplatesDelete(cmd *cobra.Command, remote *remoteFlags, id string) error {
	return remote.templates().Delete(cmd.Context(), id)
}

func runExport(cmd *cobra.Command, remote *remoteFlags, id, bindingsPath string, sets []string) error {
	bindings, err := loadBindings(bindingsPath, sets)
	if err != nil {
		return err
	}
	client := export.NewClient(remote.server, remote.token, nil)
	resp, err := client.Export(cmd.Context(), export.Request{TemplateID: id, Bindings: bindings})
	if err != nil {
		var verr *export.ValidationError
		if errors.As(err, &verr) {
			return fmt.Errorf("missing fields: %s", strings.Join(verr.Fields, ", "))
		}
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), resp.FileURL)
	return nil
}
