package render

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
)

var (
	ErrUnsupportedSource = errors.New("unsupported image source")
	ErrImageTooLarge     = errors.New("image exceeds size limit")
)

// Loader fetches and decodes the image behind a reference. References are
// data URLs, absolute http(s) URLs or site-relative paths.
type Loader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, ref string) (image.Image, error)

func (f LoaderFunc) Load(ctx context.Context, ref string) (image.Image, error) {
	return f(ctx, ref)
}

const (
	DefaultFetchTimeout  = 10 * time.Second
	DefaultMaxImageBytes = 20 << 20
)

// HTTPLoaderOptions configures an HTTPLoader.
type HTTPLoaderOptions struct {
	Client *http.Client
	// BaseURL resolves site-relative references such as "/placeholder-logo.png".
	BaseURL string
	// Files, when set, is consulted for relative references before BaseURL.
	Files    fs.FS
	Timeout  time.Duration
	MaxBytes int64
}

// HTTPLoader loads images over HTTP, from data URLs, or from a local file tree.
type HTTPLoader struct {
	client   *http.Client
	base     *url.URL
	files    fs.FS
	timeout  time.Duration
	maxBytes int64
}

func NewHTTPLoader(opts HTTPLoaderOptions) (*HTTPLoader, error) {
	l := &HTTPLoader{
		client:   opts.Client,
		files:    opts.Files,
		timeout:  opts.Timeout,
		maxBytes: opts.MaxBytes,
	}
	if l.client == nil {
		l.client = http.DefaultClient
	}
	if l.timeout <= 0 {
		l.timeout = DefaultFetchTimeout
	}
	if l.maxBytes <= 0 {
		l.maxBytes = DefaultMaxImageBytes
	}
	if opts.BaseURL != "" {
		u, err := url.Parse(opts.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("parse base url: %w", err)
		}
		l.base = u
	}
	return l, nil
}

func (l *HTTPLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	if strings.HasPrefix(ref, "data:") {
		return decodeDataURL(ref)
	}

	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse image ref: %w", err)
	}
	if u.Scheme == "" && u.Host == "" {
		if l.files != nil {
			if img, err := l.loadFile(u.Path); err == nil {
				return img, nil
			}
		}
		if l.base == nil {
			return nil, fmt.Errorf("%w: relative path %q", ErrUnsupportedSource, ref)
		}
		u = l.base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q", ErrUnsupportedSource, u.Scheme)
	}
	return l.fetch(ctx, u.String())
}

func (l *HTTPLoader) loadFile(p string) (image.Image, error) {
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	f, err := l.files.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(io.LimitReader(f, l.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return img, nil
}

func (l *HTTPLoader) fetch(ctx context.Context, target string) (image.Image, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", target, resp.StatusCode)
	}
	if resp.ContentLength > l.maxBytes {
		return nil, ErrImageTooLarge
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, l.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", target, err)
	}
	return img, nil
}

// decodeDataURL decodes "data:[<mediatype>][;base64],<data>".
func decodeDataURL(ref string) (image.Image, error) {
	meta, data, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data url", ErrUnsupportedSource)
	}

	var raw []byte
	var err error
	if strings.HasSuffix(meta, ";base64") {
		raw, err = base64.StdEncoding.DecodeString(data)
		if err != nil {
			raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(data, "="))
		}
	} else {
		var s string
		s, err = url.PathUnescape(data)
		raw = []byte(s)
	}
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode data url image: %w", err)
	}
	return img, nil
}

// loadImages fetches every distinct image source in cmds concurrently.
// Failed sources are logged and left out of the result.
func (r *Renderer) loadImages(ctx context.Context, cmds []DrawCommand) map[string]image.Image {
	var sources []string
	seen := make(map[string]bool)
	for _, cmd := range cmds {
		if cmd.Op == OpImage && !seen[cmd.Source] {
			seen[cmd.Source] = true
			sources = append(sources, cmd.Source)
		}
	}
	if len(sources) == 0 || r.loader == nil {
		return nil
	}

	results := make([]image.Image, len(sources))
	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			img, err := r.loader.Load(ctx, src)
			if err != nil {
				slog.Warn("image load failed, skipping element", "source", truncateRef(src), "error", err)
				r.metrics.recordImageFailure()
				return nil
			}
			results[i] = img
			return nil
		})
	}
	_ = g.Wait()

	images := make(map[string]image.Image, len(sources))
	for i, src := range sources {
		if results[i] != nil {
			images[src] = results[i]
		}
	}
	return images
}

func truncateRef(ref string) string {
	if len(ref) > 80 {
		return ref[:80] + "..."
	}
	return ref
}
