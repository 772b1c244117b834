package asset

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certcanvas/certcanvas/backend-go/internal/auth"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{"org/a.png", "org/a.png", false},
		{"/org//a.png", "org/a.png", false},
		{"org/./a.png", "org/a.png", false},
		{"../etc/passwd", "", true},
		{"org/../../x", "", true},
		{"", "", true},
		{"/", "", true},
		{`org\a.png`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := CleanKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitizeSegment(t *testing.T) {
	assert.Equal(t, "Jane_Doe", SanitizeSegment("Jane Doe"))
	assert.Equal(t, "J_r_me-O_Neil_1", SanitizeSegment("Jérôme-O'Neil_1"))
	assert.Equal(t, "_", SanitizeSegment(""))
}

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "http://localhost:8080/")
	require.NoError(t, err)
	ctx := context.Background()

	url, err := store.Put(ctx, "org_1/jane/certificate_1.pdf", strings.NewReader("%PDF-1.3"), 8, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/assets/org_1/jane/certificate_1.pdf", url)

	rc, err := store.Open(ctx, "org_1/jane/certificate_1.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))

	require.NoError(t, store.Delete(ctx, "org_1/jane/certificate_1.pdf"))
	_, err = store.Open(ctx, "org_1/jane/certificate_1.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "org_1/jane/certificate_1.pdf"), ErrNotFound)

	_, err = store.Put(ctx, "../escape", strings.NewReader("x"), 1, "")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestLocalStorageFSUsesPublicPaths(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "org_1/images/a.png", strings.NewReader("png"), 3, "image/png")
	require.NoError(t, err)

	data, err := fs.ReadFile(store.FS(), "assets/org_1/images/a.png")
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	_, err = fs.ReadFile(store.FS(), "org_1/images/a.png")
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLocalStorageServe(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "a/b.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	store.Serve().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/assets/a/b.txt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Cache-Control"), "immutable")
}

func multipartImage(t *testing.T, contentType string, body []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="logo.png"`)
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadStoresPNGUnderOrg(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir, "http://cdn.test")
	require.NoError(t, err)
	h := NewHandler(store)

	img := image.NewRGBA(image.Rect(0, 0, 7, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var pngData bytes.Buffer
	require.NoError(t, png.Encode(&pngData, img))

	body, ct := multipartImage(t, "image/png", pngData.Bytes())
	req := httptest.NewRequest(http.MethodPost, "/assets/upload", body)
	req.Header.Set("Content-Type", ct)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{Subject: "u", OrganizationID: "org_1"}))
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 7, resp.Width)
	assert.Equal(t, 3, resp.Height)
	assert.Equal(t, "logo.png", resp.Name)
	assert.True(t, strings.HasPrefix(resp.ID, "asset_"))
	assert.Equal(t, "http://cdn.test/assets/org_1/images/"+resp.ID+".png", resp.URL)

	rc, err := store.Open(context.Background(), "org_1/images/"+resp.ID+".png")
	require.NoError(t, err)
	defer rc.Close()
	decoded, err := png.Decode(rc)
	require.NoError(t, err)
	assert.Equal(t, 7, decoded.Bounds().Dx())
}

func TestUploadRejectsBadInput(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir(), "")
	require.NoError(t, err)
	h := NewHandler(store)

	t.Run("unsupported type", func(t *testing.T) {
		body, ct := multipartImage(t, "application/pdf", []byte("%PDF"))
		req := httptest.NewRequest(http.MethodPost, "/assets/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.Upload(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("corrupt image", func(t *testing.T) {
		body, ct := multipartImage(t, "image/png", []byte("not a png"))
		req := httptest.NewRequest(http.MethodPost, "/assets/upload", body)
		req.Header.Set("Content-Type", ct)
		rec := httptest.NewRecorder()
		h.Upload(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing file", func(t *testing.T) {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("other", "x"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/assets/upload", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		rec := httptest.NewRecorder()
		h.Upload(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
