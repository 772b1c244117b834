package template

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certcanvas/certcanvas/backend-go/internal/asset"
	"github.com/certcanvas/certcanvas/backend-go/internal/auth"
	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
	"github.com/certcanvas/certcanvas/backend-go/internal/render"
	"github.com/certcanvas/certcanvas/backend-go/internal/typeid"
)

func fixedClock() func() time.Time {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestService(opts ...ServiceOption) *Service {
	opts = append([]ServiceOption{WithClock(fixedClock())}, opts...)
	return NewService(NewMemoryStore(), render.New(nil), opts...)
}

func certificateData() Data {
	doc := document.New("Course Certificate", document.CanvasSize{Width: 800, Height: 600})
	doc.Add(document.KindText, document.AddParams{
		Payload: &document.TextPayload{Content: "Certificate for {{student_name}}", FontSize: 24, Color: "#000000", TextAlign: document.AlignCenter},
	})
	return DataFromDocument(doc, "")
}

func TestServiceCreateGeneratesThumbnail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	tmpl, err := svc.Create(ctx, "org_1", certificateData())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tmpl.ID, "tmpl_"))
	assert.Equal(t, "org_1", tmpl.OrganizationID)
	assert.Equal(t, 800, tmpl.CanvasWidth)
	assert.True(t, strings.HasPrefix(tmpl.ThumbnailURL, "data:image/png;base64,"))
	assert.False(t, tmpl.CreatedAt.IsZero())
}

func TestServiceKeepsClientThumbnail(t *testing.T) {
	svc := newTestService()
	data := certificateData()
	data.ThumbnailURL = "https://cdn.test/thumb.png"

	tmpl, err := svc.Create(context.Background(), "org_1", data)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/thumb.png", tmpl.ThumbnailURL)
}

func TestServiceUploadsThumbnailToStorage(t *testing.T) {
	store, err := asset.NewLocalStorage(t.TempDir(), "http://cdn.test")
	require.NoError(t, err)
	svc := newTestService(WithThumbnailStorage(store))

	tmpl, err := svc.Create(context.Background(), "org 1", certificateData())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(tmpl.ThumbnailURL, "http://cdn.test/assets/org_1/thumbnails/"+tmpl.ID+"_"), tmpl.ThumbnailURL)
}

func TestServiceValidation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	data := certificateData()
	data.Name = "   "
	_, err := svc.Create(ctx, "org_1", data)
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	data = certificateData()
	data.Elements = append(data.Elements, data.Elements[0].Clone())
	_, err = svc.Create(ctx, "org_1", data)
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	data = certificateData()
	data.CanvasWidth, data.CanvasHeight = 0, 0
	tmpl, err := svc.Create(ctx, "org_1", data)
	require.NoError(t, err)
	assert.Equal(t, document.DefaultCanvasSize.Width, tmpl.CanvasWidth)
}

func TestServiceEnforcesOrganization(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tmpl, err := svc.Create(ctx, "org_1", certificateData())
	require.NoError(t, err)

	_, err = svc.Get(ctx, tmpl.ID, "org_2")
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Update(ctx, tmpl.ID, "org_2", certificateData())
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, tmpl.ID, "org_2"), ErrForbidden)

	list, err := svc.List(ctx, "org_2")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestServiceRejectsForeignIDs(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, id := range []string{"", "tmpl_nope", "../../etc/passwd", typeid.NewAssetID()} {
		_, err := svc.Get(ctx, id, "org_1")
		assert.ErrorIs(t, err, ErrNotFound, "id %q", id)
	}

	created, err := svc.Create(ctx, "org_1", certificateData())
	require.NoError(t, err)
	assert.NoError(t, typeid.Validate(created.ID, typeid.PrefixTemplate))
}

func TestServiceUpdateKeepsCreatedAt(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created, err := svc.Create(ctx, "org_1", certificateData())
	require.NoError(t, err)

	data := certificateData()
	data.Name = "Renamed"
	updated, err := svc.Update(ctx, created.ID, "org_1", data)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.True(t, updated.CreatedAt.Equal(created.CreatedAt))
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
}

func TestServiceFieldsAndPreview(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	tmpl, err := svc.Create(ctx, "org_1", certificateData())
	require.NoError(t, err)

	fields, err := svc.Fields(ctx, tmpl.ID, "org_1")
	require.NoError(t, err)
	assert.Equal(t, []placeholder.Field{{Name: "student_name", Label: "Student Name"}}, fields)

	data, err := svc.Preview(ctx, tmpl.ID, "org_1", placeholder.Bindings{"student_name": "Jane Doe"})
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())
}

func newTestRouter(svc *Service, org string) http.Handler {
	h := NewHandler(svc)
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := auth.WithIdentity(req.Context(), auth.Identity{Subject: "u1", OrganizationID: org})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.HandleFunc("/api/templates", h.List).Methods(http.MethodGet)
	r.HandleFunc("/api/templates", h.Create).Methods(http.MethodPost)
	r.HandleFunc("/api/templates/{templateId}", h.Get).Methods(http.MethodGet)
	r.HandleFunc("/api/templates/{templateId}", h.Update).Methods(http.MethodPut)
	r.HandleFunc("/api/templates/{templateId}", h.Delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/templates/{templateId}/fields", h.Fields).Methods(http.MethodGet)
	r.HandleFunc("/api/templates/{templateId}/preview", h.Preview).Methods(http.MethodPost)
	return r
}

func TestHandlerCRUD(t *testing.T) {
	svc := newTestService()
	router := newTestRouter(svc, "org_1")

	body, err := json.Marshal(certificateData())
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/templates", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	id := created["id"].(string)
	assert.Equal(t, "org_1", created["organizationId"])
	assert.EqualValues(t, 800, created["canvasWidth"])
	elements := created["elements"].([]any)
	require.Len(t, elements, 1)
	assert.Equal(t, "text", elements[0].(map[string]any)["type"])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates/"+id+"/fields", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"student_name"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/templates/"+id+"/preview",
		strings.NewReader(`{"bindings":{"student_name":"Jane"}}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/templates/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/templates/"+id, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerErrors(t *testing.T) {
	svc := newTestService()
	tmpl, err := svc.Create(context.Background(), "org_2", certificateData())
	require.NoError(t, err)
	router := newTestRouter(svc, "org_1")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/api/templates", "{", http.StatusBadRequest},
		{"missing name", http.MethodPost, "/api/templates", `{"elements":[]}`, http.StatusBadRequest},
		{"bad element", http.MethodPost, "/api/templates", `{"name":"x","elements":[{"id":"a","type":"video"}]}`, http.StatusBadRequest},
		{"other org", http.MethodGet, "/api/templates/" + tmpl.ID, "", http.StatusForbidden},
		{"unknown", http.MethodPut, "/api/templates/tmpl_nope", `{"name":"x"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestClientAgainstHandler(t *testing.T) {
	svc := newTestService()
	srv := httptest.NewServer(newTestRouter(svc, "org_1"))
	defer srv.Close()

	c := NewClient(srv.URL, "token", srv.Client())
	ctx := context.Background()

	created, err := c.Create(ctx, certificateData())
	require.NoError(t, err)
	require.Len(t, created.Elements, 1)
	assert.Equal(t, document.KindText, created.Elements[0].Kind())

	data := certificateData()
	data.Name = "Updated"
	updated, err := c.Update(ctx, created.ID, data)
	require.NoError(t, err)
	assert.Equal(t, "Updated", updated.Name)

	list, err := c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	png, err := c.Preview(ctx, created.ID, placeholder.Bindings{"student_name": "Amy"})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = c.Create(ctx, Data{Name: ""})
	assert.ErrorIs(t, err, ErrInvalidTemplate)

	require.NoError(t, c.Delete(ctx, created.ID))
	_, err = c.Get(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
