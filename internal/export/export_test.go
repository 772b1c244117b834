package export

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certcanvas/certcanvas/backend-go/internal/asset"
	"github.com/certcanvas/certcanvas/backend-go/internal/auth"
	"github.com/certcanvas/certcanvas/backend-go/internal/document"
	"github.com/certcanvas/certcanvas/backend-go/internal/placeholder"
	"github.com/certcanvas/certcanvas/backend-go/internal/render"
	"github.com/certcanvas/certcanvas/backend-go/internal/template"
	"github.com/certcanvas/certcanvas/backend-go/internal/typeid"
)

func validBindings() placeholder.Bindings {
	return placeholder.Bindings{
		"student_name":    "Jane Doe",
		"course_name":     "Go 101",
		"completion_date": "2024-05-01",
		"instructor_name": "Rob",
		"grade":           "A",
	}
}

func certificateDoc() *document.Document {
	doc := document.New("Course", document.CanvasSize{Width: 800, Height: 600})
	doc.Add(document.KindText, document.AddParams{
		Payload: &document.TextPayload{Content: "Certificate for {{student_name}}", FontSize: 24, Color: "#000000", TextAlign: document.AlignCenter},
	})
	return doc
}

type fixture struct {
	templates *template.Service
	store     *asset.LocalStorage
	tmpl      *template.Template
	empty     *template.Template
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	templates := template.NewService(template.NewMemoryStore(), render.New(nil))
	store, err := asset.NewLocalStorage(t.TempDir(), "http://files.test")
	require.NoError(t, err)

	ctx := context.Background()
	tmpl, err := templates.Create(ctx, "org_1", template.DataFromDocument(certificateDoc(), "thumb"))
	require.NoError(t, err)
	empty, err := templates.Create(ctx, "org_1", template.Data{Name: "Empty", ThumbnailURL: "thumb"})
	require.NoError(t, err)
	return &fixture{templates: templates, store: store, tmpl: tmpl, empty: empty}
}

func fixedNow() time.Time { return time.UnixMilli(1700000000000) }

func TestValidate(t *testing.T) {
	err := Request{}.Validate()
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"templateId", "student_name", "course_name", "completion_date", "instructor_name", "grade"}, verr.Fields)
	assert.ErrorIs(t, err, ErrValidation)

	b := validBindings()
	b["grade"] = "  "
	err = Request{TemplateID: "tmpl_1", Bindings: b}.Validate()
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"grade"}, verr.Fields)

	assert.NoError(t, Request{TemplateID: "tmpl_1", Bindings: validBindings()}.Validate())
}

func TestDedupKeyIgnoresMapOrder(t *testing.T) {
	a := Request{TemplateID: "t", Bindings: placeholder.Bindings{"a": "1", "b": "2"}}
	b := Request{TemplateID: "t", Bindings: placeholder.Bindings{"b": "2", "a": "1"}}
	assert.Equal(t, dedupKey("org", a), dedupKey("org", b))
	assert.NotEqual(t, dedupKey("org", a), dedupKey("other", a))
}

func TestExportUploadsPDF(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.templates, NewRasterRenderer(render.New(nil), 1), f.store, WithClock(fixedNow))

	res, err := svc.Export(context.Background(), "org_1", Request{TemplateID: f.tmpl.ID, Bindings: validBindings()})
	require.NoError(t, err)
	assert.Equal(t, "org_1/Jane_Doe/certificate_1700000000000.pdf", res.FilePath)
	assert.Equal(t, "certificate_1700000000000.pdf", res.Filename)
	assert.Equal(t, "http://files.test/assets/"+res.FilePath, res.FileURL)

	rc, err := f.store.Open(context.Background(), res.FilePath)
	require.NoError(t, err)
	defer rc.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(rc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF")))
}

type recordingRenderer struct {
	calls    atomic.Int32
	started  chan struct{}
	release  chan struct{}
	bindings placeholder.Bindings
	once     sync.Once
	ctxErr   error
}

func (r *recordingRenderer) RenderPDF(ctx context.Context, doc *document.Document, b placeholder.Bindings) ([]byte, error) {
	r.calls.Add(1)
	r.bindings = b
	if r.started != nil {
		r.once.Do(func() { close(r.started) })
		<-r.release
		r.ctxErr = ctx.Err()
	}
	return []byte("%PDF-1.4 fake"), nil
}

func TestExportFailsBeforeRendering(t *testing.T) {
	f := newFixture(t)
	rr := &recordingRenderer{}
	svc := NewService(f.templates, rr, f.store)
	ctx := context.Background()

	_, err := svc.Export(ctx, "org_1", Request{TemplateID: f.tmpl.ID})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Export(ctx, "org_1", Request{TemplateID: f.empty.ID, Bindings: validBindings()})
	assert.ErrorIs(t, err, ErrNoElements)

	_, err = svc.Export(ctx, "org_2", Request{TemplateID: f.tmpl.ID, Bindings: validBindings()})
	assert.ErrorIs(t, err, template.ErrForbidden)

	_, err = svc.Export(ctx, "org_1", Request{TemplateID: "tmpl_missing", Bindings: validBindings()})
	assert.ErrorIs(t, err, template.ErrNotFound)

	assert.Zero(t, rr.calls.Load())
}

func TestExportDefaultsOrgBinding(t *testing.T) {
	f := newFixture(t)
	rr := &recordingRenderer{}
	svc := NewService(f.templates, rr, f.store)

	b := validBindings()
	_, err := svc.Export(context.Background(), "org_1", Request{TemplateID: f.tmpl.ID, Bindings: b})
	require.NoError(t, err)
	assert.Equal(t, "org_1", rr.bindings["org_id"])
	_, present := b["org_id"]
	assert.False(t, present, "caller's bindings must not be mutated")
}

func TestExportSharesIdenticalInFlightRequests(t *testing.T) {
	f := newFixture(t)
	rr := &recordingRenderer{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(f.templates, rr, f.store)
	req := Request{TemplateID: f.tmpl.ID, Bindings: validBindings()}

	var wg sync.WaitGroup
	results := make([]*Result, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = svc.Export(context.Background(), "org_1", req)
	}()
	<-rr.started
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = svc.Export(context.Background(), "org_1", req)
	}()
	time.Sleep(50 * time.Millisecond)
	close(rr.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(1), rr.calls.Load())
	assert.Equal(t, results[0].FilePath, results[1].FilePath)
}

func TestSharedExportSurvivesFirstCallerCancelling(t *testing.T) {
	f := newFixture(t)
	rr := &recordingRenderer{started: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(f.templates, rr, f.store)
	req := Request{TemplateID: f.tmpl.ID, Bindings: validBindings()}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Export(firstCtx, "org_1", req)
		firstErr <- err
	}()
	<-rr.started

	var (
		second    *Result
		secondErr error
		wg        sync.WaitGroup
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		second, secondErr = svc.Export(context.Background(), "org_1", req)
	}()
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(rr.release)
	wg.Wait()

	require.NoError(t, secondErr)
	assert.NoError(t, rr.ctxErr)
	assert.Equal(t, int32(1), rr.calls.Load())
	assert.NoError(t, typeid.Validate(second.ID, typeid.PrefixExport))
}

func TestBuildHTML(t *testing.T) {
	doc := certificateDoc()
	doc.Elements[0].Rotation = 90
	doc.Add(document.KindShape, document.AddParams{})
	doc.Add(document.KindQR, document.AddParams{})
	doc.Add(document.KindImage, document.AddParams{Payload: &document.ImagePayload{ImageURL: "/assets/org_1/images/a.png"}})
	doc.Background = document.Background{Gradient: &document.Gradient{From: "#ffffff", To: "#000000", Angle: 90}}

	html, err := BuildHTML(doc, validBindings(), HTMLOptions{BaseURL: "http://files.test/", QRFallback: "https://example.com"})
	require.NoError(t, err)

	assert.Contains(t, html, "<div>Certificate for Jane Doe</div>")
	assert.NotContains(t, html, "{{student_name}}")
	assert.Contains(t, html, `<base href="http://files.test/">`)
	assert.Contains(t, html, "linear-gradient(90deg")
	assert.Contains(t, html, `src="data:image/png;base64,`)
	assert.Contains(t, html, `src="/assets/org_1/images/a.png"`)
	assert.Contains(t, html, "<svg")
	assert.Contains(t, html, "transform: matrix(")
	assert.Contains(t, html, "@page { size: 800px 600px")
}

func TestBuildHTMLEscapesContent(t *testing.T) {
	doc := document.New("x", document.CanvasSize{Width: 100, Height: 100})
	doc.Add(document.KindText, document.AddParams{
		Payload: &document.TextPayload{Content: "{{student_name}}", FontSize: 12, FontFamily: "Arial'; } body { x", Color: "red;}"},
	})
	html, err := BuildHTML(doc, placeholder.Bindings{"student_name": "<script>alert(1)</script>"}, HTMLOptions{})
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
	assert.NotContains(t, html, "red;}")
	assert.Contains(t, html, "Arial  body  x")
	assert.NotContains(t, html, "Arial'; }")
}

func withOrg(org string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h(w, r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{Subject: "u", OrganizationID: org})))
	})
}

func TestHandler(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.templates, &recordingRenderer{}, f.store, WithClock(fixedNow))
	h := withOrg("org_1", NewHandler(svc).Certificate)

	post := func(body string) (*httptest.ResponseRecorder, Response) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/export/certificate", strings.NewReader(body)))
		var resp Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
		return rec, resp
	}

	body, err := json.Marshal(Request{TemplateID: f.tmpl.ID, Bindings: validBindings()})
	require.NoError(t, err)
	rec, resp := post(string(body))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "http://files.test/assets/org_1/Jane_Doe/certificate_1700000000000.pdf", resp.FileURL)

	rec, resp = post(`{"templateId":"` + f.tmpl.ID + `","bindings":{"student_name":"x"}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, []string{"course_name", "completion_date", "instructor_name", "grade"}, resp.MissingFields)

	body, _ = json.Marshal(Request{TemplateID: f.empty.ID, Bindings: validBindings()})
	rec, resp = post(string(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, resp.ErrorMessage)

	body, _ = json.Marshal(Request{TemplateID: "tmpl_missing", Bindings: validBindings()})
	rec, _ = post(string(body))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = post("{")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClient(t *testing.T) {
	f := newFixture(t)
	svc := NewService(f.templates, &recordingRenderer{}, f.store, WithClock(fixedNow))
	srv := httptest.NewServer(withOrg("org_1", NewHandler(svc).Certificate))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", srv.Client())
	resp, err := c.Export(context.Background(), Request{TemplateID: f.tmpl.ID, Bindings: validBindings()})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Contains(t, resp.FileURL, "certificate_1700000000000.pdf")

	_, err = c.Export(context.Background(), Request{TemplateID: f.tmpl.ID})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = c.Export(context.Background(), Request{TemplateID: f.empty.ID, Bindings: validBindings()})
	assert.Error(t, err)
}
