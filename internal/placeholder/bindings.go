package placeholder

import (
	"github.com/certcanvas/certcanvas/backend-go/internal/document"
)

// Bindings maps field names to the values substituted for them.
type Bindings map[string]string

// Lookup returns the bound value for name.
func (b Bindings) Lookup(name string) (string, bool) {
	if b == nil {
		return "", false
	}
	v, ok := b[name]
	return v, ok
}

// QRValue returns the value a QR element should encode, or fallback.
func (b Bindings) QRValue(fallback string) string {
	for _, k := range []string{FieldQRTargetURL, FieldStudentQRURL} {
		if v, ok := b.Lookup(k); ok && v != "" {
			return v
		}
	}
	return fallback
}

// Substitute replaces every {{field}} token in content whose field is
// bound. Unbound tokens are left exactly as written.
func Substitute(content string, bindings Bindings) string {
	if len(bindings) == 0 {
		return content
	}
	return tokenPattern.ReplaceAllStringFunc(content, func(token string) string {
		name := token[2 : len(token)-2]
		if v, ok := bindings.Lookup(name); ok {
			return v
		}
		return token
	})
}

// Apply returns a copy of doc with bindings resolved: text content is
// substituted, logo sentinels are rebound to company_logo, and QR elements
// get the value they should encode. doc itself is not modified.
func Apply(doc *document.Document, bindings Bindings, qrFallback string) *document.Document {
	out := doc.Clone()
	r := resolver{bindings: bindings, qrValue: bindings.QRValue(qrFallback)}
	for _, el := range out.Elements {
		if el.Payload != nil {
			el.Payload.Accept(r)
		}
	}
	return out
}

type resolver struct {
	bindings Bindings
	qrValue  string
}

func (r resolver) VisitText(p *document.TextPayload) {
	p.Content = Substitute(p.Content, r.bindings)
}

func (r resolver) VisitImage(p *document.ImagePayload) {
	p.ImageURL, _ = ResolveImage(p.ImageURL, r.bindings)
}

func (r resolver) VisitShape(*document.ShapePayload) {}

func (r resolver) VisitQR(p *document.QRPayload) {
	p.Value = ResolveQR(p, r.bindings, r.qrValue)
}

// ResolveImage returns the URL an image element should load. Logo
// sentinels are replaced by the company_logo binding when one is given;
// isLogo reports whether url was a logo sentinel at all.
func ResolveImage(url string, bindings Bindings) (resolved string, isLogo bool) {
	if !document.IsLogoSentinel(url) {
		return url, false
	}
	if logo, ok := bindings.Lookup(FieldCompanyLogo); ok && logo != "" {
		return logo, true
	}
	return url, true
}

// ResolveQR returns the value a QR element encodes: its own value with
// tokens substituted, or the bound URL.
func ResolveQR(p *document.QRPayload, bindings Bindings, boundValue string) string {
	if p.Value != "" {
		return Substitute(p.Value, bindings)
	}
	return boundValue
}
