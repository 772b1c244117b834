package document

// Patch is a partial element update as sent by the properties panel.
// Nil fields are left untouched. Fields that do not belong to the target
// element's kind are ignored.
type Patch struct {
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
	Width    *float64 `json:"width,omitempty"`
	Height   *float64 `json:"height,omitempty"`
	ZIndex   *int     `json:"zIndex,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`

	Content         *string  `json:"content,omitempty"`
	FontSize        *float64 `json:"fontSize,omitempty"`
	FontFamily      *string  `json:"fontFamily,omitempty"`
	FontWeight      *string  `json:"fontWeight,omitempty"`
	FontStyle       *string  `json:"fontStyle,omitempty"`
	TextDecoration  *string  `json:"textDecoration,omitempty"`
	TextAlign       *string  `json:"textAlign,omitempty"`
	Color           *string  `json:"color,omitempty"`
	BackgroundColor *string  `json:"backgroundColor,omitempty"`
	LineHeight      *float64 `json:"lineHeight,omitempty"`

	ImageURL *string `json:"imageUrl,omitempty"`
	QRValue  *string `json:"qrValue,omitempty"`

	ShapeType    *string  `json:"shapeType,omitempty"`
	BorderColor  *string  `json:"borderColor,omitempty"`
	BorderWidth  *float64 `json:"borderWidth,omitempty"`
	CornerRadius *float64 `json:"borderRadius,omitempty"`
}

// GeometryPatch builds a patch that only moves or resizes.
func GeometryPatch(x, y, w, h float64) Patch {
	return Patch{X: &x, Y: &y, Width: &w, Height: &h}
}

// ContentPatch builds a patch that only replaces text content.
func ContentPatch(content string) Patch {
	return Patch{Content: &content}
}

// ApplyTo merges the patch into el.
func (p Patch) ApplyTo(el *Element) {
	setFloat(&el.X, p.X)
	setFloat(&el.Y, p.Y)
	if p.Width != nil && *p.Width > 0 {
		el.Width = max(*p.Width, MinElementSize)
	}
	if p.Height != nil && *p.Height > 0 {
		el.Height = max(*p.Height, MinElementSize)
	}
	if p.ZIndex != nil {
		el.ZIndex = *p.ZIndex
	}
	setFloat(&el.Rotation, p.Rotation)

	if el.Payload != nil {
		el.Payload.Accept(patchVisitor{p})
	}
}

type patchVisitor struct{ p Patch }

func (v patchVisitor) VisitText(t *TextPayload) {
	p := v.p
	setString(&t.Content, p.Content)
	if p.FontSize != nil && *p.FontSize > 0 {
		t.FontSize = *p.FontSize
	}
	setString(&t.FontFamily, p.FontFamily)
	setString(&t.FontWeight, p.FontWeight)
	setString(&t.FontStyle, p.FontStyle)
	setString(&t.TextDecoration, p.TextDecoration)
	if p.TextAlign != nil {
		switch a := TextAlign(*p.TextAlign); a {
		case AlignLeft, AlignCenter, AlignRight:
			t.TextAlign = a
		}
	}
	setString(&t.Color, p.Color)
	setString(&t.BackgroundColor, p.BackgroundColor)
	if p.LineHeight != nil && *p.LineHeight > 0 {
		t.LineHeight = *p.LineHeight
	}
}

func (v patchVisitor) VisitImage(i *ImagePayload) {
	setString(&i.ImageURL, v.p.ImageURL)
}

func (v patchVisitor) VisitShape(s *ShapePayload) {
	p := v.p
	if p.ShapeType != nil {
		switch st := ShapeType(*p.ShapeType); st {
		case ShapeRectangle, ShapeCircle, ShapeStar:
			s.ShapeType = st
		}
	}
	setString(&s.BackgroundColor, p.BackgroundColor)
	setString(&s.BorderColor, p.BorderColor)
	if p.BorderWidth != nil && *p.BorderWidth >= 0 {
		s.BorderWidth = *p.BorderWidth
	}
	if p.CornerRadius != nil && *p.CornerRadius >= 0 {
		s.CornerRadius = *p.CornerRadius
	}
}

func (v patchVisitor) VisitQR(q *QRPayload) {
	setString(&q.ImageURL, v.p.ImageURL)
	setString(&q.Value, v.p.QRValue)
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
