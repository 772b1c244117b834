package document

import "github.com/certcanvas/certcanvas/backend-go/internal/geometry"

// NewSampleDocument returns a landscape certificate that uses every element
// kind and the standard placeholder fields. The playground and the CLI
// start from it.
func NewSampleDocument() *Document {
	doc := New("Sample Certificate", DefaultCanvasSize)
	doc.Background = Background{Gradient: &Gradient{From: "#ffffff", To: "#eef2ff", Angle: 180}}

	w := float64(doc.Canvas.Width)
	h := float64(doc.Canvas.Height)

	place := func(x, y, width, height float64, p Payload) {
		el := doc.Add(p.Kind(), AddParams{Payload: p, Size: geometry.Size{Width: width, Height: height}})
		el.X, el.Y = x, y
	}

	place(20, 20, w-40, h-40, &ShapePayload{
		ShapeType:    ShapeRectangle,
		BorderColor:  "#1e3a8a",
		BorderWidth:  6,
		CornerRadius: 12,
	})
	place(w/2-60, 40, 120, 60, &ImagePayload{ImageURL: LandscapeLogoSentinel})
	place(w/2-300, 110, 600, 70, &TextPayload{
		Content: "CERTIFICATE", FontSize: 48, FontFamily: "Georgia", FontWeight: "bold",
		TextAlign: AlignCenter, Color: "#1e3a8a", LineHeight: 1.2,
	})
	place(w/2-300, 180, 600, 40, &TextPayload{
		Content: "of Completion", FontSize: 28, FontFamily: "Georgia", FontStyle: "italic",
		TextAlign: AlignCenter, Color: "#334155", LineHeight: 1.2,
	})
	place(w/2-300, 240, 600, 60, &TextPayload{
		Content: "{{student_name}}", FontSize: 36, FontFamily: "Arial", FontWeight: "bold",
		TextDecoration: "underline", TextAlign: AlignCenter, Color: "#0f172a", LineHeight: 1.2,
	})
	place(w/2-300, 310, 600, 60, &TextPayload{
		Content:  "has successfully completed {{course_name}}\nwith grade {{grade}}",
		FontSize: 18, FontFamily: "Arial", TextAlign: AlignCenter, Color: "#334155", LineHeight: 1.3,
	})
	place(80, h-140, 240, 50, &TextPayload{
		Content: "{{completion_date}}", FontSize: 16, FontFamily: "Arial",
		TextAlign: AlignLeft, Color: "#0f172a", LineHeight: 1.2,
	})
	place(w-320, h-140, 240, 50, &TextPayload{
		Content: "{{instructor_name}}", FontSize: 16, FontFamily: "Arial",
		TextAlign: AlignRight, Color: "#0f172a", LineHeight: 1.2,
	})
	place(w/2-50, h-170, 100, 100, &QRPayload{ImageURL: QRSentinel})
	place(w-110, 40, 60, 60, &ShapePayload{
		ShapeType: ShapeStar, BackgroundColor: "#f59e0b", BorderColor: "#b45309", BorderWidth: 2,
	})

	return doc
}
