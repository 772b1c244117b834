package geometry

// DefaultPlacementAttempts bounds FindNonOverlappingPosition when callers
// have no better policy.
const DefaultPlacementAttempts = 20

// FindNonOverlappingPosition walks candidate positions from (startX, startY)
// in (stepX, stepY) increments until a box of the given size overlaps none
// of existing. After maxAttempts overlapping candidates the last candidate
// is returned as-is.
func FindNonOverlappingPosition(size Size, existing []Rect, startX, startY, stepX, stepY float64, maxAttempts int) Point {
	x, y := startX, startY
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if !overlapsAny(Rect{X: x, Y: y, Width: size.Width, Height: size.Height}, existing) {
			break
		}
		x += stepX
		y += stepY
	}
	return Point{X: x, Y: y}
}

func overlapsAny(candidate Rect, existing []Rect) bool {
	for _, r := range existing {
		if candidate.Overlaps(r) {
			return true
		}
	}
	return false
}
