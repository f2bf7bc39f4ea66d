package engine

import (
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/geom"
)

// Control sizes in screen pixels. They do not scale with zoom.
const (
	HandleSize  = 12
	ControlSize = 20
)

// Layout is the unzoomed page size and the vertical gap between pages.
// Pages are stacked top to bottom and left aligned.
type Layout struct {
	PageWidth  float64
	PageHeight float64
	Gap        float64
}

// DefaultLayout renders pages at A4 proportions, 800px wide at 100%.
func DefaultLayout() Layout {
	return Layout{PageWidth: 800, PageHeight: 1131, Gap: 16}
}

func (l Layout) valid() bool {
	return l.PageWidth > 0 && l.PageHeight > 0 && l.Gap >= 0
}

// PageBox is the on-screen rectangle of one page.
type PageBox struct {
	Number int
	Bounds geom.Rect
}

// Pages returns the boxes of pages at zoom, in document order.
func (l Layout) Pages(pages []document.Page, zoom float64) []PageBox {
	boxes := make([]PageBox, len(pages))
	w, h := l.PageWidth*zoom, l.PageHeight*zoom
	y := 0.0
	for i, p := range pages {
		boxes[i] = PageBox{Number: p.Number, Bounds: geom.Rect{X: 0, Y: y, W: w, H: h}}
		y += h + l.Gap
	}
	return boxes
}

// ContentSize returns the size of the scrollable area holding n pages.
func (l Layout) ContentSize(n int, zoom float64) (float64, float64) {
	if n == 0 {
		return 0, 0
	}
	return l.PageWidth * zoom, float64(n)*l.PageHeight*zoom + float64(n-1)*l.Gap
}

// handleRect is the resize handle in the bottom-right corner of box.
func handleRect(box geom.Rect) geom.Rect {
	return geom.Rect{X: box.X + box.W - HandleSize, Y: box.Y + box.H - HandleSize, W: HandleSize, H: HandleSize}
}

// deleteRect is the delete control sitting on the top-right corner of box.
func deleteRect(box geom.Rect) geom.Rect {
	return geom.Rect{X: box.X + box.W - ControlSize, Y: box.Y - ControlSize, W: ControlSize, H: ControlSize}
}
