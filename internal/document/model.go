package document

import (
	"errors"
	"fmt"
)

// Document is a loaded document together with its user annotations. A
// Document value is never mutated after it has been published; every change
// produces a new value.
type Document struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Pages       []Page       `json:"pages"`
	Annotations []Annotation `json:"annotations"`
}

// Page is one page image of a document. Number is unique within a document
// and is what annotations reference.
type Page struct {
	Number   int    `json:"number"`
	ImageURL string `json:"imageUrl"`
}

// Annotation is a rectangular text note on a page. X, Y, W and H are
// fractions of the rendered page image box.
type Annotation struct {
	ID         string  `json:"id"`
	DocumentID string  `json:"documentId"`
	PageNumber int     `json:"pageNumber"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
	Text       string  `json:"text"`
}

// AnnotationFields is everything needed to create an annotation; the id is
// assigned by the store.
type AnnotationFields struct {
	DocumentID string
	PageNumber int
	X          float64
	Y          float64
	W          float64
	H          float64
	Text       string
}

// AnnotationPatch is a partial update. Nil fields are left untouched.
type AnnotationPatch struct {
	PageNumber *int     `json:"pageNumber,omitempty"`
	X          *float64 `json:"x,omitempty"`
	Y          *float64 `json:"y,omitempty"`
	W          *float64 `json:"w,omitempty"`
	H          *float64 `json:"h,omitempty"`
	Text       *string  `json:"text,omitempty"`
}

// Position returns a patch moving the annotation's top-left corner.
func Position(x, y float64) AnnotationPatch {
	return AnnotationPatch{X: &x, Y: &y}
}

// Size returns a patch changing the annotation's width and height.
func Size(w, h float64) AnnotationPatch {
	return AnnotationPatch{W: &w, H: &h}
}

// Text returns a patch replacing the annotation's text.
func Text(text string) AnnotationPatch {
	return AnnotationPatch{Text: &text}
}

// Apply returns a copy of a with every non-nil patch field merged over it.
func (p AnnotationPatch) Apply(a Annotation) Annotation {
	if p.PageNumber != nil {
		a.PageNumber = *p.PageNumber
	}
	if p.X != nil {
		a.X = *p.X
	}
	if p.Y != nil {
		a.Y = *p.Y
	}
	if p.W != nil {
		a.W = *p.W
	}
	if p.H != nil {
		a.H = *p.H
	}
	if p.Text != nil {
		a.Text = *p.Text
	}
	return a
}

// NewAnnotation builds an annotation from fields and an assigned id.
func NewAnnotation(id string, f AnnotationFields) Annotation {
	return Annotation{
		ID:         id,
		DocumentID: f.DocumentID,
		PageNumber: f.PageNumber,
		X:          f.X,
		Y:          f.Y,
		W:          f.W,
		H:          f.H,
		Text:       f.Text,
	}
}

// Payload is the document source wire format.
type Payload struct {
	Name  string        `json:"name"`
	Pages []PagePayload `json:"pages"`
}

// PagePayload is one page entry in a Payload.
type PagePayload struct {
	Number   int    `json:"number"`
	ImageURL string `json:"imageUrl"`
}

// Validate checks that page numbers are positive and unique. Annotations
// refer to pages by number.
func (p *Payload) Validate() error {
	if p == nil {
		return errors.New("empty document payload")
	}
	seen := make(map[int]bool, len(p.Pages))
	for _, page := range p.Pages {
		if page.Number <= 0 {
			return fmt.Errorf("page number %d is not positive", page.Number)
		}
		if seen[page.Number] {
			return fmt.Errorf("duplicate page number %d", page.Number)
		}
		seen[page.Number] = true
	}
	return nil
}

// FromPayload builds a freshly loaded document with no annotations.
func FromPayload(id string, p *Payload) *Document {
	pages := make([]Page, len(p.Pages))
	for i, pp := range p.Pages {
		pages[i] = Page{Number: pp.Number, ImageURL: pp.ImageURL}
	}
	return &Document{
		ID:          id,
		Title:       p.Name,
		Pages:       pages,
		Annotations: []Annotation{},
	}
}

// AnnotationsOnPage returns the annotations of d placed on page number, in
// document order.
func (d *Document) AnnotationsOnPage(number int) []Annotation {
	if d == nil {
		return nil
	}
	var out []Annotation
	for _, a := range d.Annotations {
		if a.PageNumber == number {
			out = append(out, a)
		}
	}
	return out
}

// FindAnnotation looks up an annotation by id.
func (d *Document) FindAnnotation(id string) (Annotation, bool) {
	if d == nil {
		return Annotation{}, false
	}
	for _, a := range d.Annotations {
		if a.ID == id {
			return a, true
		}
	}
	return Annotation{}, false
}
