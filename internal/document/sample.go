package document

import "fmt"

// SampleDocumentID is the id the playground opens by default.
const SampleDocumentID = "1"

// NewSamplePayload returns a small built-in document payload whose page
// images are served from /documents/<id>/.
func NewSamplePayload(id string, pageCount int) *Payload {
	pages := make([]PagePayload, pageCount)
	for i := range pages {
		pages[i] = PagePayload{
			Number:   i + 1,
			ImageURL: fmt.Sprintf("/documents/%s/page-%d.png", id, i+1),
		}
	}
	return &Payload{
		Name:  fmt.Sprintf("Sample document %s", id),
		Pages: pages,
	}
}
