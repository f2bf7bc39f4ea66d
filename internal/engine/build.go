package engine

import (
	"strconv"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/document"
	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/geom"
)

func pageNodeID(n int) string               { return "page:" + strconv.Itoa(n) }
func draftNodeID(n int) string              { return "draft:" + strconv.Itoa(n) }
func handleNodeID(annotation string) string { return "handle:" + annotation }
func deleteNodeID(annotation string) string { return "delete:" + annotation }

// buildScene lays out the current document at the current zoom and overlays
// the state of the page and annotation controllers.
func (e *Engine) buildScene() *SceneGraph {
	sg := NewSceneGraph()
	doc := e.store.Doc().Get()
	if doc == nil {
		return sg
	}
	zoom := e.store.Zoom().Get()
	sg.Width, sg.Height = e.layout.ContentSize(len(doc.Pages), zoom)

	for _, pb := range e.layout.Pages(doc.Pages, zoom) {
		page := &SceneNode{
			ID:         pageNodeID(pb.Number),
			Kind:       NodePage,
			PageNumber: pb.Number,
			Bounds:     pb.Bounds,
			ImageURL:   pageImage(doc, pb.Number),
		}
		sg.add(sg.Root, page)

		for _, a := range doc.AnnotationsOnPage(pb.Number) {
			e.buildAnnotation(sg, page, a, pb.Bounds)
		}

		if l, ok := e.layers[pb.Number]; ok {
			if draft, drawing := l.Draft(); drawing {
				sg.add(page, &SceneNode{
					ID:         draftNodeID(pb.Number),
					Kind:       NodeDraft,
					PageNumber: pb.Number,
					Bounds:     draft.Scale(pb.Bounds),
				})
			}
		}
	}
	return sg
}

func (e *Engine) buildAnnotation(sg *SceneGraph, page *SceneNode, a document.Annotation, pageBox geom.Rect) {
	box := geom.Rect{X: a.X, Y: a.Y, W: a.W, H: a.H}.Scale(pageBox)
	node := &SceneNode{
		ID:           a.ID,
		Kind:         NodeAnnotation,
		PageNumber:   a.PageNumber,
		AnnotationID: a.ID,
		Bounds:       box,
		Text:         a.Text,
	}
	if it, ok := e.items[a.ID]; ok {
		node.Editing = it.Editing()
		node.Controls = it.ShowControls()
	}
	if node.Editing {
		node.Editor = e.editor.state(a.ID)
	}
	sg.add(page, node)

	sg.add(node, &SceneNode{
		ID:           handleNodeID(a.ID),
		Kind:         NodeHandle,
		PageNumber:   a.PageNumber,
		AnnotationID: a.ID,
		Bounds:       handleRect(box),
	})
	if node.Controls && !node.Editing {
		sg.add(node, &SceneNode{
			ID:           deleteNodeID(a.ID),
			Kind:         NodeDelete,
			PageNumber:   a.PageNumber,
			AnnotationID: a.ID,
			Bounds:       deleteRect(box),
		})
	}
}

func pageImage(doc *document.Document, number int) string {
	for _, p := range doc.Pages {
		if p.Number == number {
			return p.ImageURL
		}
	}
	return ""
}
