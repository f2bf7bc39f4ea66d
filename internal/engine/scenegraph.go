package engine

import "github.com/arkonsolutions/clearway-test-ann-viewer/internal/geom"

type NodeKind string

const (
	NodeRoot       NodeKind = "root"
	NodePage       NodeKind = "page"
	NodeDraft      NodeKind = "draft"
	NodeAnnotation NodeKind = "annotation"
	NodeHandle     NodeKind = "handle"
	NodeDelete     NodeKind = "delete"
)

// SceneGraph is the laid-out, render-ready state of the viewer.
// It is rebuilt from the store and the controllers on every render.
type SceneGraph struct {
	Root      *SceneNode
	NodesByID map[string]*SceneNode
	Width     float64
	Height    float64
}

// SceneNode is one positioned element. Bounds are screen pixels.
type SceneNode struct {
	ID           string
	Kind         NodeKind
	PageNumber   int
	AnnotationID string
	Bounds       geom.Rect

	ImageURL string // pages
	Text     string // annotations

	Editing  bool
	Controls bool
	Editor   *EditorState // set while Editing

	Children []*SceneNode
}

// EditorState is what the text field of the annotation being edited shows.
type EditorState struct {
	Value   string `json:"value"`
	Focused bool   `json:"focused"`
	Cursor  int    `json:"cursor"`
}

func NewSceneGraph() *SceneGraph {
	return &SceneGraph{
		Root:      &SceneNode{ID: "root", Kind: NodeRoot},
		NodesByID: make(map[string]*SceneNode),
	}
}

func (sg *SceneGraph) add(parent, n *SceneNode) {
	parent.Children = append(parent.Children, n)
	sg.NodesByID[n.ID] = n
}

// hittable reports whether input can land on this node.
func (n *SceneNode) hittable() bool {
	switch n.Kind {
	case NodePage, NodeAnnotation, NodeHandle, NodeDelete:
		return true
	}
	return false
}
