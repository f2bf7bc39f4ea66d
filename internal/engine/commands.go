package engine

import (
	"encoding/json"

	"github.com/arkonsolutions/clearway-test-ann-viewer/internal/geom"
)

// DrawCommand is one element for the front end to draw, in painter's order.
type DrawCommand struct {
	Op           string       `json:"op"` // "page", "annotation", "handle", "delete", "draft"
	ObjectID     string       `json:"objectId"`
	PageNumber   int          `json:"page,omitempty"`
	AnnotationID string       `json:"annotationId,omitempty"`
	X            float64      `json:"x"`
	Y            float64      `json:"y"`
	Width        float64      `json:"width"`
	Height       float64      `json:"height"`
	ImageURL     string       `json:"imageUrl,omitempty"`
	Text         string       `json:"text,omitempty"`
	Controls     bool         `json:"controls,omitempty"`
	Editor       *EditorState `json:"editor,omitempty"`
}

// CompileDrawCommands flattens a scene graph into draw commands, parents
// before children.
func CompileDrawCommands(sg *SceneGraph) []DrawCommand {
	if sg == nil || sg.Root == nil {
		return nil
	}
	commands := []DrawCommand{}
	for _, child := range sg.Root.Children {
		compileNode(child, &commands)
	}
	return commands
}

func compileNode(node *SceneNode, commands *[]DrawCommand) {
	*commands = append(*commands, DrawCommand{
		Op:           string(node.Kind),
		ObjectID:     node.ID,
		PageNumber:   node.PageNumber,
		AnnotationID: node.AnnotationID,
		X:            node.Bounds.X,
		Y:            node.Bounds.Y,
		Width:        node.Bounds.W,
		Height:       node.Bounds.H,
		ImageURL:     node.ImageURL,
		Text:         node.Text,
		Controls:     node.Controls,
		Editor:       node.Editor,
	})
	for _, child := range node.Children {
		compileNode(child, commands)
	}
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}

type HitKind string

const (
	HitNone       HitKind = ""
	HitPage       HitKind = "page"
	HitAnnotation HitKind = "annotation"
	HitHandle     HitKind = "handle"
	HitDelete     HitKind = "delete"
)

// Hit is the topmost element under a point.
type Hit struct {
	Kind         HitKind `json:"kind"`
	PageNumber   int     `json:"page,omitempty"`
	AnnotationID string  `json:"annotationId,omitempty"`
}

// HitTest returns the frontmost hittable node containing p. Children are
// tested before their parent, later siblings before earlier ones.
func HitTest(sg *SceneGraph, p geom.Point) Hit {
	if sg == nil || sg.Root == nil {
		return Hit{}
	}
	if n := hitTestNode(sg.Root, p); n != nil {
		return Hit{Kind: HitKind(n.Kind), PageNumber: n.PageNumber, AnnotationID: n.AnnotationID}
	}
	return Hit{}
}

func hitTestNode(node *SceneNode, p geom.Point) *SceneNode {
	for i := len(node.Children) - 1; i >= 0; i-- {
		if hit := hitTestNode(node.Children[i], p); hit != nil {
			return hit
		}
	}
	if node.hittable() && node.Bounds.Contains(p) {
		return node
	}
	return nil
}
