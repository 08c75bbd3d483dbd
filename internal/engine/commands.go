package engine

import (
	"encoding/json"
)

// DrawCommand represents a single drawing operation for the frontend to execute.
// The frontend receives a list of these and executes them on a Canvas2D context.
type DrawCommand struct {
	Op          string        `json:"op"`                    // Operation: "path", "text", "circle", "image"
	ObjectID    string        `json:"objectId,omitempty"`    // For hit correlation
	Transform   []float64     `json:"transform,omitempty"`   // [a, b, c, d, e, f] affine matrix
	Path        []PathCommand `json:"path,omitempty"`        // Path data for "path" ops
	Fill        string        `json:"fill,omitempty"`        // Fill color
	Stroke      string        `json:"stroke,omitempty"`      // Stroke color
	StrokeWidth float64       `json:"strokeWidth,omitempty"` // Stroke width
	Opacity     float64       `json:"opacity,omitempty"`     // Global alpha
	Selected    bool          `json:"selected,omitempty"`    // Draw selection highlight
	Text        string        `json:"text,omitempty"`        // Content for "text" ops
	FontSize    float64       `json:"fontSize,omitempty"`    // Font size for "text" ops
	X           float64       `json:"x,omitempty"`           // Text anchor or circle center
	Y           float64       `json:"y,omitempty"`
	Radius      float64       `json:"radius,omitempty"`      // Radius for "circle" ops
	ImageSrc    string        `json:"imageSrc,omitempty"`    // Image URL
	ImageWidth  float64       `json:"imageWidth,omitempty"`  // Image natural width
	ImageHeight float64       `json:"imageHeight,omitempty"` // Image natural height
}

// CompileDrawCommands generates a draw command buffer from a scene graph.
// Commands are in painter's order (back to front).
func CompileDrawCommands(sg *SceneGraph) []DrawCommand {
	if sg == nil || sg.Root == nil {
		return nil
	}

	var commands []DrawCommand
	compileNode(sg.Root, &commands)
	return commands
}

// compileNode recursively generates draw commands for a node and its children.
func compileNode(node *SceneNode, commands *[]DrawCommand) {
	if node == nil || !node.Visible {
		return
	}

	base := DrawCommand{
		ObjectID:  node.ID,
		Transform: node.WorldTransform.ToSlice(),
		Opacity:   node.Opacity,
		Selected:  node.Selected,
	}

	switch node.Type {
	case NodeImage:
		if node.ImageSrc != "" {
			cmd := base
			cmd.Op = "image"
			cmd.ImageSrc = node.ImageSrc
			cmd.ImageWidth = node.ImageWidth
			cmd.ImageHeight = node.ImageHeight
			*commands = append(*commands, cmd)
		}

	case NodeText:
		cmd := base
		cmd.Op = "text"
		cmd.Text = node.Text
		cmd.FontSize = node.FontSize
		cmd.X, cmd.Y = node.Anchor.X, node.Anchor.Y
		cmd.Fill = node.Fill
		*commands = append(*commands, cmd)

	case NodeMarker:
		cmd := base
		cmd.Op = "circle"
		cmd.X, cmd.Y = node.Anchor.X, node.Anchor.Y
		cmd.Radius = node.Radius
		cmd.Fill = node.Fill
		cmd.Stroke = node.Stroke
		cmd.StrokeWidth = node.StrokeWidth
		*commands = append(*commands, cmd)

	default:
		if len(node.Path) > 0 {
			cmd := base
			cmd.Op = "path"
			cmd.Path = node.Path
			cmd.Fill = node.Fill
			cmd.Stroke = node.Stroke
			cmd.StrokeWidth = node.StrokeWidth
			*commands = append(*commands, cmd)
		}
	}

	// Recurse into children
	for _, child := range node.Children {
		compileNode(child, commands)
	}
}

// DrawCommandsToJSON serializes draw commands to JSON.
func DrawCommandsToJSON(commands []DrawCommand) (string, error) {
	if commands == nil {
		return "[]", nil
	}
	data, err := json.Marshal(commands)
	if err != nil {
		return "[]", err
	}
	return string(data), nil
}
