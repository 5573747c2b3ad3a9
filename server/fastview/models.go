// fastview pushes server side views to browsers: the server owns all view state and sends
// frames of element updates and canvas paint ops over a websocket; the page only applies them.
package fastview

import "github.com/rob102-staff/nav-app/render"

// EleUpdate is an element identifier and a set of operations to apply to its attributes/content.
type EleUpdate struct {
	// The id by which to find the element
	EleId string
	// Op keys are attrib keys or 'textContent', values are the strings to which these are set.
	// Example: ('x','123') means 'set attribute 'x' to 123. 'textContent' is a reserved key:
	// ('textContent','abc') means 'set ele.textContent to abc'.
	Ops []Op
}

// Op is a key and value. For example an html attribute and its new value.
type Op struct {
	Key   string
	Value string
}

// TextContent is the reserved op key that sets an element's text.
const TextContent = "textContent"

// Text returns an update setting an element's text.
func Text(eleId, text string) EleUpdate {
	return EleUpdate{EleId: eleId, Ops: []Op{{Key: TextContent, Value: text}}}
}

// Frame is one message to a browser. Paints are differential and must all be applied in order;
// Updates are idempotent, so only the latest update per element matters.
type Frame struct {
	// Reset asks the page to clear every layer before applying the frame.
	Reset   bool             `json:"reset,omitempty"`
	Paints  []render.PaintOp `json:"paints,omitempty"`
	Updates []EleUpdate      `json:"updates,omitempty"`
}

// Empty reports whether the frame carries nothing.
func (f Frame) Empty() bool {
	return !f.Reset && len(f.Paints) == 0 && len(f.Updates) == 0
}

// Merge appends next to f: all paint ops are kept in order, and an element update in next
// replaces an earlier update for the same element.
func (f Frame) Merge(next Frame) Frame {
	merged := Frame{Reset: f.Reset || next.Reset}
	if next.Reset {
		// Everything before a reset is erased by it.
		merged.Paints = append(merged.Paints, next.Paints...)
	} else {
		merged.Paints = append(append(merged.Paints, f.Paints...), next.Paints...)
	}

	merged.Updates = append(merged.Updates, f.Updates...)
	for _, update := range next.Updates {
		replaced := false
		for i := range merged.Updates {
			if merged.Updates[i].EleId == update.EleId {
				merged.Updates[i] = update
				replaced = true
				break
			}
		}
		if !replaced {
			merged.Updates = append(merged.Updates, update)
		}
	}
	return merged
}
