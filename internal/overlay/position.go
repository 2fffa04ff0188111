package overlay

import (
	"strings"

	"github.com/pkg/errors"
)

// Position is the vertical placement of the overlay
type Position string

const (
	PositionTop    Position = "top"
	PositionCenter Position = "center"
	PositionBottom Position = "bottom"
)

// Positions lists the supported placements from top to bottom
var Positions = []Position{PositionTop, PositionCenter, PositionBottom}

// ParsePosition converts a user supplied name into a Position
func ParsePosition(s string) (Position, error) {
	p := Position(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PositionTop, PositionCenter, PositionBottom:
		return p, nil
	}
	return "", errors.Errorf("unsupported position: %s (supported: top, center, bottom)", s)
}

func (p Position) String() string {
	return string(p)
}

// Spec is the caller supplied overlay: free-form text and a placement
type Spec struct {
	Text     string
	Position Position
}
