// Package bumper defines contact sensors mounted around a mobile base.
package bumper

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Contact identifies which part of the bumper was hit.
type Contact int

// Contact ids, numbered left to right.
const (
	Left Contact = iota
	Center
	Right
)

func (c Contact) String() string {
	switch c {
	case Left:
		return "left"
	case Center:
		return "center"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("contact(%d)", int(c))
	}
}

// ContactFromString parses a contact name.
func ContactFromString(s string) (Contact, error) {
	switch s {
	case "left":
		return Left, nil
	case "center":
		return Center, nil
	case "right":
		return Right, nil
	default:
		return 0, errors.Errorf("unknown bumper contact %q", s)
	}
}

// Event is a single bumper reading.
type Event struct {
	Contact Contact
	Active  bool
}

// A Bumper reports contact events. It is read at most once per control tick.
type Bumper interface {
	// Poll returns the pending event, or nil if nothing happened since the last poll.
	Poll(ctx context.Context) (*Event, error)
}
