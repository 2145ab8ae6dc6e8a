package referenceframe

import "github.com/pkg/errors"

// NewParentFrameMissingError returns an error indicating that a frame names a parent the system does not have.
func NewParentFrameMissingError(frame, parent string) error {
	return errors.Errorf("parent frame %q of frame %q not in frame system", parent, frame)
}

// NewFrameMissingError returns an error indicating that a frame is not in the frame system.
func NewFrameMissingError(frame string) error {
	return errors.Errorf("frame with name %q not in frame system", frame)
}

// NewFrameExistsError returns an error indicating that a frame name is already taken.
func NewFrameExistsError(frame string) error {
	return errors.Errorf("frame with name %q already in frame system", frame)
}
