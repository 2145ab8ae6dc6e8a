// Package inject provides fakes whose behavior is injected per method. A method without an
// injected function delegates to the embedded implementation, or fails if there is none.
package inject

import "github.com/pkg/errors"

func errUnimplemented(method string) error {
	return errors.Errorf("%s not implemented", method)
}
