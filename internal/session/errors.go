package session

import (
	"errors"
	"fmt"

	"asset-preview/internal/assets"
	"asset-preview/internal/cleanup"
)

// ErrSessionClosed is returned for work submitted to a closed session.
var ErrSessionClosed = errors.New("session closed")

// ErrSatisfied is returned by OpenUnless when no import was needed.
var ErrSatisfied = errors.New("session not needed")

// ImportError reports a failed import. The namespace has already been
// cleaned up when it is returned; Cleanup holds that run's report.
type ImportError struct {
	Asset     assets.AssetRef
	Namespace string
	Err       error
	Cleanup   *cleanup.Report
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %s into %s: %v", e.Asset.Name(), e.Namespace, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}
