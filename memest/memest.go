// Package memest holds the memory-usage oracle consumed by the swapping
// optimizer. Real peak-memory inference belongs to the host framework; this
// package only defines the queried surface plus a trivial static oracle for
// tests and tooling.
package memest

import (
	"github.com/pkg/errors"
)

// Oracle answers "how many bytes does this device peak at when executing the
// graph". Implementations are consulted once, before any rewriting.
type Oracle interface {
	PeakUsage(device string) (int64, error)
}

// Static is an Oracle backed by fixed per-device byte counts, keyed by
// fully-qualified device name.
type Static map[string]int64

// PeakUsage implements Oracle.
func (s Static) PeakUsage(device string) (int64, error) {
	used, found := s[device]
	if !found {
		return 0, errors.Errorf("no memory estimate for device %q", device)
	}
	return used, nil
}
