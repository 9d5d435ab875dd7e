// Package devices models the device catalog the optimizer runs against:
// fully-qualified device names ("/job:worker/replica:0/task:0/device:GPU:1"),
// their parsed form, and the per-device properties the passes query.
package devices

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Properties are the static per-device facts the optimizer needs.
// MemorySize is in bytes; <= 0 means unknown.
type Properties struct {
	Type       string `json:"type"`
	MemorySize int64  `json:"memory_size"`
}

// Catalog maps fully-qualified device names to their properties.
type Catalog map[string]Properties

// Names returns the catalog's device names in sorted order. All iteration
// over the catalog goes through this so passes behave deterministically.
func (c Catalog) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Name is the parsed form of a device name. Fields that were absent from the
// string are "" or -1.
type Name struct {
	Job     string
	Replica int
	Task    int
	Type    string
	ID      int
}

// IsType reports whether the device has the given type, case-insensitively
// ("GPU" matches both "/device:GPU:0" and "/gpu:0").
func (n Name) IsType(deviceType string) bool {
	return strings.EqualFold(n.Type, deviceType)
}

// Parse splits a device name of the form
// "/job:<job>/replica:<id>/task:<id>/device:<TYPE>:<id>" into its parts.
// Every component is optional; short forms like "/GPU:0" or "gpu:1" are
// accepted. Parsing an empty string fails: unplaced nodes have no device.
func Parse(device string) (Name, error) {
	parsed := Name{Replica: -1, Task: -1, ID: -1}
	if device == "" {
		return parsed, errors.New("empty device name")
	}
	for _, part := range strings.Split(strings.TrimPrefix(device, "/"), "/") {
		fields := strings.Split(part, ":")
		switch {
		case len(fields) == 2 && fields[0] == "job":
			parsed.Job = fields[1]
		case len(fields) == 2 && fields[0] == "replica":
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return parsed, errors.Errorf("device %q: bad replica %q", device, fields[1])
			}
			parsed.Replica = id
		case len(fields) == 2 && fields[0] == "task":
			id, err := strconv.Atoi(fields[1])
			if err != nil {
				return parsed, errors.Errorf("device %q: bad task %q", device, fields[1])
			}
			parsed.Task = id
		case len(fields) == 3 && fields[0] == "device":
			if err := parsed.setType(device, fields[1], fields[2]); err != nil {
				return parsed, err
			}
		case len(fields) == 2:
			if err := parsed.setType(device, fields[0], fields[1]); err != nil {
				return parsed, err
			}
		default:
			return parsed, errors.Errorf("device %q: unrecognized component %q", device, part)
		}
	}
	if parsed.Type == "" {
		return parsed, errors.Errorf("device %q names no device type", device)
	}
	return parsed, nil
}

func (n *Name) setType(device, deviceType, id string) error {
	if n.Type != "" {
		return errors.Errorf("device %q names two device types", device)
	}
	parsedID, err := strconv.Atoi(id)
	if err != nil || parsedID < 0 {
		return errors.Errorf("device %q: bad device id %q", device, id)
	}
	n.Type = deviceType
	n.ID = parsedID
	return nil
}
