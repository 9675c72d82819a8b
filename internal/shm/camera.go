package shm

import (
	"fmt"
	"strings"
)

// Camera is a bitmask identifying physical sensors. A channel is keyed by the
// union of the cameras it carries.
type Camera uint64

const (
	CameraNone          Camera = 0
	CameraForwardLeft   Camera = 1 << 0
	CameraForwardRight  Camera = 1 << 1
	CameraDownwardLeft  Camera = 1 << 2
	CameraDownwardRight Camera = 1 << 3
)

var cameraNames = []struct {
	cam  Camera
	name string
}{
	{CameraForwardLeft, "forward_left"},
	{CameraForwardRight, "forward_right"},
	{CameraDownwardLeft, "downward_left"},
	{CameraDownwardRight, "downward_right"},
}

// ParseCamera resolves one camera name.
func ParseCamera(name string) (Camera, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, c := range cameraNames {
		if c.name == n {
			return c.cam, nil
		}
	}
	return CameraNone, fmt.Errorf("shm: unknown camera %q", name)
}

// ParseCameras resolves and unions a list of camera names.
func ParseCameras(names []string) (Camera, error) {
	var mask Camera
	for _, name := range names {
		c, err := ParseCamera(name)
		if err != nil {
			return CameraNone, err
		}
		mask |= c
	}
	return mask, nil
}

// Has reports whether every bit of o is set in c.
func (c Camera) Has(o Camera) bool {
	return o != CameraNone && c&o == o
}

// Overlaps reports whether c and o share any sensor.
func (c Camera) Overlaps(o Camera) bool {
	return c&o != 0
}

func (c Camera) String() string {
	if c == CameraNone {
		return "none"
	}
	var parts []string
	rest := c
	for _, n := range cameraNames {
		if c&n.cam != 0 {
			parts = append(parts, n.name)
			rest &^= n.cam
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint64(rest)))
	}
	return strings.Join(parts, "|")
}

// Role selects which side of a channel a handle represents.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}
