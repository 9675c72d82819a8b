package consumer

import "github.com/danmuck/shmframe/internal/imagebuf"

// CameraLayout is how a payload splits into image planes. The zero value is
// LayoutUnrecognized so an unset layout never decodes.
type CameraLayout int

const (
	LayoutUnrecognized CameraLayout = iota
	LayoutMonoLow
	LayoutMonoHigh
	LayoutStereoLow
	LayoutStereoHigh
	LayoutColorDepth
)

// Layout codes as written by producers into the property record.
const (
	codeMono8      uint32 = 0
	codeMono24     uint32 = 1
	codeStereo8    uint32 = 2
	codeStereo24   uint32 = 3
	codeColorDepth uint32 = 4
)

// LayoutFromCode maps a property record code. Unknown codes map to
// LayoutUnrecognized; nothing is guessed.
func LayoutFromCode(code uint32) CameraLayout {
	switch code {
	case codeMono8:
		return LayoutMonoLow
	case codeMono24:
		return LayoutMonoHigh
	case codeStereo8:
		return LayoutStereoLow
	case codeStereo24:
		return LayoutStereoHigh
	case codeColorDepth:
		return LayoutColorDepth
	}
	return LayoutUnrecognized
}

// Code is the inverse of LayoutFromCode.
func (l CameraLayout) Code() (uint32, bool) {
	switch l {
	case LayoutMonoLow:
		return codeMono8, true
	case LayoutMonoHigh:
		return codeMono24, true
	case LayoutStereoLow:
		return codeStereo8, true
	case LayoutStereoHigh:
		return codeStereo24, true
	case LayoutColorDepth:
		return codeColorDepth, true
	}
	return 0, false
}

func (l CameraLayout) String() string {
	switch l {
	case LayoutMonoLow:
		return "mono_8"
	case LayoutMonoHigh:
		return "mono_24"
	case LayoutStereoLow:
		return "stereo_8"
	case LayoutStereoHigh:
		return "stereo_24"
	case LayoutColorDepth:
		return "color_depth"
	}
	return "unrecognized"
}

// ParseLayout accepts the names produced by String.
func ParseLayout(name string) CameraLayout {
	for l := LayoutMonoLow; l <= LayoutColorDepth; l++ {
		if l.String() == name {
			return l
		}
	}
	return LayoutUnrecognized
}

func (l CameraLayout) IsMono() bool {
	return l == LayoutMonoLow || l == LayoutMonoHigh
}

func (l CameraLayout) IsStereo() bool {
	return l == LayoutStereoLow || l == LayoutStereoHigh
}

// Planes returns how many image planes one payload carries.
func (l CameraLayout) Planes() int {
	switch {
	case l.IsMono():
		return 1
	case l.IsStereo(), l == LayoutColorDepth:
		return 2
	}
	return 0
}

// PlaneEncodings returns the encoding of each plane in payload order. The
// color+depth layout ignores base: its planes are always Bayer8 then Depth16.
func (l CameraLayout) PlaneEncodings(base imagebuf.Encoding) []imagebuf.Encoding {
	switch {
	case l.IsMono():
		return []imagebuf.Encoding{base}
	case l.IsStereo():
		return []imagebuf.Encoding{base, base}
	case l == LayoutColorDepth:
		return []imagebuf.Encoding{imagebuf.Bayer8, imagebuf.Depth16}
	}
	return nil
}

// usesBaseEncoding reports whether the negotiated encoding code drives decode.
func (l CameraLayout) usesBaseEncoding() bool {
	return l.IsMono() || l.IsStereo()
}
