package imagebuf

import "fmt"

// Encoding is a pixel layout code. Values follow the OpenCV type convention the
// producers already emit: the low three bits select the channel depth and the
// remaining bits hold channels-1.
type Encoding uint32

const (
	depth8U  = 0
	depth16U = 2

	channelShift = 3
	depthMask    = 1<<channelShift - 1
)

const (
	Mono8  Encoding = depth8U | 0<<channelShift  // CV_8UC1
	Mono16 Encoding = depth16U | 0<<channelShift // CV_16UC1
	RGB24  Encoding = depth8U | 2<<channelShift  // CV_8UC3
	RGB48  Encoding = depth16U | 2<<channelShift // CV_16UC3

	// Bayer8 and Depth16 share codes with Mono8/Mono16; the distinction is the
	// plane role, which the camera layout fixes.
	Bayer8  = Mono8
	Depth16 = Mono16
)

// Valid reports whether e is a supported depth/channel combination.
func (e Encoding) Valid() bool {
	d := uint32(e) & depthMask
	if d != depth8U && d != depth16U {
		return false
	}
	c := e.Channels()
	return c == 1 || c == 3
}

// Channels returns the number of interleaved channels per pixel.
func (e Encoding) Channels() int {
	return int(uint32(e)>>channelShift) + 1
}

// BytesPerChannel returns the size of one channel sample.
func (e Encoding) BytesPerChannel() int {
	if uint32(e)&depthMask == depth16U {
		return 2
	}
	return 1
}

// ElemSize returns the size of one pixel in bytes.
func (e Encoding) ElemSize() int {
	return e.Channels() * e.BytesPerChannel()
}

func (e Encoding) String() string {
	if !e.Valid() {
		return fmt.Sprintf("encoding(%d)", uint32(e))
	}
	return fmt.Sprintf("%dUC%d", e.BytesPerChannel()*8, e.Channels())
}
