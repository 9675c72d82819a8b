package consumer

import (
	"errors"
	"time"

	"github.com/danmuck/shmframe/internal/imagebuf"
	logs "github.com/danmuck/shmframe/internal/logging"
	"github.com/danmuck/shmframe/internal/observability"
	"github.com/danmuck/shmframe/internal/shm"
)

// ClientConfig selects the cameras a client accepts notifications for and
// its consumption policy.
type ClientConfig struct {
	Cameras       shm.Camera
	DrainToLatest bool
}

// Client owns one channel and its negotiated session. It is not safe for
// concurrent use: exactly one goroutine consumes a channel.
type Client struct {
	ch      shm.Channel
	cfg     ClientConfig
	session *Session
}

func NewClient(ch shm.Channel, cfg ClientConfig) *Client {
	return &Client{ch: ch, cfg: cfg}
}

// Negotiate reads the channel geometry. It succeeds at most once per client;
// a failed attempt may be repeated.
func (c *Client) Negotiate() (*Session, error) {
	if c.session != nil {
		return nil, ErrAlreadyNegotiated
	}
	s, err := Negotiate(c.ch, c.cfg.DrainToLatest)
	observability.RecordNegotiation(err == nil)
	if err != nil {
		logs.Errf("consumer.Client.Negotiate failed cameras=%s err=%v", c.cfg.Cameras, err)
		return nil, err
	}
	c.session = s
	return s, nil
}

// Session returns the negotiated session or nil.
func (c *Client) Session() *Session {
	return c.session
}

// Accept classifies a notice for this client. It returns the notification
// when n announces a frame from one of the client's cameras.
func (c *Client) Accept(n Notice) (FrameNotification, bool) {
	img, ok := n.(ImageFrame)
	if !ok {
		observability.RecordNotification("not_relevant")
		return FrameNotification{}, false
	}
	if !img.FromCamera(c.cfg.Cameras) {
		observability.RecordNotification("other_camera")
		return FrameNotification{}, false
	}
	observability.RecordNotification("image")
	return img.FrameNotification, true
}

// Next decodes the next frame for whatever layout was negotiated.
func (c *Client) Next() (*DecodedFrame, error) {
	start := time.Now()
	f, err := DecodeNext(c.ch, c.session)
	if err != nil {
		if !errors.Is(err, ErrNoDataPending) {
			logs.Debugf("consumer.Client.Next failed err=%v", err)
		}
		observability.RecordDecodeFailure(failureKind(err))
		return nil, err
	}
	observability.RecordFrameDecoded(f.Layout.String(), f.Drained, time.Since(start))
	return f, nil
}

// ReadMono decodes one frame from a mono session.
func (c *Client) ReadMono() (*imagebuf.Image, error) {
	if err := c.expect("ReadMono", LayoutMonoLow, LayoutMonoHigh); err != nil {
		return nil, err
	}
	f, err := c.Next()
	if err != nil {
		return nil, err
	}
	return f.Plane(0), nil
}

// ReadStereo decodes one left/right pair from a stereo session.
func (c *Client) ReadStereo() (left, right *imagebuf.Image, err error) {
	if err := c.expect("ReadStereo", LayoutStereoLow, LayoutStereoHigh); err != nil {
		return nil, nil, err
	}
	f, err := c.Next()
	if err != nil {
		return nil, nil, err
	}
	return f.Plane(0), f.Plane(1), nil
}

// ReadColorDepth decodes one Bayer color plane and its 16-bit depth plane.
func (c *Client) ReadColorDepth() (color, depth *imagebuf.Image, err error) {
	if err := c.expect("ReadColorDepth", LayoutColorDepth); err != nil {
		return nil, nil, err
	}
	f, err := c.Next()
	if err != nil {
		return nil, nil, err
	}
	return f.Plane(0), f.Plane(1), nil
}

func (c *Client) expect(op string, accepted ...CameraLayout) error {
	if c.session == nil {
		return ErrNotNegotiated
	}
	for _, l := range accepted {
		if c.session.layout == l {
			return nil
		}
	}
	err := &LayoutMismatchError{Op: op, Have: c.session.layout, Accepted: accepted}
	logs.Errf("consumer.Client.%s layout mismatch err=%v", op, err)
	observability.RecordDecodeFailure(failureKind(err))
	return err
}

func (c *Client) Close() error {
	return c.ch.Close()
}
