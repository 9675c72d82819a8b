// Command shmframe-sim is a synthetic producer: it creates a segment,
// publishes its geometry and writes a moving gradient at a fixed rate while
// announcing each frame on the control bus.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/shmframe/internal/bus"
	"github.com/danmuck/shmframe/internal/consumer"
	logs "github.com/danmuck/shmframe/internal/logging"
	"github.com/danmuck/shmframe/internal/shm"
)

type simConfig struct {
	cameras  shm.Camera
	record   consumer.PropertyRecord
	fps      int
	count    int
	validFor time.Duration
	busAddr  string
	token    string
	opts     shm.Options
}

func main() {
	cameras := flag.String("cameras", "forward_left", "comma separated camera names")
	layout := flag.String("layout", "mono_8", "camera layout: mono_8|mono_24|stereo_8|stereo_24|color_depth")
	width := flag.Uint("width", 640, "frame width")
	height := flag.Uint("height", 480, "frame height")
	encoding := flag.Uint("encoding", 0, "base pixel encoding code")
	fps := flag.Int("fps", 10, "frames per second")
	count := flag.Int("count", 0, "frames to publish, 0 runs until interrupted")
	validFor := flag.Duration("valid-for", 200*time.Millisecond, "validity window announced with each frame")
	busAddr := flag.String("bus", "127.0.0.1:14550", "consumer control bus address")
	token := flag.String("token", "", "bus token")
	dir := flag.String("dir", shm.DefaultDir, "segment directory")
	depth := flag.Int("depth", shm.DefaultQueueDepth, "segment queue depth")
	logLevel := flag.String("log-level", "", "log level; empty uses SHMFRAME_LOG_LEVEL or info")
	flag.Parse()

	configureLogging(*logLevel)

	cfg, err := buildConfig(*cameras, *layout, uint32(*width), uint32(*height), uint32(*encoding))
	if err != nil {
		fail(err)
	}
	cfg.fps = *fps
	cfg.count = *count
	cfg.validFor = *validFor
	cfg.busAddr = *busAddr
	cfg.token = *token
	cfg.opts.Dir = *dir
	cfg.opts.QueueDepth = *depth

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		fail(err)
	}
}

func configureLogging(level string) {
	if strings.TrimSpace(level) == "" {
		logs.ConfigureRuntime()
		return
	}
	logs.ConfigureWith(logs.ProfileRuntime, level, "")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "shmframe-sim: %v\n", err)
	os.Exit(1)
}

func buildConfig(cameras, layout string, width, height, encoding uint32) (simConfig, error) {
	cams, err := shm.ParseCameras(strings.Split(cameras, ","))
	if err != nil {
		return simConfig{}, err
	}
	code, ok := consumer.ParseLayout(layout).Code()
	if !ok {
		return simConfig{}, fmt.Errorf("unknown layout %q", layout)
	}
	rec := consumer.PropertyRecord{Layout: code, Width: width, Height: height, Encoding: encoding}
	if _, err := consumer.NewSession(rec, false); err != nil {
		return simConfig{}, err
	}
	return simConfig{
		cameras: cams,
		record:  rec,
		opts:    shm.Options{Cameras: cams, Role: shm.RoleServer},
	}, nil
}

func run(ctx context.Context, cfg simConfig) error {
	sess, err := consumer.NewSession(cfg.record, false)
	if err != nil {
		return err
	}
	payload := make([]byte, sess.PayloadSize())
	opts := cfg.opts
	opts.MaxPayloadSize = len(payload)

	seg, err := shm.Create(opts)
	if err != nil {
		return err
	}
	defer seg.Close()
	info, _ := cfg.record.MarshalBinary()
	if err := seg.WriteInfo(info); err != nil {
		return err
	}

	pub, err := bus.Dial(cfg.busAddr, cfg.token)
	if err != nil {
		return err
	}
	defer pub.Close()

	if cfg.fps <= 0 {
		cfg.fps = 1
	}
	ticker := time.NewTicker(time.Second / time.Duration(cfg.fps))
	defer ticker.Stop()
	logs.Infof("shmframe-sim.run publishing path=%s layout=%s size=%dx%d payload=%d fps=%d bus=%s",
		seg.Path(), sess.Layout(), sess.Width(), sess.Height(), len(payload), cfg.fps, cfg.busAddr)

	for seq := uint32(0); cfg.count == 0 || int(seq) < cfg.count; seq++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		fill(payload, seq)
		if err := seg.WriteData(payload); err != nil {
			return err
		}
		now := uint64(time.Now().UnixMicro())
		idx, n := int32(0), seq
		note := consumer.FrameNotification{
			CameraMask:       cfg.cameras,
			CaptureTimestamp: now,
			ValidUntil:       now + uint64(cfg.validFor.Microseconds()),
			CameraIndex:      &idx,
			Sequence:         &n,
		}
		if err := pub.Send(note.Message(0)); err != nil {
			logs.Warnf("shmframe-sim.run notify failed seq=%d err=%v", seq, err)
		}
		if seq%uint32(cfg.fps) == 0 {
			logs.Debugf("shmframe-sim.run wrote seq=%d ts=%d", seq, now)
		}
	}
	return nil
}

// fill writes a diagonal gradient shifted by seq.
func fill(b []byte, seq uint32) {
	for i := range b {
		b[i] = byte(uint32(i) + seq)
	}
}
