package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"
)

// Capture records 16kHz mono audio from an input device and delivers it in
// fixed-duration chunks on a channel. Chunks are dropped (with a warning)
// when the consumer falls behind, so a slow transcription backend never
// blocks the device callback.
type Capture struct {
	ctx       *malgo.AllocatedContext
	device    *malgo.Device
	chunkSize int
	log       zerolog.Logger

	mu  sync.Mutex
	buf []float32

	chunks chan []float32
}

// NewCapture initializes the audio backend. deviceName selects an input
// device by substring match; empty means the system default. chunkSeconds is
// the duration of each delivered chunk.
func NewCapture(deviceName string, chunkSeconds int, log zerolog.Logger) (*Capture, error) {
	if chunkSeconds <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %d", chunkSeconds)
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	c := &Capture{
		ctx:       mctx,
		chunkSize: chunkSeconds * TargetSampleRate,
		log:       log,
		chunks:    make(chan []float32, 4),
	}

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = 1
	deviceCfg.SampleRate = TargetSampleRate

	if deviceName != "" {
		id, name, err := c.findDevice(deviceName)
		if err != nil {
			mctx.Uninit()
			mctx.Free()
			return nil, err
		}
		deviceCfg.Capture.DeviceID = id.Pointer()
		log.Info().Str("device", name).Msg("input device selected")
	} else {
		log.Info().Msg("using default input device")
	}

	device, err := malgo.InitDevice(mctx.Context, deviceCfg, malgo.DeviceCallbacks{
		Data: c.onData,
	})
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	c.device = device

	return c, nil
}

// findDevice enumerates capture devices and returns the first whose name
// contains the given substring (case-insensitive).
func (c *Capture) findDevice(name string) (malgo.DeviceID, string, error) {
	infos, err := c.ctx.Devices(malgo.Capture)
	if err != nil {
		return malgo.DeviceID{}, "", fmt.Errorf("enumerate devices: %w", err)
	}
	for _, info := range infos {
		if strings.Contains(strings.ToLower(info.Name()), strings.ToLower(name)) {
			return info.ID, info.Name(), nil
		}
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return malgo.DeviceID{}, "", fmt.Errorf("input device %q not found (available: %s)", name, strings.Join(names, ", "))
}

// Start begins capturing. Chunks become available on Chunks().
func (c *Capture) Start() error {
	if err := c.device.Start(); err != nil {
		return fmt.Errorf("start capture device: %w", err)
	}
	c.log.Info().
		Int("sample_rate", TargetSampleRate).
		Int("chunk_samples", c.chunkSize).
		Msg("audio capture started")
	return nil
}

// Chunks returns the channel of captured audio chunks. It is closed by Close.
func (c *Capture) Chunks() <-chan []float32 { return c.chunks }

// Close stops the device and releases all audio resources.
func (c *Capture) Close() error {
	if c.device != nil {
		c.device.Uninit()
		c.device = nil
	}
	close(c.chunks)
	if c.ctx != nil {
		if err := c.ctx.Uninit(); err != nil {
			return fmt.Errorf("uninit audio context: %w", err)
		}
		c.ctx.Free()
		c.ctx = nil
	}
	return nil
}

// onData accumulates captured frames and emits full chunks.
func (c *Capture) onData(_, pSample []byte, frameCount uint32) {
	samples := bytesToFloat32(pSample, frameCount)

	c.mu.Lock()
	c.buf = append(c.buf, samples...)
	for len(c.buf) >= c.chunkSize {
		chunk := make([]float32, c.chunkSize)
		copy(chunk, c.buf[:c.chunkSize])
		c.buf = c.buf[c.chunkSize:]

		select {
		case c.chunks <- chunk:
		default:
			c.log.Warn().Msg("chunk dropped: transcription not keeping up with capture")
		}
	}
	c.mu.Unlock()
}

// bytesToFloat32 converts raw little-endian float32 bytes to samples.
func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
