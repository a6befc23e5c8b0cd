// Package voice streams a resolved media URL into a Discord voice
// connection: decode, resample to s16/48k/stereo, encode 20 ms libopus
// frames, pace them onto OpusSend.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/bwmarrin/discordgo"
)

const (
	sampleRate = 48000
	channels   = 2
	frameSize  = 960 // samples per channel, 20 ms at 48 kHz
	frameBytes = frameSize * channels * 2
)

// Stream plays inputURL on vc until the input ends or ctx is cancelled.
// Returns nil on natural end of input.
func Stream(ctx context.Context, vc *discordgo.VoiceConnection, inputURL string) error {
	if err := waitReady(ctx, vc); err != nil {
		return err
	}

	in, err := openInput(inputURL)
	if err != nil {
		return err
	}
	defer in.close()

	enc, err := newOpusEncoder()
	if err != nil {
		return err
	}
	defer enc.close()

	_ = vc.Speaking(true)
	defer vc.Speaking(false)

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	send := func(pkt []byte) error {
		out := append([]byte(nil), pkt...)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case vc.OpusSend <- out:
			return nil
		case <-time.After(200 * time.Millisecond):
			return errors.New("opus send timeout")
		}
	}

	// Accumulate resampled PCM and cut it into exact 20 ms frames.
	var pending []byte
	onPCM := func(b []byte) error {
		pending = append(pending, b...)
		for len(pending) >= frameBytes {
			frame := pending[:frameBytes]
			pending = pending[frameBytes:]
			if err := enc.encode(frame, send); err != nil {
				return err
			}
		}
		return nil
	}

	if err := in.decode(ctx, onPCM); err != nil {
		return err
	}
	return enc.flush(send)
}

func waitReady(ctx context.Context, vc *discordgo.VoiceConnection) error {
	deadline := time.Now().Add(5 * time.Second)
	for vc == nil || !vc.Ready {
		if vc == nil || time.Now().After(deadline) {
			return errors.New("voice connection not ready")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

// input owns the demux/decode/resample half of the pipeline.
type input struct {
	fc       *astiav.FormatContext
	st       *astiav.Stream
	decCtx   *astiav.CodecContext
	swr      *astiav.SoftwareResampleContext
	srcFrame *astiav.Frame
	dstFrame *astiav.Frame
}

func openInput(inputURL string) (*input, error) {
	fc := astiav.AllocFormatContext()
	if fc == nil {
		return nil, errors.New("alloc format context")
	}

	dict := astiav.NewDictionary()
	defer dict.Free()
	_ = dict.Set("reconnect", "1", 0)
	_ = dict.Set("reconnect_streamed", "1", 0)
	_ = dict.Set("reconnect_delay_max", "5", 0)

	if err := fc.OpenInput(inputURL, nil, dict); err != nil {
		fc.Free()
		return nil, fmt.Errorf("open input: %w", err)
	}
	if err := fc.FindStreamInfo(nil); err != nil {
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("find stream info: %w", err)
	}

	st, codec, err := fc.FindBestStream(astiav.MediaTypeAudio, -1, -1)
	if err != nil || st == nil || codec == nil {
		fc.CloseInput()
		fc.Free()
		if err != nil {
			return nil, fmt.Errorf("find audio stream: %w", err)
		}
		return nil, errors.New("no audio stream found")
	}

	decCtx := astiav.AllocCodecContext(codec)
	if decCtx == nil {
		fc.CloseInput()
		fc.Free()
		return nil, errors.New("alloc codec context")
	}
	if err := decCtx.FromCodecParameters(st.CodecParameters()); err != nil {
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("codec from params: %w", err)
	}
	decCtx.SetTimeBase(st.TimeBase())
	if err := decCtx.Open(codec, nil); err != nil {
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, fmt.Errorf("open decoder: %w", err)
	}

	swr := astiav.AllocSoftwareResampleContext()
	srcFrame := astiav.AllocFrame()
	dstFrame := astiav.AllocFrame()
	if swr == nil || srcFrame == nil || dstFrame == nil {
		if srcFrame != nil {
			srcFrame.Free()
		}
		if dstFrame != nil {
			dstFrame.Free()
		}
		if swr != nil {
			swr.Free()
		}
		decCtx.Free()
		fc.CloseInput()
		fc.Free()
		return nil, errors.New("alloc resampler")
	}

	return &input{fc: fc, st: st, decCtx: decCtx, swr: swr, srcFrame: srcFrame, dstFrame: dstFrame}, nil
}

func (in *input) close() {
	in.srcFrame.Free()
	in.dstFrame.Free()
	in.swr.Free()
	in.decCtx.Free()
	in.fc.CloseInput()
	in.fc.Free()
}

// decode reads packets until EOF, handing resampled interleaved s16le PCM to
// onPCM.
func (in *input) decode(ctx context.Context, onPCM func([]byte) error) error {
	packet := astiav.AllocPacket()
	defer packet.Free()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		packet.Unref()
		if err := in.fc.ReadFrame(packet); err != nil {
			if astErr, ok := err.(astiav.Error); ok && astErr.Is(io.EOF) {
				return in.drain(onPCM)
			}
			if astErr, ok := err.(astiav.Error); ok && astErr.Is(astiav.ErrEagain) {
				continue
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if packet.StreamIndex() != in.st.Index() {
			continue
		}

		if err := in.decCtx.SendPacket(packet); err != nil {
			if astErr, ok := err.(astiav.Error); !ok || !astErr.Is(astiav.ErrEagain) {
				return fmt.Errorf("send packet: %w", err)
			}
		}
		if err := in.receiveFrames(onPCM); err != nil {
			return err
		}
	}
}

// drain flushes the decoder at end of input.
func (in *input) drain(onPCM func([]byte) error) error {
	_ = in.decCtx.SendPacket(nil)
	for {
		in.srcFrame.Unref()
		if err := in.decCtx.ReceiveFrame(in.srcFrame); err != nil {
			return nil
		}
		if err := in.resampleAndEmit(onPCM); err != nil {
			return err
		}
	}
}

func (in *input) receiveFrames(onPCM func([]byte) error) error {
	for {
		in.srcFrame.Unref()
		if err := in.decCtx.ReceiveFrame(in.srcFrame); err != nil {
			if astErr, ok := err.(astiav.Error); ok && (astErr.Is(astiav.ErrEagain) || astErr.Is(astiav.ErrEof)) {
				return nil
			}
			return fmt.Errorf("receive frame: %w", err)
		}
		if err := in.resampleAndEmit(onPCM); err != nil {
			return err
		}
	}
}

func (in *input) resampleAndEmit(onPCM func([]byte) error) error {
	in.dstFrame.Unref()
	in.dstFrame.SetNbSamples(in.srcFrame.NbSamples())
	in.dstFrame.SetChannelLayout(astiav.ChannelLayoutStereo)
	in.dstFrame.SetSampleRate(sampleRate)
	in.dstFrame.SetSampleFormat(astiav.SampleFormatS16)
	if err := in.dstFrame.AllocBuffer(0); err != nil {
		return fmt.Errorf("dst alloc buffer: %w", err)
	}
	if err := in.swr.ConvertFrame(in.srcFrame, in.dstFrame); err != nil {
		return fmt.Errorf("swr convert: %w", err)
	}
	b, err := in.dstFrame.Data().Bytes(0)
	if err != nil {
		return fmt.Errorf("dst bytes: %w", err)
	}
	return onPCM(b)
}

// opusEncoder wraps a libopus codec context for 20 ms s16 stereo frames.
type opusEncoder struct {
	cc     *astiav.CodecContext
	frame  *astiav.Frame
	packet *astiav.Packet
}

func newOpusEncoder() (*opusEncoder, error) {
	codec := astiav.FindEncoderByName("libopus")
	if codec == nil {
		return nil, errors.New("libopus encoder not found")
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.New("alloc encoder context")
	}
	cc.SetSampleRate(sampleRate)
	cc.SetChannelLayout(astiav.ChannelLayoutStereo)
	cc.SetSampleFormat(astiav.SampleFormatS16)
	cc.SetBitRate(160_000)

	opts := astiav.NewDictionary()
	defer opts.Free()
	_ = opts.Set("frame_duration", "20", 0)
	_ = opts.Set("application", "audio", 0)

	if err := cc.Open(codec, opts); err != nil {
		cc.Free()
		return nil, fmt.Errorf("open opus encoder: %w", err)
	}

	frame := astiav.AllocFrame()
	if frame == nil {
		cc.Free()
		return nil, errors.New("alloc encoder frame")
	}
	frame.SetSampleRate(sampleRate)
	frame.SetChannelLayout(astiav.ChannelLayoutStereo)
	frame.SetSampleFormat(astiav.SampleFormatS16)
	frame.SetNbSamples(frameSize)
	if err := frame.AllocBuffer(0); err != nil {
		frame.Free()
		cc.Free()
		return nil, fmt.Errorf("alloc frame buffer: %w", err)
	}

	pkt := astiav.AllocPacket()
	if pkt == nil {
		frame.Free()
		cc.Free()
		return nil, errors.New("alloc encoder packet")
	}
	return &opusEncoder{cc: cc, frame: frame, packet: pkt}, nil
}

func (e *opusEncoder) close() {
	e.packet.Free()
	e.frame.Free()
	e.cc.Free()
}

// encode expects exactly one 20 ms interleaved s16le frame.
func (e *opusEncoder) encode(pcm []byte, emit func([]byte) error) error {
	if len(pcm) != frameBytes {
		return fmt.Errorf("invalid PCM frame size: got %d, want %d", len(pcm), frameBytes)
	}
	if err := e.frame.Data().SetBytes(pcm, 0); err != nil {
		return fmt.Errorf("set frame bytes: %w", err)
	}
	if err := e.cc.SendFrame(e.frame); err != nil {
		return fmt.Errorf("send frame: %w", err)
	}
	return e.receive(emit)
}

func (e *opusEncoder) flush(emit func([]byte) error) error {
	if err := e.cc.SendFrame(nil); err != nil {
		if astErr, ok := err.(astiav.Error); ok && astErr.Is(astiav.ErrEof) {
			return nil
		}
		return fmt.Errorf("flush encoder: %w", err)
	}
	return e.receive(emit)
}

func (e *opusEncoder) receive(emit func([]byte) error) error {
	for {
		e.packet.Unref()
		if err := e.cc.ReceivePacket(e.packet); err != nil {
			if astErr, ok := err.(astiav.Error); ok && (astErr.Is(astiav.ErrEagain) || astErr.Is(astiav.ErrEof)) {
				return nil
			}
			return fmt.Errorf("receive opus packet: %w", err)
		}
		if err := emit(e.packet.Data()); err != nil {
			return err
		}
	}
}
