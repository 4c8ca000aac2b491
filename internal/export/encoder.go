package export

import (
	"context"
	"fmt"
	"io"
	"os/exec"
)

// FFmpegEncoder shells out to ffmpeg for the final mux. It satisfies the
// engine's encoder seam so tests can run the compositing loop without the
// binary present.
type FFmpegEncoder struct{}

func (e *FFmpegEncoder) Start(ctx context.Context, spec EncodeSpec) (FrameSink, error) {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", spec.Width, spec.Height),
		"-framerate", fmt.Sprintf("%d", spec.FPS),
		"-i", "-",
		"-i", spec.AudioPath,
		"-c:v", spec.Codec,
		"-b:v", fmt.Sprintf("%dk", spec.BitrateKbps),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-shortest",
		spec.OutPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start: %w", err)
	}
	return &ffmpegSink{cmd: cmd, stdin: stdin}, nil
}

// EncodeSpec describes one export run for the encoder.
type EncodeSpec struct {
	Width, Height int
	FPS           int
	BitrateKbps   int
	Codec         string
	AudioPath     string
	OutPath       string
}

// FrameSink consumes raw RGBA frames in presentation order.
type FrameSink interface {
	WriteFrame(pix []byte) error
	Close() error
}

// Encoder starts an encode and hands back the frame sink.
type Encoder interface {
	Start(ctx context.Context, spec EncodeSpec) (FrameSink, error)
}

type ffmpegSink struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

func (s *ffmpegSink) WriteFrame(pix []byte) error {
	_, err := s.stdin.Write(pix)
	return err
}

func (s *ffmpegSink) Close() error {
	if err := s.stdin.Close(); err != nil {
		s.cmd.Wait()
		return err
	}
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w", err)
	}
	return nil
}
