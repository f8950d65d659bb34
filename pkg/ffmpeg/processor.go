package ffmpeg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/floostack/transcoder/ffmpeg"
)

// ErrNotFound is returned when ffmpeg or ffprobe cannot be located.
var ErrNotFound = errors.New("ffmpeg not found")

// ErrNotMP4 is returned when a remux did not produce an MP4 container.
var ErrNotMP4 = errors.New("output is not an mp4 container")

// Config holds processor configuration.
type Config struct {
	// FFmpegPath is an explicit ffmpeg binary. ffprobe is expected next to it.
	// Empty means look both up on PATH.
	FFmpegPath string
}

// Processor locates the ffmpeg tools, inspects media files and remuxes
// merged downloads into MP4.
type Processor struct {
	cfg    Config
	logger *slog.Logger

	mu          sync.RWMutex
	ffmpegPath  string
	ffprobePath string
}

// NewProcessor creates a processor. Binaries are resolved lazily by Locate.
func NewProcessor(cfg Config, logger *slog.Logger) *Processor {
	return &Processor{cfg: cfg, logger: logger}
}

// Locate resolves the ffmpeg and ffprobe binaries. It is safe to call
// repeatedly; a later success replaces an earlier failure.
func (p *Processor) Locate(ctx context.Context) error {
	ffmpegPath, ffprobePath, err := locate(p.cfg.FFmpegPath)
	if err != nil {
		return err
	}

	p.mu.Lock()
	changed := p.ffmpegPath != ffmpegPath
	p.ffmpegPath = ffmpegPath
	p.ffprobePath = ffprobePath
	p.mu.Unlock()

	if changed {
		p.logger.Info("ffmpeg located", "ffmpeg", ffmpegPath, "ffprobe", ffprobePath)
	}
	return nil
}

// Use adopts explicit ffmpeg and ffprobe binaries, e.g. a managed install,
// after checking both are executable.
func (p *Processor) Use(ffmpegPath, ffprobePath string) error {
	ff, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return fmt.Errorf("%w at %s: %v", ErrNotFound, ffmpegPath, err)
	}
	fp, err := exec.LookPath(ffprobePath)
	if err != nil {
		return fmt.Errorf("%w: ffprobe at %s: %v", ErrNotFound, ffprobePath, err)
	}

	p.mu.Lock()
	changed := p.ffmpegPath != ff
	p.ffmpegPath = ff
	p.ffprobePath = fp
	p.mu.Unlock()

	if changed {
		p.logger.Info("ffmpeg adopted", "ffmpeg", ff, "ffprobe", fp)
	}
	return nil
}

func locate(configured string) (string, string, error) {
	if configured == "" {
		ffmpegPath, err := exec.LookPath("ffmpeg")
		if err != nil {
			return "", "", fmt.Errorf("%w in PATH: %v", ErrNotFound, err)
		}
		ffprobePath, err := exec.LookPath("ffprobe")
		if err != nil {
			return "", "", fmt.Errorf("ffprobe not found in PATH: %w", err)
		}
		return ffmpegPath, ffprobePath, nil
	}

	ffmpegPath, err := exec.LookPath(configured)
	if err != nil {
		return "", "", fmt.Errorf("%w at %s: %v", ErrNotFound, configured, err)
	}

	sibling := filepath.Join(filepath.Dir(ffmpegPath), "ffprobe"+exeSuffix())
	if ffprobePath, err := exec.LookPath(sibling); err == nil {
		return ffmpegPath, ffprobePath, nil
	}
	ffprobePath, err := exec.LookPath("ffprobe")
	if err != nil {
		return "", "", fmt.Errorf("ffprobe not found next to %s or in PATH: %w", ffmpegPath, err)
	}
	return ffmpegPath, ffprobePath, nil
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// FFmpegPath returns the located ffmpeg binary, or "" before Locate succeeds.
func (p *Processor) FFmpegPath() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.ffmpegPath
}

func (p *Processor) paths() (string, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.ffmpegPath == "" || p.ffprobePath == "" {
		return "", "", ErrNotFound
	}
	return p.ffmpegPath, p.ffprobePath, nil
}

// MediaInfo contains container and stream metadata about a file.
type MediaInfo struct {
	FormatName string  // ffprobe format_name, e.g. "mov,mp4,m4a,3gp,3g2,mj2"
	Duration   float64 // seconds
	HasVideo   bool
	HasAudio   bool
	VideoCodec string
	AudioCodec string
	FileSize   int64
}

// IsMP4 reports whether the container is in the MP4/QuickTime family.
func (m *MediaInfo) IsMP4() bool {
	for _, name := range strings.Split(m.FormatName, ",") {
		switch strings.TrimSpace(name) {
		case "mp4", "mov", "m4a":
			return true
		}
	}
	return false
}

// Inspect runs ffprobe on path.
func (p *Processor) Inspect(ctx context.Context, path string) (*MediaInfo, error) {
	_, ffprobePath, err := p.paths()
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat media: %w", err)
	}

	cmd := exec.CommandContext(ctx, ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", err)
	}

	info, err := parseProbeOutput(output)
	if err != nil {
		return nil, err
	}
	info.FileSize = stat.Size()
	return info, nil
}

type probeOutput struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
	} `json:"streams"`
}

func parseProbeOutput(data []byte) (*MediaInfo, error) {
	var parsed probeOutput
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	info := &MediaInfo{FormatName: parsed.Format.FormatName}
	if parsed.Format.Duration != "" {
		if dur, err := strconv.ParseFloat(parsed.Format.Duration, 64); err == nil {
			info.Duration = dur
		}
	}

	for _, s := range parsed.Streams {
		switch s.CodecType {
		case "audio":
			info.HasAudio = true
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		case "video":
			info.HasVideo = true
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
			}
		}
	}
	return info, nil
}

// NormalizeMP4 makes dst an MP4 copy of src. A source already in an MP4
// container is renamed; anything else is remuxed without re-encoding. src is
// left in place when a remux happens.
func (p *Processor) NormalizeMP4(ctx context.Context, src, dst string) error {
	info, err := p.Inspect(ctx, src)
	if err != nil {
		return fmt.Errorf("inspect source: %w", err)
	}

	if info.IsMP4() {
		if err := os.Rename(src, dst); err != nil {
			return fmt.Errorf("rename to mp4: %w", err)
		}
		return nil
	}

	p.logger.Info("remuxing to mp4", "src", filepath.Base(src), "format", info.FormatName,
		"video_codec", info.VideoCodec, "audio_codec", info.AudioCodec)

	if err := p.remux(ctx, src, dst); err != nil {
		return err
	}

	out, err := p.Inspect(ctx, dst)
	if err != nil {
		return fmt.Errorf("inspect remuxed output: %w", err)
	}
	if !out.IsMP4() {
		return fmt.Errorf("%w: %s", ErrNotMP4, out.FormatName)
	}
	return nil
}

func (p *Processor) remux(ctx context.Context, src, dst string) error {
	ffmpegPath, ffprobePath, err := p.paths()
	if err != nil {
		return err
	}

	format := "mp4"
	codec := "copy"
	overwrite := true

	transcoder := ffmpeg.
		New(&ffmpeg.Config{
			ProgressEnabled: true,
			FfmpegBinPath:   ffmpegPath,
			FfprobeBinPath:  ffprobePath,
		}).
		Input(src).
		Output(dst).
		WithContext(&ctx)

	progress, err := transcoder.Start(&ffmpeg.Options{
		OutputFormat: &format,
		VideoCodec:   &codec,
		AudioCodec:   &codec,
		Overwrite:    &overwrite,
	})
	if err != nil {
		return fmt.Errorf("start remux: %w", err)
	}

	var last float64
	for prog := range progress {
		last = prog.GetProgress()
	}
	p.logger.Debug("remux finished", "dst", filepath.Base(dst), "progress", last)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("remux: %w", err)
	}
	// Start does not report ffmpeg's exit status; a failed run leaves no output.
	if _, err := os.Stat(dst); err != nil {
		return fmt.Errorf("remux produced no output: %w", err)
	}
	return nil
}
