package downloader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/lrstanley/go-ytdlp"

	"github.com/iconidentify/toolkit/internal/domain"
)

// ErrEmptyOutput is returned when yt-dlp exits cleanly without printing JSON.
var ErrEmptyOutput = errors.New("yt-dlp produced no output")

// defaultExecutable is looked up on PATH when no path is configured.
const defaultExecutable = "yt-dlp"

// YTDLPConfig configures the yt-dlp binding.
type YTDLPConfig struct {
	// Executable is the yt-dlp binary. Empty means PATH, or the managed
	// install once EnsureInstalled has run.
	Executable string
	// FFmpegPath is passed through as --ffmpeg-location when set.
	FFmpegPath string
}

// YTDLP implements MetadataResolver and Extractor on top of the yt-dlp
// command-line tool.
type YTDLP struct {
	mu         sync.RWMutex
	executable string
	ffmpegPath string
	logger     *slog.Logger
}

// NewYTDLP creates a yt-dlp binding.
func NewYTDLP(cfg YTDLPConfig, logger *slog.Logger) *YTDLP {
	return &YTDLP{
		executable: cfg.Executable,
		ffmpegPath: cfg.FFmpegPath,
		logger:     logger,
	}
}

// EnsureInstalled downloads a managed yt-dlp build into the user cache when
// no executable is configured, and uses it from then on.
func (y *YTDLP) EnsureInstalled(ctx context.Context) error {
	y.mu.RLock()
	configured := y.executable
	y.mu.RUnlock()
	if configured != "" {
		return nil
	}

	resolved, err := ytdlp.Install(ctx, nil)
	if err != nil {
		return fmt.Errorf("install yt-dlp: %w", err)
	}

	y.mu.Lock()
	y.executable = resolved.Executable
	y.mu.Unlock()

	y.logger.Info("yt-dlp installed", "executable", resolved.Executable, "version", resolved.Version)
	return nil
}

// InstallFFmpeg fetches managed ffmpeg and ffprobe builds into the user
// cache, or resolves them from an earlier install, and returns both paths.
func (y *YTDLP) InstallFFmpeg(ctx context.Context) (ffmpegPath, ffprobePath string, err error) {
	ffmpeg, err := ytdlp.InstallFFmpeg(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("install ffmpeg: %w", err)
	}
	ffprobe, err := ytdlp.InstallFFprobe(ctx, nil)
	if err != nil {
		return "", "", fmt.Errorf("install ffprobe: %w", err)
	}

	y.logger.Info("ffmpeg installed", "ffmpeg", ffmpeg.Executable, "ffprobe", ffprobe.Executable, "version", ffmpeg.Version)
	return ffmpeg.Executable, ffprobe.Executable, nil
}

// SetFFmpegPath updates the --ffmpeg-location passed to yt-dlp.
func (y *YTDLP) SetFFmpegPath(path string) {
	y.mu.Lock()
	y.ffmpegPath = path
	y.mu.Unlock()
}

// Probe reports whether the yt-dlp binary can be found.
func (y *YTDLP) Probe(ctx context.Context) error {
	y.mu.RLock()
	name := y.executable
	y.mu.RUnlock()
	if name == "" {
		name = defaultExecutable
	}
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("yt-dlp not found: %w", err)
	}
	return nil
}

func (y *YTDLP) command() *ytdlp.Command {
	y.mu.RLock()
	defer y.mu.RUnlock()

	cmd := ytdlp.New().
		NoWarnings().
		NoPlaylist().
		NoProgress().
		DumpSingleJSON()

	if y.executable != "" {
		cmd = cmd.SetExecutable(y.executable)
	}
	if y.ffmpegPath != "" {
		cmd = cmd.FFmpegLocation(y.ffmpegPath)
	}
	return cmd
}

// Resolve implements MetadataResolver.
func (y *YTDLP) Resolve(ctx context.Context, url string) (*domain.ResolvedMetadata, error) {
	res, err := y.command().SkipDownload().Run(ctx, url)
	if err != nil {
		return nil, runError(res, err)
	}

	info, err := parseInfo(res.Stdout)
	if err != nil {
		return nil, err
	}
	return info.metadata(), nil
}

// Extract implements Extractor.
func (y *YTDLP) Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error) {
	cmd := y.command().
		NoSimulate().
		Format(req.FormatSelector).
		Output(req.OutputTemplate)
	if req.MergeFormat != "" {
		cmd = cmd.MergeOutputFormat(req.MergeFormat)
	}

	y.logger.Debug("running yt-dlp", "url", req.SourceURL, "format", req.FormatSelector, "output", req.OutputTemplate)

	res, err := cmd.Run(ctx, req.SourceURL)
	if err != nil {
		return nil, runError(res, err)
	}

	info, err := parseInfo(res.Stdout)
	if err != nil {
		return nil, err
	}
	return info.extractResult(), nil
}

// runError attaches the tail of yt-dlp's stderr to a failed run.
func runError(res *ytdlp.Result, err error) error {
	if res == nil {
		return fmt.Errorf("yt-dlp: %w", err)
	}
	if msg := lastLine(res.Stderr); msg != "" {
		return fmt.Errorf("yt-dlp: %s: %w", msg, err)
	}
	return fmt.Errorf("yt-dlp: %w", err)
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

// infoJSON is the subset of yt-dlp's info dict this service reads.
type infoJSON struct {
	Title          string `json:"title"`
	Ext            string `json:"ext"`
	Thumbnail      string `json:"thumbnail"`
	DurationString string `json:"duration_string"`
	Filename       string `json:"_filename"`
	FilenameAlt    string `json:"filename"`
	Formats        []struct {
		FormatID   string `json:"format_id"`
		Ext        string `json:"ext"`
		VCodec     string `json:"vcodec"`
		ACodec     string `json:"acodec"`
		Resolution string `json:"resolution"`
	} `json:"formats"`
	RequestedDownloads []struct {
		FilePath string `json:"filepath"`
	} `json:"requested_downloads"`
}

func parseInfo(stdout string) (*infoJSON, error) {
	stdout = strings.TrimSpace(stdout)
	if stdout == "" {
		return nil, ErrEmptyOutput
	}
	// Anything yt-dlp logs to stdout precedes the JSON document.
	if i := strings.LastIndex(stdout, "\n{"); i >= 0 {
		stdout = stdout[i+1:]
	}

	var info infoJSON
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		return nil, fmt.Errorf("decode yt-dlp output: %w", err)
	}
	return &info, nil
}

func (i *infoJSON) metadata() *domain.ResolvedMetadata {
	m := &domain.ResolvedMetadata{
		Title:          i.Title,
		Extension:      i.Ext,
		Thumbnail:      i.Thumbnail,
		DurationString: i.DurationString,
		Formats:        make([]domain.FormatDescriptor, 0, len(i.Formats)),
	}
	for _, f := range i.Formats {
		m.Formats = append(m.Formats, domain.FormatDescriptor{
			FormatID:   f.FormatID,
			Ext:        f.Ext,
			VCodec:     f.VCodec,
			ACodec:     f.ACodec,
			Resolution: f.Resolution,
		})
	}
	return m
}

func (i *infoJSON) extractResult() *ExtractResult {
	r := &ExtractResult{
		Filename: i.Filename,
		Ext:      i.Ext,
	}
	if r.Filename == "" {
		r.Filename = i.FilenameAlt
	}
	for _, d := range i.RequestedDownloads {
		if d.FilePath != "" {
			r.RequestedDownloads = append(r.RequestedDownloads, RequestedDownload{FilePath: d.FilePath})
		}
	}
	return r
}
