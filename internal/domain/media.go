package domain

import (
	"path/filepath"
	"strings"
)

// ResolvedMetadata is what the metadata resolver reports for a source URL.
type ResolvedMetadata struct {
	Title          string
	Extension      string
	Thumbnail      string
	DurationString string
	Formats        []FormatDescriptor
}

// FormatDescriptor describes one stream variant offered by the source.
type FormatDescriptor struct {
	FormatID   string
	Ext        string
	VCodec     string
	ACodec     string
	Resolution string
}

// HasVideo reports whether the format carries a video stream.
func (f FormatDescriptor) HasVideo() bool {
	return f.VCodec != "" && f.VCodec != "none"
}

// HasAudio reports whether the format carries an audio stream.
func (f FormatDescriptor) HasAudio() bool {
	return f.ACodec != "" && f.ACodec != "none"
}

// IsSingleFileMP4 reports whether the format is a muxed MP4 needing no merge.
func (f FormatDescriptor) IsSingleFileMP4() bool {
	return f.HasVideo() && f.HasAudio() && f.Ext == "mp4"
}

// FirstSingleFileMP4 returns the first muxed MP4 format, if any.
func (m *ResolvedMetadata) FirstSingleFileMP4() (FormatDescriptor, bool) {
	for _, f := range m.Formats {
		if f.IsSingleFileMP4() {
			return f, true
		}
	}
	return FormatDescriptor{}, false
}

// StagedFile is a file written by the extractor into a job directory.
type StagedFile struct {
	Path      string
	SizeBytes int64
}

// Name returns the base name sent to the client.
func (f StagedFile) Name() string {
	return filepath.Base(f.Path)
}

// WithExtension returns path with its extension replaced by ext (".mp4").
func WithExtension(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
