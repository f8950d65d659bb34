package downloader

import (
	"context"

	"github.com/iconidentify/toolkit/internal/domain"
)

// MetadataResolver looks up a source URL without downloading it.
type MetadataResolver interface {
	// Resolve returns the title, extension and stream variants for url.
	Resolve(ctx context.Context, url string) (*domain.ResolvedMetadata, error)
}

// Extractor downloads a source URL into a local file.
type Extractor interface {
	// Extract downloads req.SourceURL using req.OutputTemplate and reports
	// where the output landed. The call blocks until the transfer (and any
	// merge) finishes or ctx is done.
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResult, error)
}

// ExtractRequest describes one extraction.
type ExtractRequest struct {
	SourceURL      string
	FormatSelector string
	// OutputTemplate is an absolute path ending in ".%(ext)s".
	OutputTemplate string
	// MergeFormat is the container used when separate streams are muxed.
	MergeFormat string
}

// ExtractResult is what the extractor reports after a successful run.
type ExtractResult struct {
	// RequestedDownloads lists final output files, most authoritative first.
	RequestedDownloads []RequestedDownload
	// Filename is the path the extractor prepared before post-processing.
	Filename string
	// Ext is the extension of the selected format, without the dot.
	Ext string
}

// RequestedDownload is one file the extractor wrote.
type RequestedDownload struct {
	FilePath string
}
