package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

// =============================================================================
// Filename Tests
// =============================================================================

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain title", "Test Clip", "Test Clip"},
		{"colon and slash", "My: Video / Title", "My Video Title"},
		{"only dots", "...", "video"},
		{"only spaces", "    ", "video"},
		{"dots and spaces", " . . ", "video"},
		{"empty", "", "video"},
		{"all forbidden", `<>:"/\|?*`, "video"},
		{"tabs and newlines collapse", "a\t\tb\n\nc", "a b c"},
		{"leading and trailing dots", "..hidden title..", "hidden title"},
		{"question and star", "What? *Really*", "What Really"},
		{"unicode kept", "Café – Überblick", "Café – Überblick"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.input); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	long := strings.Repeat("ab", 150)
	got := SanitizeFilename(long)
	if utf8.RuneCountInString(got) != MaxFilenameLength {
		t.Errorf("length = %d, want %d", utf8.RuneCountInString(got), MaxFilenameLength)
	}

	multibyte := strings.Repeat("日本", 150)
	got = SanitizeFilename(multibyte)
	if !utf8.ValidString(got) {
		t.Error("truncation split a UTF-8 sequence")
	}
	if utf8.RuneCountInString(got) != MaxFilenameLength {
		t.Errorf("length = %d, want %d", utf8.RuneCountInString(got), MaxFilenameLength)
	}
}

func TestSanitizeFilename_NeverEmitsForbiddenCharacters(t *testing.T) {
	inputs := []string{
		`a<b>c:d"e/f\g|h?i*j`,
		strings.Repeat(`<>`, 300) + "x",
		"  ./\\..  ",
		"invalid \xff utf8 ?",
	}

	for _, in := range inputs {
		got := SanitizeFilename(in)
		if strings.ContainsAny(got, `<>:"/\|?*`) {
			t.Errorf("SanitizeFilename(%q) = %q contains forbidden characters", in, got)
		}
		if utf8.RuneCountInString(got) > MaxFilenameLength {
			t.Errorf("SanitizeFilename(%q) too long: %d", in, utf8.RuneCountInString(got))
		}
		if got == "" {
			t.Errorf("SanitizeFilename(%q) returned empty string", in)
		}
	}
}

// =============================================================================
// Request Tests
// =============================================================================

func TestDownloadRequest_Normalize(t *testing.T) {
	req := DownloadRequest{SourceURL: "https://example.com/v"}.Normalize()
	if req.FormatSelector != SelectorDefault {
		t.Errorf("FormatSelector = %q, want %q", req.FormatSelector, SelectorDefault)
	}

	req = DownloadRequest{SourceURL: "u", FormatSelector: "22"}.Normalize()
	if req.FormatSelector != "22" {
		t.Errorf("FormatSelector = %q, want 22", req.FormatSelector)
	}
}

func TestDownloadRequest_Validate(t *testing.T) {
	if err := (DownloadRequest{}).Validate(); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Validate() = %v, want ErrInvalidRequest", err)
	}
	if err := (DownloadRequest{SourceURL: "https://example.com/v"}).Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}
}

func TestDownloadRequest_IsMerge(t *testing.T) {
	if !(DownloadRequest{FormatSelector: SelectorMerge}).IsMerge() {
		t.Error("merge selector should report IsMerge")
	}
	if (DownloadRequest{FormatSelector: SelectorAudio}).IsMerge() {
		t.Error("audio selector should not report IsMerge")
	}
}

// =============================================================================
// Job Tests
// =============================================================================

func TestJob_Lifecycle(t *testing.T) {
	job := NewJob("job-1", DownloadRequest{SourceURL: "u", FormatSelector: "best"})
	if job.Status != JobStatusQueued {
		t.Fatalf("Status = %q, want queued", job.Status)
	}

	job.MarkResolving()
	if job.Status != JobStatusResolving {
		t.Errorf("Status = %q, want resolving", job.Status)
	}

	job.MarkDownloading("Test Clip")
	if job.Title != "Test Clip" || job.Status != JobStatusDownloading {
		t.Errorf("unexpected job after MarkDownloading: %+v", job)
	}

	job.MarkStreaming(StagedFile{Path: "/work/job-1/Test Clip.mp4", SizeBytes: 42})
	if job.Filename != "Test Clip.mp4" || job.SizeBytes != 42 {
		t.Errorf("unexpected job after MarkStreaming: %+v", job)
	}
	if job.Status.IsFinished() {
		t.Error("streaming job should not be finished")
	}

	job.MarkCompleted()
	if !job.Status.IsFinished() {
		t.Error("completed job should be finished")
	}
}

func TestJob_MarkFailed(t *testing.T) {
	job := NewJob("job-2", DownloadRequest{SourceURL: "u"})
	job.MarkFailed("boom")
	if job.Status != JobStatusFailed || job.Error != "boom" {
		t.Errorf("unexpected job after MarkFailed: %+v", job)
	}
}

// =============================================================================
// Media Tests
// =============================================================================

func TestFormatDescriptor_IsSingleFileMP4(t *testing.T) {
	tests := []struct {
		name string
		f    FormatDescriptor
		want bool
	}{
		{"muxed mp4", FormatDescriptor{VCodec: "avc1", ACodec: "mp4a", Ext: "mp4"}, true},
		{"video only", FormatDescriptor{VCodec: "avc1", ACodec: "none", Ext: "mp4"}, false},
		{"audio only", FormatDescriptor{VCodec: "none", ACodec: "opus", Ext: "webm"}, false},
		{"muxed webm", FormatDescriptor{VCodec: "vp9", ACodec: "opus", Ext: "webm"}, false},
		{"unknown codecs", FormatDescriptor{Ext: "mp4"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.IsSingleFileMP4(); got != tt.want {
				t.Errorf("IsSingleFileMP4() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolvedMetadata_FirstSingleFileMP4(t *testing.T) {
	meta := &ResolvedMetadata{Formats: []FormatDescriptor{
		{FormatID: "140", VCodec: "none", ACodec: "mp4a", Ext: "m4a"},
		{FormatID: "18", VCodec: "avc1", ACodec: "mp4a", Ext: "mp4"},
		{FormatID: "22", VCodec: "avc1", ACodec: "mp4a", Ext: "mp4"},
	}}

	f, ok := meta.FirstSingleFileMP4()
	if !ok || f.FormatID != "18" {
		t.Errorf("FirstSingleFileMP4() = %+v, %v; want format 18", f, ok)
	}

	if _, ok := (&ResolvedMetadata{}).FirstSingleFileMP4(); ok {
		t.Error("empty metadata should have no single-file MP4")
	}
}

func TestWithExtension(t *testing.T) {
	tests := []struct {
		path, ext, want string
	}{
		{"/w/Test Clip.webm", ".mp4", "/w/Test Clip.mp4"},
		{"/w/Test Clip.mkv", ".mp4", "/w/Test Clip.mp4"},
		{"/w/noext", ".mp4", "/w/noext.mp4"},
		{"/w/a.b.c.webm", ".mp4", "/w/a.b.c.mp4"},
	}
	for _, tt := range tests {
		if got := WithExtension(tt.path, tt.ext); got != tt.want {
			t.Errorf("WithExtension(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

// =============================================================================
// Error Tests
// =============================================================================

func TestJobError(t *testing.T) {
	cause := fmt.Errorf("HTTP Error 403: Forbidden")
	err := NewJobError("job-9", "download", ErrUpstreamExtraction, cause)

	if !errors.Is(err, ErrUpstreamExtraction) {
		t.Error("errors.Is should match the kind")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is should match the cause")
	}

	want := "download [job-9]: upstream extraction failed: HTTP Error 403: Forbidden"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if got := Detail(err); got != "upstream extraction failed: HTTP Error 403: Forbidden" {
		t.Errorf("Detail() = %q", got)
	}
}

func TestJobError_NoCause(t *testing.T) {
	err := NewJobError("", "validate", ErrInvalidRequest, nil)
	if err.Error() != "validate: invalid request" {
		t.Errorf("Error() = %q", err.Error())
	}
	if Detail(err) != "invalid request" {
		t.Errorf("Detail() = %q", Detail(err))
	}
	if Detail(errors.New("plain")) != "plain" {
		t.Error("Detail should pass plain errors through")
	}
}
