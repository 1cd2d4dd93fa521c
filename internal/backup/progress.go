package backup

import (
	"fmt"
	"io"
	"time"

	"github.com/cheggaaa/pb/v3"
)

// ProgressReader wraps an io.Reader with a byte progress bar, used
// while streaming a finished archive into the storage backend.
type ProgressReader struct {
	reader io.Reader
	bar    *pb.ProgressBar
}

// NewProgressReader creates a progress reader for size bytes.
func NewProgressReader(r io.Reader, size int64, description string) *ProgressReader {
	bar := newBar(size, description)

	return &ProgressReader{
		reader: bar.NewProxyReader(r),
		bar:    bar,
	}
}

// Read implements io.Reader.
func (pr *ProgressReader) Read(p []byte) (n int, err error) {
	return pr.reader.Read(p)
}

// Close finishes the progress bar.
func (pr *ProgressReader) Close() error {
	pr.bar.Finish()
	return nil
}

// ProgressWriter wraps an io.Writer with a byte progress bar, used
// while fetching a stored archive for verification.
type ProgressWriter struct {
	writer io.Writer
	bar    *pb.ProgressBar
}

// NewProgressWriter creates a progress writer for size bytes.
func NewProgressWriter(w io.Writer, size int64, description string) *ProgressWriter {
	bar := newBar(size, description)

	return &ProgressWriter{
		writer: bar.NewProxyWriter(w),
		bar:    bar,
	}
}

// Write implements io.Writer.
func (pw *ProgressWriter) Write(p []byte) (n int, err error) {
	return pw.writer.Write(p)
}

// Close finishes the progress bar.
func (pw *ProgressWriter) Close() error {
	pw.bar.Finish()
	return nil
}

func newBar(size int64, description string) *pb.ProgressBar {
	tmpl := fmt.Sprintf(`{{ "%s" }} {{ bar . "[" "=" ">" " " "]"}} {{speed . }} {{percent . }} {{rtime . " ETA"}}`, description)

	bar := pb.New64(size)
	bar.Set(pb.SIBytesPrefix, true)
	bar.SetTemplateString(tmpl)
	bar.SetRefreshRate(100 * time.Millisecond)
	bar.Start()
	return bar
}

// IndeterminateProgress shows a spinner for operations without a known
// size, like the compression pass itself.
type IndeterminateProgress struct {
	spinner *pb.ProgressBar
}

// NewIndeterminateProgress starts a spinner with the given description.
func NewIndeterminateProgress(description string) *IndeterminateProgress {
	tmpl := fmt.Sprintf(`{{ "%s" }} {{ cycle . "⠋" "⠙" "⠹" "⠸" "⠼" "⠴" "⠦" "⠧" "⠇" "⠏" }}`, description)

	spinner := pb.New(0)
	spinner.SetTemplateString(tmpl)
	spinner.SetRefreshRate(100 * time.Millisecond)
	spinner.Start()

	return &IndeterminateProgress{
		spinner: spinner,
	}
}

// Stop stops the spinner.
func (ip *IndeterminateProgress) Stop() {
	ip.spinner.Finish()
}
