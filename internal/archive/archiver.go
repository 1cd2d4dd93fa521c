package archive

import (
	"archive/tar"
	"context"
	"crypto/md5" // #nosec G501 - checksums are for corruption detection, not authentication
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

// Options configures an Archiver.
type Options struct {
	// Source is the directory tree to archive. Must exist.
	Source string

	// WorkDir is where the in-progress archive temp file is created.
	// Keeping it on the destination filesystem makes the final rename
	// atomic.
	WorkDir string

	// Only restricts the archive to the given source-relative paths.
	// Empty means the whole tree. Listed paths that do not exist in the
	// source are reported in Summary.Skipped.
	Only []string
}

// SkippedFile records a file left out of the archive and why.
type SkippedFile struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Summary reports the outcome of one archive run.
type Summary struct {
	ArchivePath  string
	FileCount    int
	TotalBytes   int64
	ArchiveBytes int64
	Skipped      []SkippedFile
}

// Archiver writes a source directory tree into a single zstd-compressed
// tar archive. Entries are streamed, never fully buffered, so multi-GB
// model blobs pass through in constant memory.
type Archiver struct {
	source  string
	workDir string
	only    map[string]bool
	logger  *zap.Logger

	// exclude is the in-progress temp file, skipped during the walk in
	// case the work directory lies inside the source tree.
	exclude string
}

// New creates an Archiver. The source directory must exist and be a
// directory.
func New(opts Options, logger *zap.Logger) (*Archiver, error) {
	info, err := os.Stat(opts.Source)
	if err != nil {
		return nil, fmt.Errorf("source directory is not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path is not a directory: %s", opts.Source)
	}

	workDir := opts.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}

	var only map[string]bool
	if len(opts.Only) > 0 {
		only = make(map[string]bool, len(opts.Only))
		for _, p := range opts.Only {
			only[filepath.ToSlash(p)] = true
		}
	}

	return &Archiver{
		source:  opts.Source,
		workDir: workDir,
		only:    only,
		logger:  logger,
	}, nil
}

// Create walks the source tree once and writes every regular file into a
// compressed archive in the work directory. Individual unreadable files
// are skipped and reported in the summary; failure to write the archive
// itself aborts and removes the temp file. The returned summary's
// ArchivePath points at the finished temp file, which the caller owns.
func (a *Archiver) Create(ctx context.Context) (*Summary, error) {
	tempFile, err := os.CreateTemp(a.workDir, "omback-*"+Extension)
	if err != nil {
		return nil, fmt.Errorf("failed to create archive file: %w", err)
	}
	a.exclude = tempFile.Name()

	summary, err := a.write(ctx, tempFile)
	if err != nil {
		if closeErr := tempFile.Close(); closeErr != nil {
			a.logger.Warn("failed to close archive temp file", zap.Error(closeErr))
		}
		if removeErr := os.Remove(tempFile.Name()); removeErr != nil {
			a.logger.Warn("failed to remove archive temp file", zap.Error(removeErr))
		}
		return nil, err
	}

	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempFile.Name())
		return nil, fmt.Errorf("failed to sync archive file: %w", err)
	}
	stat, err := tempFile.Stat()
	if err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tempFile.Name())
		return nil, fmt.Errorf("failed to stat archive file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tempFile.Name())
		return nil, fmt.Errorf("failed to close archive file: %w", err)
	}

	summary.ArchivePath = tempFile.Name()
	summary.ArchiveBytes = stat.Size()
	return summary, nil
}

func (a *Archiver) write(ctx context.Context, out io.Writer) (*Summary, error) {
	// SpeedBestCompression is zstd's strongest ratio-oriented level;
	// weight files are written once and read rarely, so size wins over
	// encode speed here.
	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to create compressor: %w", err)
	}
	tw := tar.NewWriter(zw)

	summary := &Summary{}
	checksums := make(map[string]string)
	var matched map[string]bool
	if a.only != nil {
		matched = make(map[string]bool, len(a.only))
	}

	walkErr := filepath.WalkDir(a.source, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == a.source {
				return fmt.Errorf("failed to read source directory: %w", err)
			}
			a.skip(summary, path, fmt.Sprintf("not readable: %v", err))
			return nil
		}
		if d.IsDir() {
			// Empty directories are not represented in the archive.
			return nil
		}
		if path == a.exclude {
			return nil
		}

		rel, relErr := filepath.Rel(a.source, path)
		if relErr != nil {
			return fmt.Errorf("failed to relativize %s: %w", path, relErr)
		}
		rel = filepath.ToSlash(rel)

		if a.only != nil {
			if !a.only[rel] {
				return nil
			}
			matched[rel] = true
		}
		if rel == ChecksumEntry {
			// The manifest entry name is reserved; archiving a source
			// file under it would corrupt verification.
			a.skip(summary, rel, "name reserved for the checksum manifest")
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			// Symlinks are skipped rather than followed; ollama stores
			// hard data under blobs/, and following links risks cycles.
			a.skip(summary, rel, "symlink")
			return nil
		}
		if !d.Type().IsRegular() {
			a.skip(summary, rel, "not a regular file")
			return nil
		}

		return a.addFile(tw, path, rel, summary, checksums)
	})
	if walkErr != nil {
		_ = tw.Close()
		_ = zw.Close()
		return nil, walkErr
	}

	// Requested paths the walk never reached do not exist in the source.
	// A blob listed in a manifest but absent on disk lands here; report
	// it instead of dropping it silently.
	if a.only != nil {
		var missing []string
		for p := range a.only {
			if !matched[p] {
				missing = append(missing, p)
			}
		}
		sort.Strings(missing)
		for _, p := range missing {
			a.skip(summary, p, "missing from source")
		}
	}

	if err := writeChecksums(tw, checksums); err != nil {
		_ = tw.Close()
		_ = zw.Close()
		return nil, err
	}

	if err := tw.Close(); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize compression: %w", err)
	}

	return summary, nil
}

func (a *Archiver) addFile(tw *tar.Writer, path, rel string, summary *Summary, checksums map[string]string) error {
	file, err := os.Open(path) // #nosec G304 - path comes from walking the source directory
	if err != nil {
		// A file that vanished or became unreadable between discovery
		// and open is skipped, not fatal.
		a.skip(summary, rel, fmt.Sprintf("open failed: %v", err))
		return nil
	}
	defer func() {
		if err := file.Close(); err != nil {
			a.logger.Warn("failed to close source file", zap.String("path", rel), zap.Error(err))
		}
	}()

	info, err := file.Stat()
	if err != nil {
		a.skip(summary, rel, fmt.Sprintf("stat failed: %v", err))
		return nil
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		a.skip(summary, rel, fmt.Sprintf("header failed: %v", err))
		return nil
	}
	header.Name = rel

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write archive header for %s: %w", rel, err)
	}

	hash := md5.New() // #nosec G401 - corruption detection only
	n, err := io.Copy(tw, io.TeeReader(file, hash))
	if err != nil {
		// Once the header is written the entry cannot be unwritten; a
		// read failure mid-stream corrupts the archive and must abort.
		return fmt.Errorf("failed to archive %s: %w", rel, err)
	}

	checksums[rel] = hex.EncodeToString(hash.Sum(nil))
	summary.FileCount++
	summary.TotalBytes += n
	return nil
}

func (a *Archiver) skip(summary *Summary, path, reason string) {
	a.logger.Warn("skipping file", zap.String("path", path), zap.String("reason", reason))
	summary.Skipped = append(summary.Skipped, SkippedFile{Path: path, Reason: reason})
}

func writeChecksums(tw *tar.Writer, checksums map[string]string) error {
	data, err := json.MarshalIndent(checksumManifest{Checksums: checksums}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal checksums: %w", err)
	}

	header := &tar.Header{
		Name:    ChecksumEntry,
		Mode:    0644,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write checksum header: %w", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write checksums: %w", err)
	}

	return nil
}
