package archive

import (
	"archive/tar"
	"crypto/md5" // #nosec G501 - corruption detection only
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Mismatch describes one entry that failed verification.
type Mismatch struct {
	Path   string
	Reason string
}

// VerifyResult reports the outcome of checking an archive against its
// embedded checksum manifest.
type VerifyResult struct {
	Entries    int
	Mismatches []Mismatch
}

// OK reports whether every entry verified cleanly.
func (r *VerifyResult) OK() bool {
	return len(r.Mismatches) == 0
}

// Verify decompresses every entry of the archive at path, recomputes its
// MD5 and compares against the embedded checksum.json. It never writes
// to disk.
func Verify(path string) (*VerifyResult, error) {
	file, err := os.Open(path) // #nosec G304 - controlled archive path
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to open compressed stream: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)

	computed := make(map[string]string)
	var manifest *checksumManifest

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		if header.Name == ChecksumEntry {
			var m checksumManifest
			if err := json.NewDecoder(tr).Decode(&m); err != nil {
				return nil, fmt.Errorf("failed to decode checksum manifest: %w", err)
			}
			manifest = &m
			continue
		}

		hash := md5.New() // #nosec G401 - corruption detection only
		if _, err := io.Copy(hash, tr); err != nil {
			return nil, fmt.Errorf("failed to read entry %s: %w", header.Name, err)
		}
		computed[header.Name] = hex.EncodeToString(hash.Sum(nil))
	}

	if manifest == nil {
		return nil, fmt.Errorf("archive has no %s entry", ChecksumEntry)
	}

	result := &VerifyResult{Entries: len(computed)}
	for path, want := range manifest.Checksums {
		got, ok := computed[path]
		switch {
		case !ok:
			result.Mismatches = append(result.Mismatches, Mismatch{Path: path, Reason: "missing from archive"})
		case got != want:
			result.Mismatches = append(result.Mismatches, Mismatch{Path: path, Reason: fmt.Sprintf("checksum mismatch: %s != %s", got, want)})
		}
	}
	for path := range computed {
		if _, ok := manifest.Checksums[path]; !ok {
			result.Mismatches = append(result.Mismatches, Mismatch{Path: path, Reason: "not listed in checksum manifest"})
		}
	}

	return result, nil
}
