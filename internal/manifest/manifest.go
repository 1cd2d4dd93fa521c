package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ErrModelNotFound is returned when no manifest exists for a model reference.
var ErrModelNotFound = errors.New("model not found")

// Manifest is the subset of an ollama model manifest we care about: the
// digests that point at blobs under blobs/.
type Manifest struct {
	Config struct {
		Digest string `json:"digest"`
	} `json:"config"`
	Layers []struct {
		Digest    string `json:"digest"`
		MediaType string `json:"mediaType"`
		Size      int64  `json:"size"`
	} `json:"layers"`
}

// Model describes one installed model found under the manifests tree.
type Model struct {
	Name         string // e.g. "deepseek-r1:1.5b"
	ManifestPath string // relative to the models directory
	BlobPaths    []string
	Size         int64
}

// Digests returns every blob digest referenced by the manifest, in the
// on-disk form (":" replaced by "-").
func (m *Manifest) Digests() []string {
	var digests []string
	if m.Config.Digest != "" {
		digests = append(digests, blobName(m.Config.Digest))
	}
	for _, layer := range m.Layers {
		if layer.Digest != "" {
			digests = append(digests, blobName(layer.Digest))
		}
	}
	return digests
}

func blobName(digest string) string {
	return strings.ReplaceAll(digest, ":", "-")
}

// parseFile reads and decodes a single manifest file.
func parseFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from walking the models directory
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest %s: %w", path, err)
	}

	return &m, nil
}

// Resolve returns the relative paths (manifest plus blobs) making up a
// single model. The reference uses ollama's name:tag form; the tag
// defaults to "latest".
func Resolve(modelsDir, ref string) (*Model, error) {
	name, tag := splitRef(ref)

	// Models live under manifests/<registry>/<namespace>/<model>/<tag>.
	// Search all registries and namespaces for the named model.
	var manifestPath string
	manifestRoot := filepath.Join(modelsDir, "manifests")
	err := filepath.WalkDir(manifestRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		dir := filepath.Dir(path)
		if filepath.Base(dir) == name && d.Name() == tag {
			manifestPath = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan manifests: %w", err)
	}
	if manifestPath == "" {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, ref)
	}

	return modelFromManifest(modelsDir, manifestPath, ref)
}

// List scans the manifests tree and returns every installed model.
// Unreadable or malformed manifests are skipped.
func List(modelsDir string) ([]Model, error) {
	manifestRoot := filepath.Join(modelsDir, "manifests")
	if _, err := os.Stat(manifestRoot); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat manifests directory: %w", err)
	}

	var models []Model
	err := filepath.WalkDir(manifestRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		name := filepath.Base(filepath.Dir(path))
		ref := fmt.Sprintf("%s:%s", name, d.Name())
		model, err := modelFromManifest(modelsDir, path, ref)
		if err != nil {
			return nil
		}
		models = append(models, *model)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan manifests: %w", err)
	}

	return models, nil
}

func modelFromManifest(modelsDir, manifestPath, ref string) (*Model, error) {
	m, err := parseFile(manifestPath)
	if err != nil {
		return nil, err
	}

	relManifest, err := filepath.Rel(modelsDir, manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to relativize manifest path: %w", err)
	}

	model := &Model{
		Name:         ref,
		ManifestPath: relManifest,
	}

	if info, err := os.Stat(manifestPath); err == nil {
		model.Size += info.Size()
	}

	for _, digest := range m.Digests() {
		rel := filepath.Join("blobs", digest)
		model.BlobPaths = append(model.BlobPaths, rel)
		if info, err := os.Stat(filepath.Join(modelsDir, rel)); err == nil {
			model.Size += info.Size()
		}
	}

	return model, nil
}

// Paths returns every relative path belonging to the model, manifest first.
func (m *Model) Paths() []string {
	paths := make([]string, 0, len(m.BlobPaths)+1)
	paths = append(paths, m.ManifestPath)
	paths = append(paths, m.BlobPaths...)
	return paths
}

func splitRef(ref string) (name, tag string) {
	if idx := strings.LastIndex(ref, ":"); idx >= 0 {
		return ref[:idx], ref[idx+1:]
	}
	return ref, "latest"
}
