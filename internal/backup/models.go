package backup

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/omback/omback/internal/manifest"
)

// ListModels prints the models installed in the source model store.
func (c *Client) ListModels() error {
	models, err := manifest.List(c.cfg.ModelsDir)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}

	if len(models) == 0 {
		fmt.Printf("No models found in %s\n", c.cfg.ModelsDir)
		return nil
	}

	fmt.Printf("Models in %s:\n\n", c.cfg.ModelsDir)
	fmt.Printf("%-40s %-8s %s\n", "MODEL", "BLOBS", "SIZE")
	fmt.Printf("%-40s %-8s %s\n", strings.Repeat("-", 40), strings.Repeat("-", 8), strings.Repeat("-", 10))

	for _, model := range models {
		fmt.Printf("%-40s %-8d %s\n", model.Name, len(model.BlobPaths), humanize.Bytes(uint64(model.Size)))
	}

	return nil
}
