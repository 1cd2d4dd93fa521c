package backup

import (
	"go.uber.org/zap"

	"github.com/omback/omback/internal/config"
	"github.com/omback/omback/internal/storage"
)

// DefaultName is the backup name used when neither --name nor --model
// is given.
const DefaultName = "models"

// Client orchestrates archive creation and storage.
type Client struct {
	cfg     *config.Config
	storage storage.Backend
	logger  *zap.Logger
	quiet   bool
}

// NewClient creates a backup client around a storage backend.
func NewClient(cfg *config.Config, backend storage.Backend, logger *zap.Logger) *Client {
	return &Client{
		cfg:     cfg,
		storage: backend,
		logger:  logger,
	}
}

// SetQuiet disables progress bars and summary output.
func (c *Client) SetQuiet(quiet bool) {
	c.quiet = quiet
}
