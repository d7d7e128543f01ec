package preview

import (
	"fmt"

	"github.com/anime-shed/plant-classifier-go/internal/config"
)

// Backend names a preview storage implementation.
type Backend string

const (
	// MemoryBackend keeps previews in process memory
	MemoryBackend Backend = config.PreviewBackendMemory
	// AzureBackend keeps previews in an Azure blob container
	AzureBackend Backend = config.PreviewBackendAzure
)

// NewStore creates the preview store selected by cfg.
func NewStore(cfg *config.Config) (Store, error) {
	switch Backend(cfg.PreviewBackend) {
	case MemoryBackend, "":
		return NewMemoryStore(), nil
	case AzureBackend:
		return NewAzureStore(cfg.AzureAccountName, cfg.AzureAccountKey, cfg.AzureContainer)
	default:
		return nil, fmt.Errorf("unsupported preview backend: %s", cfg.PreviewBackend)
	}
}
