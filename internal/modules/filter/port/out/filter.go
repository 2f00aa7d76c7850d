package out

import (
	"context"

	"watchtime/internal/modules/filter/domain"
)

type ManifestStore interface {
	Load(ctx context.Context) ([]domain.Manifest, error)
}

// Host runs detector plugins.
type Host interface {
	CheckLifecycle(ctx context.Context, manifest domain.Manifest) error
	GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error)
	DetectLanguage(ctx context.Context, manifest domain.Manifest, text string) (domain.Detection, error)
}
