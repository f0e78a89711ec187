package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"dealsync/pkg/errutil"
	"dealsync/services/license"
)

// Source materializes the run's license records. Downloading from the
// marketplace lives outside this module; the default implementation reads a
// previously exported snapshot.
type Source interface {
	Licenses(ctx context.Context) ([]*license.License, error)
}

// FileSource reads a JSON snapshot export of licenses with transactions and
// resolved contacts embedded.
type FileSource struct {
	Path string
}

func (f *FileSource) Licenses(ctx context.Context) ([]*license.License, error) {
	if f.Path == "" {
		return nil, errutil.ConfigMissing("no license snapshot configured: set RECONCILE.SOURCE_PATH")
	}

	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read license snapshot %s: %w", f.Path, err)
	}

	var licenses []*license.License
	if err := json.Unmarshal(raw, &licenses); err != nil {
		return nil, fmt.Errorf("failed to decode license snapshot %s: %w", f.Path, err)
	}
	return licenses, nil
}

// StaticSource serves a fixed license list, mainly for tests.
type StaticSource []*license.License

func (s StaticSource) Licenses(ctx context.Context) ([]*license.License, error) {
	return s, nil
}
