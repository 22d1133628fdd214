package source

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/fill-pattern-engine/internal/core/domain"
	"github.com/kirillkom/fill-pattern-engine/internal/core/ports"
)

// Resolver dispatches document loading to a concrete source by file
// extension. It implements ports.SnapshotSource itself so callers stay
// agnostic of the on-disk format.
type Resolver struct {
	json ports.SnapshotSource
	xlsx ports.SnapshotSource
}

func NewResolver(json, xlsx ports.SnapshotSource) *Resolver {
	return &Resolver{json: json, xlsx: xlsx}
}

func (r *Resolver) LoadDocument(ctx context.Context, path string) (*domain.DocumentSnapshot, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if r.json == nil {
			return nil, domain.WrapError(domain.ErrInvalidConfig, "resolve document source",
				fmt.Errorf("no JSON snapshot source configured"))
		}
		return r.json.LoadDocument(ctx, path)
	case ".xlsx", ".xlsm":
		if r.xlsx == nil {
			return nil, domain.WrapError(domain.ErrInvalidConfig, "resolve document source",
				fmt.Errorf("no workbook source configured"))
		}
		return r.xlsx.LoadDocument(ctx, path)
	default:
		return nil, domain.WrapError(domain.ErrInvalidInput, "resolve document source",
			fmt.Errorf("unsupported document extension %q", filepath.Ext(path)))
	}
}
