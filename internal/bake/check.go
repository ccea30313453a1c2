package bake

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-meshlet/pkg/formats"
	"github.com/Faultbox/midgard-meshlet/pkg/meshlet"
)

// Check verifies a baked meshlet file against the mesh it was built from.
// The source is prepared the same way Bake prepared it, using the limits
// recorded in the file.
func (b *Baker) Check(mshlPath, source string) (*formats.MSHL, error) {
	m, err := formats.OpenMSHL(mshlPath)
	if err != nil {
		return nil, err
	}

	mesh, err := formats.ParseOBJFile(source)
	if err != nil {
		return nil, err
	}

	prepared, err := b.prepare(mesh, m.Remapped)
	if err != nil {
		return nil, err
	}

	if len(m.Positions) != len(prepared.Positions) {
		return nil, fmt.Errorf("%s holds %d vertices, source prepares to %d",
			mshlPath, len(m.Positions)/3, len(prepared.Positions)/3)
	}

	if err := meshlet.Verify(m.Result, prepared.Indices, m.Options()); err != nil {
		return nil, err
	}

	b.log.Info("meshlet file verified",
		zap.String("file", mshlPath),
		zap.Stringer("build_id", m.BuildID),
		zap.Int("clusters", len(m.Result.Clusters)))
	return m, nil
}
