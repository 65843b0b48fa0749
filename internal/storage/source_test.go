package storage

import (
	"context"

	"aadhaar/internal/core"
	"aadhaar/internal/loader"
)

type pipelineSource func(ctx context.Context, c core.Category) (core.Table, error)

func (f pipelineSource) Load(ctx context.Context, c core.Category) (core.Table, loader.Report, error) {
	t, err := f(ctx, c)
	return t, loader.Report{Category: c}, err
}
