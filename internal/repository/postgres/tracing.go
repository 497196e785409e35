package postgres

import (
	"context"

	"github.com/aws/aws-xray-sdk-go/xray"
)

// tracer wraps repository calls in X-Ray segments when enabled. Calls made
// outside a traced request open their own segment.
type tracer struct {
	enabled bool
}

func (t tracer) begin(ctx context.Context, name string) (context.Context, func(error)) {
	if !t.enabled {
		return ctx, func(error) {}
	}

	var seg *xray.Segment
	if xray.GetSegment(ctx) == nil {
		ctx, seg = xray.BeginSegment(ctx, name)
	} else {
		ctx, seg = xray.BeginSubsegment(ctx, name)
	}
	if seg == nil {
		return ctx, func(error) {}
	}
	return ctx, seg.Close
}
