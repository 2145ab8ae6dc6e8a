package inject

import (
	"context"

	"go.viam.com/localnav/components/lidar"
)

// Lidar is an injected lidar.
type Lidar struct {
	lidar.Lidar
	NextScanFunc func(ctx context.Context) (*lidar.Scan, error)
}

// NextScan calls the injected NextScan or the real version.
func (l *Lidar) NextScan(ctx context.Context) (*lidar.Scan, error) {
	if l.NextScanFunc == nil {
		if l.Lidar == nil {
			return nil, errUnimplemented("NextScan")
		}
		return l.Lidar.NextScan(ctx)
	}
	return l.NextScanFunc(ctx)
}
