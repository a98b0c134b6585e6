//go:build !linux

package daemon

import (
	"context"
	"fmt"
	"time"
)

// openDS3232 is only available where i2c-dev exists.
func openDS3232(context.Context, string, time.Duration) (*hardware, error) {
	return nil, fmt.Errorf("%w: ds3232 needs linux i2c-dev", errUnsupportedRTC)
}
