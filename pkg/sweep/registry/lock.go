package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jamesainslie/optsweep/pkg/sweep/logging"
)

// ErrLocked is returned by OpenWait when another process still holds the
// registry when the context ends.
var ErrLocked = errors.New("registry is locked by another process")

// retryInterval is the delay between attempts to acquire a held registry.
const retryInterval = 50 * time.Millisecond

// isLocked reports whether err is Badger's directory lock conflict. Badger
// formats the cause into its message, so the text is all there is to match.
func isLocked(err error) bool {
	return err != nil && strings.Contains(err.Error(), "Another process is using this Badger database")
}

// OpenWait opens the registry, retrying while another process holds it
// until ctx is done.
func OpenWait(ctx context.Context, path string) (*Registry, error) {
	log := logging.Get("registry")
	for attempt := 1; ; attempt++ {
		r, err := Open(path)
		if err == nil {
			return r, nil
		}
		if !isLocked(err) {
			return nil, err
		}
		if attempt == 1 {
			log.Debug("registry busy, waiting", "path", path)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		case <-time.After(retryInterval):
		}
	}
}
