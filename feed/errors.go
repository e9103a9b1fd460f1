package feed

import "errors"

// ErrFeedClosed is returned by Subscribe once Shutdown has run.
var ErrFeedClosed = errors.New("feed: shut down")
