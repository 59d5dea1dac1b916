package progress

import "errors"

// ErrWriterClosed is returned by writes to a closed JSONLWriter.
var ErrWriterClosed = errors.New("progress: writer is closed")
