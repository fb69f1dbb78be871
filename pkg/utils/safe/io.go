package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/secmon-lab/osnit/pkg/utils/logging"
)

// maxDrain bounds how much of an unread response body is discarded before closing
const maxDrain = 64 << 10

// Close closes an io.Closer and logs any error. A nil closer is ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Warn("Failed to close", slog.Any("error", err))
	}
}

// CloseBody discards a bounded remainder of an HTTP response body and closes it,
// so the transport can reuse the connection.
func CloseBody(ctx context.Context, body io.ReadCloser) {
	if body == nil {
		return
	}
	if _, err := io.Copy(io.Discard, io.LimitReader(body, maxDrain)); err != nil {
		logging.From(ctx).Debug("Failed to drain body", slog.Any("error", err))
	}
	Close(ctx, body)
}

// Write writes data to w and logs any error, for response writers whose
// failures cannot be reported to the peer anymore.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.From(ctx).Warn("Failed to write response", slog.Any("error", err), slog.Int("bytes", len(data)))
	}
}
