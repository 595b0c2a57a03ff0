package ingest

import (
	"context"
	"errors"

	"github.com/AngelCh415/mkt-kpi/internal/utils"
)

// FetchWithRetry downloads url, retrying transport failures and retryable
// statuses within the bounds of b.
func FetchWithRetry(ctx context.Context, c HTTPClient, url string, maxBytes int64, b utils.Backoff) ([]byte, error) {
	var body []byte
	err := b.Do(ctx, func(int) error {
		var err error
		body, err = getBytes(ctx, c, url, maxBytes)
		var se *StatusError
		switch {
		case err == nil:
			return nil
		case errors.Is(err, ErrEmptyURL), errors.Is(err, ErrTooLarge):
			return utils.Permanent(err)
		case errors.As(err, &se) && !se.Retryable():
			return utils.Permanent(err)
		}
		return err
	})
	return body, err
}
