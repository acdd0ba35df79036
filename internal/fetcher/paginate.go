package fetcher

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/traffic-cli/internal/model"
)

// Defaults match the public traffic tracker endpoint.
const (
	DefaultPageSize  = 500
	DefaultMaxOffset = 900
	DefaultPageDelay = time.Second
)

// StopReason records why pagination ended.
type StopReason string

const (
	StopEmptyPage     StopReason = "empty_page"
	StopOffsetCeiling StopReason = "offset_ceiling"
	StopRequestFailed StopReason = "request_failed"
	StopCancelled     StopReason = "cancelled"
)

// PageOptions configures a paginated fetch.
type PageOptions struct {
	URL      string
	PageSize int
	// MaxOffset is the largest offset that may be requested. 0 limits the
	// fetch to the first page; a negative value selects DefaultMaxOffset.
	MaxOffset int
	// PageDelay is the minimum spacing between page requests. Zero disables
	// pacing.
	PageDelay time.Duration
	// OnPage is called after each non-empty page with the page's offset and
	// record count.
	OnPage func(offset, n int)
}

// PageResult is the outcome of a paginated fetch. Table always holds every
// record from the pages that succeeded, in fetch order.
type PageResult struct {
	Table *model.Table
	Pages int
	Stop  StopReason
	// Err is set when Stop is StopRequestFailed or StopCancelled.
	Err error
}

// PageURL builds the request URL for one page, preserving any query
// parameters already on base.
func PageURL(base string, limit, offset int) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: parse url %q", base)
	}
	q := u.Query()
	q.Set("$limit", strconv.Itoa(limit))
	q.Set("$offset", strconv.Itoa(offset))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Paginate requests pages of opts.PageSize starting at offset 0 until a page
// comes back empty, the next offset would pass opts.MaxOffset, or a request
// fails. A failure is logged and ends pagination; records already fetched
// are kept. There is no retry here: a fetcher that retries internally is
// reduced to a single attempt per page.
func Paginate(ctx context.Context, f Fetcher, opts PageOptions) *PageResult {
	if s, ok := f.(singleAttempter); ok {
		f = s.SingleAttempt()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxOffset < 0 {
		opts.MaxOffset = DefaultMaxOffset
	}
	log := zap.L().With(zap.String("url", opts.URL), zap.Int("page_size", opts.PageSize))

	lim := rate.NewLimiter(rate.Inf, 1)
	if opts.PageDelay > 0 {
		lim = rate.NewLimiter(rate.Every(opts.PageDelay), 1)
	}

	res := &PageResult{Table: model.NewTable()}
	offset := 0
	for {
		if offset > opts.MaxOffset {
			res.Stop = StopOffsetCeiling
			break
		}
		if err := lim.Wait(ctx); err != nil {
			res.Stop, res.Err = StopCancelled, err
			break
		}

		log.Info("fetching records", zap.Int("from", offset), zap.Int("to", offset+opts.PageSize))

		recs, err := fetchPage(ctx, f, opts.URL, opts.PageSize, offset)
		if err != nil {
			if ctx.Err() != nil {
				res.Stop, res.Err = StopCancelled, ctx.Err()
				break
			}
			log.Error("page request failed, keeping partial results",
				zap.Int("offset", offset),
				zap.Int("records", res.Table.Len()),
				zap.Error(err),
			)
			res.Stop, res.Err = StopRequestFailed, err
			break
		}
		if len(recs) == 0 {
			res.Stop = StopEmptyPage
			break
		}

		res.Table.Append(recs...)
		res.Pages++
		if opts.OnPage != nil {
			opts.OnPage(offset, len(recs))
		}

		offset += opts.PageSize
	}

	log.Info("pagination finished",
		zap.String("stop", string(res.Stop)),
		zap.Int("pages", res.Pages),
		zap.Int("records", res.Table.Len()),
	)
	return res
}

// FetchOnce downloads rawURL once without pagination parameters. Any non-200
// response is returned as an error.
func FetchOnce(ctx context.Context, f Fetcher, rawURL string) (*model.Table, error) {
	body, err := f.Download(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: fetch once")
	}
	defer body.Close() //nolint:errcheck

	recs, err := ReadRecords(ctx, body)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: decode response")
	}
	return model.NewTableFromRecords(recs), nil
}

func fetchPage(ctx context.Context, f Fetcher, base string, limit, offset int) ([]model.Record, error) {
	pageURL, err := PageURL(base, limit, offset)
	if err != nil {
		return nil, err
	}
	body, err := f.Download(ctx, pageURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: page at offset %d", offset)
	}
	defer body.Close() //nolint:errcheck

	recs, err := ReadRecords(ctx, body)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: decode page at offset %d", offset)
	}
	return recs, nil
}
