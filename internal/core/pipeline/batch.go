package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/guiyumin/streamscribe/internal/core/errs"
	"github.com/guiyumin/streamscribe/internal/core/extractor"
)

// Summary aggregates a batch. Items are in input order.
type Summary struct {
	RunID     uuid.UUID
	Total     int
	Succeeded int
	Failed    int
	Items     []*extractor.Result
	Started   time.Time
	Elapsed   time.Duration
}

// Add records one result.
func (s *Summary) Add(r *extractor.Result) {
	s.Items = append(s.Items, r)
	if r.Success {
		s.Succeeded++
	} else {
		s.Failed++
	}
}

// ByMethod counts successful items per acquisition method.
func (s *Summary) ByMethod() map[extractor.Method]int {
	counts := map[extractor.Method]int{}
	for _, r := range s.Items {
		if r.Success {
			counts[r.Method]++
		}
	}
	return counts
}

// AcquireBatch processes reqs sequentially in input order. One item's
// failure never stops the batch; cancellation marks the remaining items
// as failed. A configuration error aborts the batch and is returned with
// the partial summary.
func (p *Pipeline) AcquireBatch(ctx context.Context, reqs []extractor.Request, sink Sink) (*Summary, error) {
	sum := &Summary{RunID: uuid.New(), Total: len(reqs), Started: p.now()}
	defer func() { sum.Elapsed = p.now().Sub(sum.Started) }()

	unlock, err := p.lock(ctx)
	if err != nil {
		if ctx.Err() != nil {
			p.cancelRest(ctx, sum, reqs, sink)
			return sum, nil
		}
		return sum, err
	}
	defer unlock()

	p.housekeep()
	p.log.Info("batch started", "run", sum.RunID, "items", len(reqs))

	limit := p.cfg.Local.MaxBatchFiles
	locals := 0
	for i, req := range reqs {
		if ctx.Err() != nil {
			p.cancelRest(ctx, sum, reqs[i:], sink)
			break
		}

		sink.Emit(p.lang.Progress.BatchItem, i+1, len(reqs), req.Input())
		if extractor.Classify(req) == extractor.KindLocal {
			locals++
			if limit > 0 && locals > limit {
				sum.Add(extractor.Failed(req, extractor.KindLocal, "", "",
					errs.New(errs.KindUnsupportedInput, "batch", p.lang.Errors.BatchLimit, limit)))
				continue
			}
		}

		res, err := p.acquire(ctx, req, sink)
		if err != nil {
			return sum, err
		}
		sum.Add(res)
	}

	p.log.Info("batch finished", "run", sum.RunID, "succeeded", sum.Succeeded, "failed", sum.Failed)
	return sum, nil
}

func (p *Pipeline) cancelRest(ctx context.Context, sum *Summary, rest []extractor.Request, sink Sink) {
	for _, req := range rest {
		sum.Add(extractor.Failed(req, extractor.Classify(req), "", "",
			&errs.Error{Kind: errs.KindAcquisitionFailed, Op: "batch", Msg: "cancelled", Err: ctx.Err()}))
	}
	p.log.Warn("batch cancelled", "run", sum.RunID, "skipped", len(rest))
	sink.Emit("%s", p.lang.Progress.Cancelled)
}
