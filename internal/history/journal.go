package history

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/rising-multiplier/internal/round"
)

const saveTimeout = 5 * time.Second

type Saver interface {
	Save(ctx context.Context, res round.Result) error
}

// Journal hands settled rounds to a Saver on its own goroutine so the round
// never waits on the database.
type Journal struct {
	queue chan round.Result
	saver Saver
	log   *zap.Logger
}

func NewJournal(saver Saver, size int, log *zap.Logger) *Journal {
	if size <= 0 {
		size = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Journal{
		queue: make(chan round.Result, size),
		saver: saver,
		log:   log,
	}
}

// Record queues res, dropping it when the queue is full.
func (j *Journal) Record(res round.Result) {
	select {
	case j.queue <- res:
	default:
		j.log.Warn("journal queue full, dropping round", zap.String("round", res.RoundID))
	}
}

// Run saves queued rounds until ctx ends, then flushes what is left. Only
// flush failures are returned; failures while running are logged.
func (j *Journal) Run(ctx context.Context) error {
	for {
		select {
		case res := <-j.queue:
			if err := j.save(context.Background(), res); err != nil {
				j.log.Error("journal save failed", zap.String("round", res.RoundID), zap.Error(err))
			}
		case <-ctx.Done():
			return j.flush()
		}
	}
}

func (j *Journal) flush() error {
	var errs error
	for {
		select {
		case res := <-j.queue:
			errs = multierr.Append(errs, j.save(context.Background(), res))
		default:
			return errs
		}
	}
}

func (j *Journal) save(parent context.Context, res round.Result) error {
	ctx, cancel := context.WithTimeout(parent, saveTimeout)
	defer cancel()
	return j.saver.Save(ctx, res)
}
