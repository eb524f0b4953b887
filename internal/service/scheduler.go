package service

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/MimeLyc/contextual-novel-translator/internal/corpus"
	"github.com/MimeLyc/contextual-novel-translator/internal/errs"
	"github.com/MimeLyc/contextual-novel-translator/internal/jobs"
	"github.com/MimeLyc/contextual-novel-translator/pkg/icron"
	"github.com/MimeLyc/contextual-novel-translator/pkg/log"
)

type CorpusLister interface {
	ListCorpora(ctx context.Context) ([]corpus.Corpus, error)
}

type Enqueuer interface {
	Enqueue(req jobs.EnqueueRequest) (*jobs.Job, bool)
}

// GlossaryScheduler enqueues one glossary job per corpus on a cron schedule.
type GlossaryScheduler struct {
	mu       sync.Mutex
	cronExpr string
	entry    cron.EntryID
	cron     *cron.Cron
	corpora  CorpusLister
	queue    Enqueuer
	group    singleflight.Group
}

func NewGlossaryScheduler(cronExpr string, c *cron.Cron, corpora CorpusLister, queue Enqueuer) *GlossaryScheduler {
	return &GlossaryScheduler{
		cronExpr: cronExpr,
		cron:     c,
		corpora:  corpora,
		queue:    queue,
	}
}

// Schedule registers the refresh with the cron runner. An empty expression
// disables it.
func (s *GlossaryScheduler) Schedule(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleLocked(ctx, s.cronExpr)
}

// Reschedule replaces the registered refresh with expr. An invalid
// expression leaves the current schedule in place.
func (s *GlossaryScheduler) Reschedule(ctx context.Context, expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if expr == s.cronExpr && (expr == "" || s.entry != 0) {
		return nil
	}
	if expr != "" {
		if _, err := icron.Parse(expr); err != nil {
			return errs.WrapError(err, errs.ErrConfig, "invalid glossary cron")
		}
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
		s.entry = 0
	}
	return s.scheduleLocked(ctx, expr)
}

func (s *GlossaryScheduler) scheduleLocked(ctx context.Context, expr string) error {
	s.cronExpr = expr
	if expr == "" {
		log.Info("Scheduled glossary refresh disabled")
		return nil
	}
	schedule, err := icron.Parse(expr)
	if err != nil {
		return errs.WrapError(err, errs.ErrConfig, "invalid glossary cron")
	}

	s.entry = s.cron.Schedule(schedule, cron.FuncJob(func() {
		if _, err := s.RunOnce(ctx); err != nil {
			log.Error("Scheduled glossary refresh failed: %v", err)
		}
	}))
	log.Info("Glossary refresh scheduled with %q, next run at %s", expr, schedule.Next(time.Now()).Format(time.RFC3339))
	return nil
}

// RunOnce enqueues a glossary job for every corpus and returns how many were
// new. Overlapping triggers share one pass.
func (s *GlossaryScheduler) RunOnce(ctx context.Context) (int, error) {
	v, err, _ := s.group.Do("run", func() (any, error) {
		corpora, err := s.corpora.ListCorpora(ctx)
		if err != nil {
			return 0, errs.WrapError(err, errs.ErrStore, "failed to list corpora")
		}
		created := 0
		for _, c := range corpora {
			job, isNew := s.queue.Enqueue(jobs.EnqueueRequest{
				Kind:    jobs.KindGenerateGlossary,
				Source:  "cron",
				Payload: jobs.JobPayload{CorpusID: c.ID},
			})
			if isNew {
				created++
				log.Info("Queued glossary refresh %s for corpus %q", job.ID, c.Title)
			}
		}
		return created, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// NextRun reports the runs of the schedule around now.
func (s *GlossaryScheduler) NextRun(now time.Time) (*icron.TriggerInfo, error) {
	s.mu.Lock()
	expr := s.cronExpr
	s.mu.Unlock()
	if expr == "" {
		return nil, errs.NewError(errs.ErrConfig, "glossary refresh is not scheduled")
	}
	return icron.GetTriggerInfo(expr, now)
}
