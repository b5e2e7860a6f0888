package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"property-insight-be/internal/entity"
	"property-insight-be/internal/repository/contract"
	"property-insight-be/internal/repository/specification"
	"property-insight-be/internal/repository/unitofwork"
	"property-insight-be/pkg/store"
)

// fakeDB is an in-memory stand-in for Postgres shared by every unit of work.
type fakeDB struct {
	mu       sync.Mutex
	sections []*entity.FeedbackEvent
	ratings  []*entity.FeedbackEvent
	triggers []*entity.TriggerRecord
	archive  map[string]*store.Session

	failWrites atomic.Bool
	reads      atomic.Int32
}

func newFakeDB() *fakeDB {
	return &fakeDB{archive: make(map[string]*store.Session)}
}

func (db *fakeDB) triggerCount(sessionId string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, t := range db.triggers {
		if t.SessionId == sessionId {
			n++
		}
	}
	return n
}

func (db *fakeDB) sectionCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.sections)
}

type fakeFactory struct {
	db *fakeDB
}

func (f *fakeFactory) NewUnitOfWork(context.Context) unitofwork.UnitOfWork {
	return &fakeUoW{db: f.db}
}

type fakeUoW struct {
	db      *fakeDB
	inTx    bool
	pending []*entity.TriggerRecord
}

func (u *fakeUoW) Begin(context.Context) error {
	if u.inTx {
		return errors.New("transaction already started")
	}
	u.inTx = true
	return nil
}

func (u *fakeUoW) Commit() error {
	if !u.inTx {
		return errors.New("no transaction to commit")
	}
	u.db.mu.Lock()
	u.db.triggers = append(u.db.triggers, u.pending...)
	u.db.mu.Unlock()
	u.pending, u.inTx = nil, false
	return nil
}

func (u *fakeUoW) Rollback() error {
	if !u.inTx {
		return errors.New("no transaction to rollback")
	}
	u.pending, u.inTx = nil, false
	return nil
}

func (u *fakeUoW) FeedbackRepository() contract.FeedbackRepository {
	return &fakeFeedbackRepo{db: u.db}
}

func (u *fakeUoW) TriggerRecordRepository() contract.TriggerRecordRepository {
	return &fakeTriggerRepo{uow: u}
}

func (u *fakeUoW) SessionArchiveRepository() contract.SessionArchiveRepository {
	return &fakeArchiveRepo{db: u.db}
}

type query struct {
	sessionId, sectionId, polarity string
	orderDesc                      bool
	limit                          int
}

func parseSpecs(specs []specification.Specification) query {
	var q query
	for _, s := range specs {
		switch v := s.(type) {
		case specification.BySessionID:
			q.sessionId = v.SessionID
		case specification.BySectionID:
			q.sectionId = v.SectionID
		case specification.ByPolarity:
			q.polarity = v.Polarity
		case specification.OrderBy:
			q.orderDesc = v.Desc
		case specification.Pagination:
			q.limit = v.Limit
		}
	}
	return q
}

func (q query) match(e *entity.FeedbackEvent) bool {
	return (q.sessionId == "" || e.SessionId == q.sessionId) &&
		(q.sectionId == "" || e.SectionId == q.sectionId) &&
		(q.polarity == "" || string(e.Polarity) == q.polarity)
}

func (q query) apply(events []*entity.FeedbackEvent) []*entity.FeedbackEvent {
	var out []*entity.FeedbackEvent
	for _, e := range events {
		if q.match(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.orderDesc {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	if q.limit > 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out
}

type fakeFeedbackRepo struct {
	db *fakeDB
}

func (r *fakeFeedbackRepo) CreateSectionFeedback(_ context.Context, e *entity.FeedbackEvent) error {
	if r.db.failWrites.Load() {
		return errors.New("db down")
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *e
	r.db.sections = append(r.db.sections, &cp)
	return nil
}

func (r *fakeFeedbackRepo) CreateRating(_ context.Context, e *entity.FeedbackEvent) error {
	if r.db.failWrites.Load() {
		return errors.New("db down")
	}
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	cp := *e
	r.db.ratings = append(r.db.ratings, &cp)
	return nil
}

func (r *fakeFeedbackRepo) FindSectionFeedback(_ context.Context, specs ...specification.Specification) ([]*entity.FeedbackEvent, error) {
	r.db.reads.Add(1)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return parseSpecs(specs).apply(r.db.sections), nil
}

func (r *fakeFeedbackRepo) FindRatings(_ context.Context, specs ...specification.Specification) ([]*entity.FeedbackEvent, error) {
	r.db.reads.Add(1)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return parseSpecs(specs).apply(r.db.ratings), nil
}

func (r *fakeFeedbackRepo) CountSectionFeedback(_ context.Context, specs ...specification.Specification) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	q := parseSpecs(specs)
	q.limit = 0
	return int64(len(q.apply(r.db.sections))), nil
}

func (r *fakeFeedbackRepo) SectionBreakdown(_ context.Context, specs ...specification.Specification) ([]entity.SectionStat, error) {
	r.db.reads.Add(1)
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	q := parseSpecs(specs)
	bySection := map[string]*entity.SectionStat{}
	var ids []string
	for _, e := range r.db.sections {
		if !q.match(e) {
			continue
		}
		st, ok := bySection[e.SectionId]
		if !ok {
			st = &entity.SectionStat{SectionId: e.SectionId}
			bySection[e.SectionId] = st
			ids = append(ids, e.SectionId)
		}
		if e.Polarity == entity.PolarityNegative {
			st.Negative++
		} else {
			st.Positive++
		}
	}
	sort.Strings(ids)
	out := make([]entity.SectionStat, len(ids))
	for i, id := range ids {
		out[i] = *bySection[id]
	}
	return out, nil
}

type fakeTriggerRepo struct {
	uow *fakeUoW
}

func (r *fakeTriggerRepo) Create(_ context.Context, record *entity.TriggerRecord) error {
	cp := *record
	if r.uow.inTx {
		r.uow.pending = append(r.uow.pending, &cp)
		return nil
	}
	r.uow.db.mu.Lock()
	r.uow.db.triggers = append(r.uow.db.triggers, &cp)
	r.uow.db.mu.Unlock()
	return nil
}

func (r *fakeTriggerRepo) FindAll(_ context.Context, specs ...specification.Specification) ([]*entity.TriggerRecord, error) {
	q := parseSpecs(specs)
	r.uow.db.mu.Lock()
	defer r.uow.db.mu.Unlock()
	var out []*entity.TriggerRecord
	for _, t := range r.uow.db.triggers {
		if q.sessionId == "" || t.SessionId == q.sessionId {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.orderDesc {
			return out[i].TriggeredAt.After(out[j].TriggeredAt)
		}
		return out[i].TriggeredAt.Before(out[j].TriggeredAt)
	})
	if q.limit > 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out, nil
}

func (r *fakeTriggerRepo) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	all, err := r.FindAll(ctx, specs...)
	return int64(len(all)), err
}

type fakeArchiveRepo struct {
	db *fakeDB
}

func (r *fakeArchiveRepo) FindBySessionID(_ context.Context, sessionId string) (*store.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.archive[sessionId], nil
}

// fakeEngine serves scripted snapshots and counts calls.
type fakeEngine struct {
	mu        sync.Mutex
	sessions  map[string]string
	fetchErr  error
	startErr  error
	delay     time.Duration
	gate      chan struct{}
	fetches   atomic.Int32
	starts    atomic.Int32
	onStarted func(sessionId string)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{sessions: make(map[string]string)}
}

func (e *fakeEngine) set(sessionId, doc string) {
	e.mu.Lock()
	e.sessions[sessionId] = doc
	e.mu.Unlock()
}

func (e *fakeEngine) setFetchErr(err error) {
	e.mu.Lock()
	e.fetchErr = err
	e.mu.Unlock()
}

func (e *fakeEngine) FetchSession(ctx context.Context, sessionId string) (*store.Session, error) {
	e.fetches.Add(1)
	if e.delay > 0 {
		select {
		case <-time.After(e.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	e.mu.Lock()
	doc, ok := e.sessions[sessionId]
	err := e.fetchErr
	gate := e.gate
	e.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.New("engine: 404")
	}
	return store.ParseSession([]byte(doc))
}

func (e *fakeEngine) StartAnalysis(_ context.Context, sessionId string) error {
	e.starts.Add(1)
	e.mu.Lock()
	err := e.startErr
	cb := e.onStarted
	e.mu.Unlock()
	if err != nil {
		return err
	}
	if cb != nil {
		cb(sessionId)
	}
	return nil
}

// nopEvents discards domain events.
type nopEvents struct {
	retriggered atomic.Int32
	failed      atomic.Int32
	recorded    atomic.Int32
}

func (n *nopEvents) PublishFeedbackRecorded(context.Context, *entity.FeedbackEvent) {
	n.recorded.Add(1)
}

func (n *nopEvents) PublishAnalysisRetriggered(context.Context, *entity.TriggerRecord) {
	n.retriggered.Add(1)
}

func (n *nopEvents) PublishAnalysisRetriggerFailed(context.Context, string, entity.TriggerReason, error) {
	n.failed.Add(1)
}
