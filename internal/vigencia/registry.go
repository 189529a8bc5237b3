package vigencia

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/norma/internal/models"
	"github.com/hyperjump/norma/internal/storage"
)

// catalog is an immutable snapshot of every known record.
type catalog struct {
	records map[string]*models.Norma
	ids     []string
}

func (c *catalog) with(n *models.Norma) *catalog {
	next := &catalog{records: make(map[string]*models.Norma, len(c.records)+1)}
	for id, rec := range c.records {
		next.records[id] = rec
	}
	if _, ok := next.records[n.ID]; !ok {
		next.ids = append(append(make([]string, 0, len(c.ids)+1), c.ids...), n.ID)
		sort.Strings(next.ids)
	} else {
		next.ids = c.ids
	}
	next.records[n.ID] = n
	return next
}

// Registry answers validity questions over a NormStore. Reads are served
// from an in-memory snapshot; writes go through to the store and are
// serialized per norm id.
type Registry struct {
	store  storage.NormStore
	logger *zap.Logger
	now    func() time.Time

	locks keyedMutex

	snapshot atomic.Pointer[catalog]
	// writeMu guards snapshot replacement.
	writeMu sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger for write events and load failures.
func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithClock overrides the clock that defines "today".
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry over store. Records are loaded on first use.
func NewRegistry(store storage.NormStore, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Today is the registry's current date.
func (r *Registry) Today() models.Date {
	return models.DateOf(r.now())
}

func (r *Registry) catalog(ctx context.Context) (*catalog, error) {
	if c := r.snapshot.Load(); c != nil {
		return c, nil
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if c := r.snapshot.Load(); c != nil {
		return c, nil
	}
	ids, err := r.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list normas: %w", err)
	}
	c := &catalog{records: make(map[string]*models.Norma, len(ids)), ids: make([]string, 0, len(ids))}
	for _, id := range ids {
		n, err := r.store.Get(ctx, id)
		if err != nil {
			r.logger.Warn("skipping unreadable norm", zap.String("norm_id", id), zap.Error(err))
			continue
		}
		c.records[id] = n
		c.ids = append(c.ids, id)
	}
	r.snapshot.Store(c)
	r.logger.Debug("vigencia catalog loaded", zap.Int("normas", len(c.ids)))
	return c, nil
}

func (r *Registry) remember(n *models.Norma) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if c := r.snapshot.Load(); c != nil {
		r.snapshot.Store(c.with(n))
	}
}

// Reload drops the snapshot so the next read reloads from the store.
func (r *Registry) Reload() {
	r.writeMu.Lock()
	r.snapshot.Store(nil)
	r.writeMu.Unlock()
}

func (r *Registry) lookup(ctx context.Context, id string) (*models.Norma, error) {
	c, err := r.catalog(ctx)
	if err != nil {
		return nil, err
	}
	if n, ok := c.records[id]; ok {
		return n, nil
	}
	// Records created by another process since the snapshot was taken.
	n, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.remember(n)
	return n, nil
}

// Consult returns the validity of id at date. Unknown ids yield models.ErrNotFound.
func (r *Registry) Consult(ctx context.Context, id string, date models.Date) (*Result, error) {
	n, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = r.Today()
	}
	return Evaluate(n, date), nil
}

// Get returns a copy of the record for id.
func (r *Registry) Get(ctx context.Context, id string) (*models.Norma, error) {
	n, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	return n.Clone(), nil
}

// List returns every known id in ascending order.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	c, err := r.catalog(ctx)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), c.ids...), nil
}

// Create stores a new record. Its status is derived from its dates; an
// existing id yields models.ErrConflict.
func (r *Registry) Create(ctx context.Context, n *models.Norma) error {
	if err := n.Validate(); err != nil {
		return err
	}
	rec := n.Clone()
	rec.Status = Evaluate(rec, r.Today()).Stored()

	unlock := r.locks.lock(rec.ID)
	defer unlock()
	if err := r.store.Create(ctx, rec); err != nil {
		return err
	}
	r.remember(rec)
	r.logger.Info("norm created", zap.String("norm_id", rec.ID), zap.String("status", string(rec.Status)))
	return nil
}

// update applies fn to a copy of the stored record under the norm's lock.
// fn reports whether it changed anything; unchanged records are not written.
func (r *Registry) update(ctx context.Context, id string, fn func(n *models.Norma) (bool, error)) error {
	unlock := r.locks.lock(id)
	defer unlock()

	cur, err := r.store.Get(ctx, id)
	if err != nil {
		return err
	}
	next := cur.Clone()
	changed, err := fn(next)
	if err != nil {
		return err
	}
	if !changed {
		r.remember(cur)
		return nil
	}
	next.Status = Evaluate(next, r.Today()).Stored()
	if err := r.store.Put(ctx, next); err != nil {
		return fmt.Errorf("failed to store norm %s: %w", id, err)
	}
	r.remember(next)
	return nil
}

// RegisterTotalDerogation records that by repealed id as a whole on date.
// Repeating the same call is a no-op; a different derogator or date fails
// with models.ErrConflict.
func (r *Registry) RegisterTotalDerogation(ctx context.Context, id, by string, date models.Date) error {
	by = strings.TrimSpace(by)
	if by == "" || date.IsZero() {
		return fmt.Errorf("derogation of %s needs a derogating norm and a date: %w", id, models.ErrInvalid)
	}
	err := r.update(ctx, id, func(n *models.Norma) (bool, error) {
		if n.DerogatedBy != "" || !n.DerogatedSince.IsZero() {
			if n.DerogatedBy == by && n.DerogatedSince.Equal(date) {
				return false, nil
			}
			return false, fmt.Errorf("norm %s already derogated by %s since %s: %w",
				id, n.DerogatedBy, n.DerogatedSince, models.ErrConflict)
		}
		if date.Before(n.EffectiveFrom) {
			return false, fmt.Errorf("derogation date %s precedes %s effective date: %w", date, id, models.ErrInvalid)
		}
		n.EffectiveUntil = date
		n.DerogatedBy = by
		n.DerogatedSince = date
		return true, nil
	})
	if err != nil {
		return err
	}
	r.logger.Info("total derogation registered",
		zap.String("norm_id", id), zap.String("by", by), zap.String("since", date.String()))
	return nil
}

func samePartial(a, b models.PartialDerogation) bool {
	return a.Article == b.Article && a.DerogatedBy == b.DerogatedBy &&
		a.Since.Equal(b.Since) && a.Reason == b.Reason
}

// RegisterPartialDerogation appends pd to id's history. Identical entries
// are recorded once and a totally derogated norm stays derogated.
func (r *Registry) RegisterPartialDerogation(ctx context.Context, id string, pd models.PartialDerogation) error {
	pd.DerogatedBy = strings.TrimSpace(pd.DerogatedBy)
	if pd.DerogatedBy == "" || pd.Since.IsZero() {
		return fmt.Errorf("partial derogation of %s needs a derogating norm and a date: %w", id, models.ErrInvalid)
	}
	err := r.update(ctx, id, func(n *models.Norma) (bool, error) {
		for _, existing := range n.PartialDerogations {
			if samePartial(existing, pd) {
				return false, nil
			}
		}
		n.PartialDerogations = append(n.PartialDerogations, pd)
		return true, nil
	})
	if err != nil {
		return err
	}
	r.logger.Info("partial derogation registered",
		zap.String("norm_id", id), zap.String("by", pd.DerogatedBy), zap.String("article", pd.Article))
	return nil
}

// RegisterModification appends m to id's amendments. Identical entries are recorded once.
func (r *Registry) RegisterModification(ctx context.Context, id string, m models.Modification) error {
	m.ByNorm = strings.TrimSpace(m.ByNorm)
	if m.Kind == "" {
		m.Kind = models.ModModification
	}
	if m.ByNorm == "" || m.Date.IsZero() || !m.Kind.Valid() {
		return fmt.Errorf("modification of %s needs a norm, a date and a known kind: %w", id, models.ErrInvalid)
	}
	err := r.update(ctx, id, func(n *models.Norma) (bool, error) {
		for _, existing := range n.Modifications {
			if existing.ByNorm == m.ByNorm && existing.Date.Equal(m.Date) &&
				existing.Kind == m.Kind && existing.Note == m.Note {
				return false, nil
			}
		}
		n.Modifications = append(n.Modifications, m)
		return true, nil
	})
	if err != nil {
		return err
	}
	r.logger.Info("modification registered", zap.String("norm_id", id), zap.String("by", m.ByNorm))
	return nil
}

// FilterByStatus returns the ids whose validity at date maps to status.
func (r *Registry) FilterByStatus(ctx context.Context, status models.NormStatus, date models.Date) ([]string, error) {
	c, err := r.catalog(ctx)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = r.Today()
	}
	var ids []string
	for _, id := range c.ids {
		if Evaluate(c.records[id], date).Stored() == status {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// PartialDerogator is one norm that repealed part of another.
type PartialDerogator struct {
	Norm    string      `json:"norm"`
	Article string      `json:"article,omitempty"`
	Date    models.Date `json:"date"`
}

// Derogators lists the norms that repealed id, wholly or in part.
type Derogators struct {
	Total   string             `json:"total,omitempty"`
	Partial []PartialDerogator `json:"partial"`
}

// DerogatingNorms returns the derogators of id. Partial entries are unique per norm and article.
func (r *Registry) DerogatingNorms(ctx context.Context, id string) (*Derogators, error) {
	n, err := r.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	out := &Derogators{Total: n.DerogatedBy, Partial: []PartialDerogator{}}
	seen := make(map[[2]string]bool)
	for _, pd := range n.PartialDerogations {
		key := [2]string{pd.DerogatedBy, pd.Article}
		if seen[key] {
			continue
		}
		seen[key] = true
		out.Partial = append(out.Partial, PartialDerogator{Norm: pd.DerogatedBy, Article: pd.Article, Date: pd.Since})
	}
	return out, nil
}
