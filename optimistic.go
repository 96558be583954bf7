/*
Copyright 2024 Fieldsync Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package fieldsync

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/fieldsync/internal/observable"
)

// Patch is a pure local change to an entity's state. It may be re-applied any
// number of times while other patches are rebased over it.
type Patch[S any] func(S) S

type pendingPatch[S any] struct {
	id    uint64
	apply Patch[S]
}

type entityState[S any] struct {
	base    S
	pending []pendingPatch[S]
	version uint64
}

// EntityChange is published whenever an entity's visible state changes.
// Listeners run outside the coordinator lock, so two changes to one entity can
// arrive out of order; the one with the lower Version is stale.
type EntityChange[S any] struct {
	Entity  string
	State   S
	Version uint64
}

// Coordinator keeps, per entity, the last confirmed base plus the local patches
// still waiting for the remote call. The visible state is the base with every
// pending patch applied in issue order.
type Coordinator[S any] struct {
	mu       sync.Mutex
	entities map[string]*entityState[S]
	empty    func() S
	clone    func(S) S
	nextID   uint64
	changes  *observable.Observable[EntityChange[S]]
}

// NewCoordinator builds a coordinator. empty returns the state of an entity never
// seen before. clone copies a state so patches never alias the stored base; it may
// be nil for value types.
func NewCoordinator[S any](empty func() S, clone func(S) S) *Coordinator[S] {
	if clone == nil {
		clone = func(s S) S { return s }
	}
	var zero S
	return &Coordinator[S]{
		entities: make(map[string]*entityState[S]),
		empty:    empty,
		clone:    clone,
		changes:  observable.New(EntityChange[S]{State: zero}),
	}
}

func (c *Coordinator[S]) entity(key string) *entityState[S] {
	e, ok := c.entities[key]
	if !ok {
		e = &entityState[S]{base: c.empty()}
		c.entities[key] = e
	}
	return e
}

func (c *Coordinator[S]) visible(e *entityState[S]) S {
	s := c.clone(e.base)
	for _, p := range e.pending {
		s = p.apply(s)
	}
	return s
}

// State returns the visible state of entity.
func (c *Coordinator[S]) State(entity string) S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible(c.entity(entity))
}

// changed bumps the entity's version and snapshots its visible state. c.mu must
// be held.
func (c *Coordinator[S]) changed(entity string, e *entityState[S]) EntityChange[S] {
	e.version++
	return EntityChange[S]{Entity: entity, State: c.visible(e), Version: e.version}
}

// Reset replaces the confirmed base, e.g. after an authoritative refetch.
// Patches still in flight stay applied on top of it.
func (c *Coordinator[S]) Reset(entity string, base S) {
	c.mu.Lock()
	e := c.entity(entity)
	e.base = c.clone(base)
	change := c.changed(entity, e)
	c.mu.Unlock()
	c.changes.Set(change)
}

// Update applies a confirmed change to the base, e.g. a realtime push.
func (c *Coordinator[S]) Update(entity string, fn Patch[S]) S {
	c.mu.Lock()
	e := c.entity(entity)
	e.base = fn(c.clone(e.base))
	change := c.changed(entity, e)
	c.mu.Unlock()
	c.changes.Set(change)
	return change.State
}

func (c *Coordinator[S]) Subscribe(fn func(EntityChange[S])) (unsubscribe func()) {
	return c.changes.Subscribe(fn)
}

func (c *Coordinator[S]) push(entity string, apply Patch[S]) (uint64, EntityChange[S]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	e := c.entity(entity)
	e.pending = append(e.pending, pendingPatch[S]{id: c.nextID, apply: apply})
	return c.nextID, c.changed(entity, e)
}

// settle removes the patch id. When commit is non-nil it is folded into the base.
func (c *Coordinator[S]) settle(entity string, id uint64, commit Patch[S]) EntityChange[S] {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entity(entity)
	for i, p := range e.pending {
		if p.id == id {
			e.pending = append(e.pending[:i:i], e.pending[i+1:]...)
			break
		}
	}
	if commit != nil {
		e.base = commit(c.clone(e.base))
	}
	return c.changed(entity, e)
}

// Mutation describes one optimistic write.
type Mutation[S, R any] struct {
	Entity string
	// Apply is the local change shown immediately.
	Apply Patch[S]
	// Remote performs the write against the remote store.
	Remote func(ctx context.Context) (R, error)
	// Reconcile folds the server response into the state after Apply, e.g. to
	// swap a temporary ID for the permanent one. Optional.
	Reconcile func(S, R) S
	// RollbackOnError drops the local change when Remote fails. When false the
	// change is kept, which callers use for writes they defer to the queue.
	RollbackOnError bool
}

// Perform shows m.Apply right away, calls m.Remote, then commits or rolls back.
// The remote error is always returned.
func Perform[S, R any](ctx context.Context, c *Coordinator[S], m Mutation[S, R]) (R, error) {
	id, optimistic := c.push(m.Entity, m.Apply)
	c.changes.Set(optimistic)

	ctx, span := tracer.Start(ctx, "Optimistic mutation")
	defer span.End()

	result, err := m.Remote(ctx)

	var commit Patch[S]
	switch {
	case err == nil && m.Reconcile != nil:
		commit = func(s S) S { return m.Reconcile(m.Apply(s), result) }
	case err == nil, !m.RollbackOnError:
		commit = m.Apply
	}
	c.changes.Set(c.settle(m.Entity, id, commit))

	if err != nil {
		span.RecordError(err)
		if m.RollbackOnError {
			logrus.WithField("entity", m.Entity).Warnf("optimistic mutation rolled back: %v", err)
		}
	}
	return result, err
}
