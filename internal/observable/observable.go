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

// Package observable holds a value that listeners can subscribe to.
// Every subscription hands back its own unsubscribe func; there is no
// package-level listener registry.
package observable

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

type Observable[T any] struct {
	mu        sync.RWMutex
	value     T
	nextID    int
	listeners map[int]func(T)
}

func New[T any](initial T) *Observable[T] {
	return &Observable[T]{value: initial, listeners: make(map[int]func(T))}
}

func (o *Observable[T]) Get() T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.value
}

// Set stores v and notifies every listener, in subscription order, outside the lock.
func (o *Observable[T]) Set(v T) {
	o.mu.Lock()
	o.value = v
	listeners := o.snapshot()
	o.mu.Unlock()

	for _, fn := range listeners {
		notify(fn, v)
	}
}

// Update applies fn to the current value atomically and notifies with the result.
func (o *Observable[T]) Update(fn func(T) T) T {
	o.mu.Lock()
	o.value = fn(o.value)
	v := o.value
	listeners := o.snapshot()
	o.mu.Unlock()

	for _, l := range listeners {
		notify(l, v)
	}
	return v
}

// Subscribe registers fn. The returned func removes it and is safe to call more than once.
func (o *Observable[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = fn
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}
}

func (o *Observable[T]) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.listeners)
}

func (o *Observable[T]) snapshot() []func(T) {
	ids := make([]int, 0, len(o.listeners))
	for id := range o.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]func(T), 0, len(ids))
	for _, id := range ids {
		out = append(out, o.listeners[id])
	}
	return out
}

// A panicking listener must not take the notifier down with it.
func notify[T any](fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("observable listener panicked: %v", r)
		}
	}()
	fn(v)
}
