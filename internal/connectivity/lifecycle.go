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

package connectivity

import (
	"sync"

	"github.com/fieldcrew/fieldsync/internal/observable"
)

type AppState string

const (
	StateForeground AppState = "foreground"
	StateBackground AppState = "background"
)

// Lifecycle tracks app foreground/background transitions.
type Lifecycle struct {
	state *observable.Observable[AppState]
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: observable.New(StateForeground)}
}

func (l *Lifecycle) State() AppState {
	return l.state.Get()
}

// Report records the current app state. Only a background to foreground
// transition notifies OnForeground listeners.
func (l *Lifecycle) Report(state AppState) {
	l.state.Set(state)
}

func (l *Lifecycle) OnForeground(listener func()) (unsubscribe func()) {
	var mu sync.Mutex
	last := l.state.Get()
	return l.state.Subscribe(func(s AppState) {
		mu.Lock()
		prev := last
		last = s
		mu.Unlock()
		if s == StateForeground && prev != StateForeground {
			listener()
		}
	})
}
