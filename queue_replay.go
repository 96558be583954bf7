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
)

// Replayer is the part of Queue the trigger drives.
type Replayer interface {
	Replay(ctx context.Context) (ReplayResult, error)
}

// ReachabilitySource reports network reachability transitions.
type ReachabilitySource interface {
	IsReachable() bool
	OnChange(listener func(isReachable bool)) (unsubscribe func())
}

// ForegroundSource reports the app returning to the foreground.
type ForegroundSource interface {
	OnForeground(listener func()) (unsubscribe func())
}

// ReplayTrigger replays the queue when the device becomes reachable or the app
// comes to the foreground. There is no timer: a task only retries on a trigger.
type ReplayTrigger struct {
	queue      Replayer
	network    ReachabilitySource
	foreground ForegroundSource

	pending chan struct{}
	stopCh  chan struct{}
	unsubs  []func()
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

func NewReplayTrigger(queue Replayer, network ReachabilitySource, foreground ForegroundSource) *ReplayTrigger {
	return &ReplayTrigger{
		queue:      queue,
		network:    network,
		foreground: foreground,
		pending:    make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}
}

func (p *ReplayTrigger) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})

	if p.network != nil {
		p.unsubs = append(p.unsubs, p.network.OnChange(func(isReachable bool) {
			if isReachable {
				p.Trigger()
			}
		}))
	}
	if p.foreground != nil {
		p.unsubs = append(p.unsubs, p.foreground.OnForeground(func() {
			if p.network == nil || p.network.IsReachable() {
				p.Trigger()
			}
		}))
	}
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()

	if p.network == nil || p.network.IsReachable() {
		p.Trigger()
	}
	logrus.Info("Offline queue replay trigger started")
}

func (p *ReplayTrigger) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	for _, unsubscribe := range p.unsubs {
		unsubscribe()
	}
	p.unsubs = nil
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	logrus.Info("Offline queue replay trigger stopped")
}

func (p *ReplayTrigger) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Trigger requests a replay. Requests arriving while one is already waiting are
// coalesced; one arriving during a replay schedules exactly one more.
func (p *ReplayTrigger) Trigger() {
	select {
	case p.pending <- struct{}{}:
	default:
	}
}

func (p *ReplayTrigger) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logrus.Info("Offline queue replay trigger context cancelled")
			return
		case <-p.stopCh:
			return
		case <-p.pending:
			result, err := p.queue.Replay(ctx)
			if err != nil {
				logrus.Errorf("offline queue replay failed: %v", err)
				continue
			}
			if result.Attempted > 0 {
				logrus.WithFields(logrus.Fields{
					"succeeded": len(result.Succeeded),
					"failed":    len(result.Failed),
					"dropped":   len(result.Dropped),
					"remaining": result.Remaining,
				}).Info("offline queue replayed")
			}
		}
	}
}
