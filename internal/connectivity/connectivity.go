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

// Package connectivity tracks whether the remote stores are reachable and
// whether the app is in the foreground.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fieldcrew/fieldsync/config"
	"github.com/fieldcrew/fieldsync/internal/observable"
)

// Monitor holds the last known reachability. Listeners fire on transitions only.
type Monitor struct {
	state *observable.Observable[bool]
	mu    sync.Mutex

	client   *http.Client
	probeURL string
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
	running  bool
}

// NewMonitor starts in the given state. Devices that boot offline should pass false.
func NewMonitor(initial bool) *Monitor {
	return &Monitor{state: observable.New(initial)}
}

// NewMonitorFromConfig wires the optional HTTP reachability probe.
func NewMonitorFromConfig(cnf config.ConnectivityConfig, initial bool) *Monitor {
	m := NewMonitor(initial)
	m.probeURL = cnf.ProbeURL
	m.interval = time.Duration(cnf.ProbeIntervalSec) * time.Second
	m.client = &http.Client{Timeout: time.Duration(cnf.ProbeTimeoutSec) * time.Second}
	return m
}

func (m *Monitor) IsReachable() bool {
	return m.state.Get()
}

// Report feeds a reachability observation. Repeated identical reports are ignored.
func (m *Monitor) Report(reachable bool) {
	changed := false
	m.state.Update(func(current bool) bool {
		changed = current != reachable
		return reachable
	})
	if changed {
		logrus.WithField("reachable", reachable).Info("connectivity changed")
	}
}

// OnChange subscribes to reachability transitions.
func (m *Monitor) OnChange(listener func(isReachable bool)) (unsubscribe func()) {
	last := m.state.Get()
	var mu sync.Mutex
	return m.state.Subscribe(func(v bool) {
		mu.Lock()
		if v == last {
			mu.Unlock()
			return
		}
		last = v
		mu.Unlock()
		listener(v)
	})
}

// Start runs the HTTP probe until Stop or ctx ends. Without a probe URL it is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running || m.probeURL == "" || m.interval <= 0 {
		m.mu.Unlock()
		return
	}
	m.running = true
	stop := make(chan struct{})
	m.stopCh = stop
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.probeLoop(ctx, stop)
	}()
}

func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Monitor) probeLoop(ctx context.Context, stop <-chan struct{}) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	m.probeAndReport(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probeAndReport(ctx)
		}
	}
}

// probeAndReport discards the result of a probe cut short by shutdown, which
// says nothing about the network.
func (m *Monitor) probeAndReport(ctx context.Context) {
	reachable := m.Probe(ctx)
	if ctx.Err() != nil {
		return
	}
	m.Report(reachable)
}

// Probe issues one HEAD request to the probe URL. Any HTTP response counts as
// reachable; only transport failures count as unreachable.
func (m *Monitor) Probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.probeURL, nil)
	if err != nil {
		logrus.Errorf("invalid connectivity probe url %s: %v", m.probeURL, err)
		return m.IsReachable()
	}
	client := m.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
