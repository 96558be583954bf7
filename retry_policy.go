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
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/fieldcrew/fieldsync/config"
)

// RetryPolicy governs how often a failing task is replayed.
// The zero value retries on every trigger, forever.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

func RetryPolicyFromConfig(q config.QueueConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     q.MaxAttempts,
		InitialInterval: time.Duration(q.InitialIntervalMs) * time.Millisecond,
		MaxInterval:     time.Duration(q.MaxIntervalMs) * time.Millisecond,
		Multiplier:      q.Multiplier,
	}
}

// Exhausted reports whether a task that has failed attempts times must be dropped.
func (p RetryPolicy) Exhausted(attempts int) bool {
	return p.MaxAttempts > 0 && attempts >= p.MaxAttempts
}

// Delay returns how long to wait before the next attempt after attempts failures.
func (p RetryPolicy) Delay(attempts int) time.Duration {
	if p.InitialInterval <= 0 || attempts <= 0 {
		return 0
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.RandomizationFactor = 0
	b.Multiplier = p.Multiplier
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	b.MaxInterval = p.MaxInterval
	if b.MaxInterval < p.InitialInterval {
		b.MaxInterval = p.InitialInterval
	}
	b.MaxElapsedTime = 0
	b.Reset()

	var d time.Duration
	for i := 0; i < attempts; i++ {
		d = b.NextBackOff()
	}
	return d
}
