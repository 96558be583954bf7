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

package observable

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetNotifiesInSubscriptionOrder(t *testing.T) {
	o := New("en")
	var got []string
	o.Subscribe(func(v string) { got = append(got, "a:"+v) })
	o.Subscribe(func(v string) { got = append(got, "b:"+v) })

	o.Set("ja")

	assert.Equal(t, "ja", o.Get())
	assert.Equal(t, []string{"a:ja", "b:ja"}, got)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	o := New(0)
	calls := 0
	unsubscribe := o.Subscribe(func(int) { calls++ })

	o.Set(1)
	unsubscribe()
	unsubscribe()
	o.Set(2)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, o.Len())
}

func TestPanickingListenerDoesNotBlockOthers(t *testing.T) {
	o := New(false)
	reached := false
	o.Subscribe(func(bool) { panic("listener bug") })
	o.Subscribe(func(v bool) { reached = v })

	assert.NotPanics(t, func() { o.Set(true) })
	assert.True(t, reached)
}

func TestUpdateIsAtomic(t *testing.T) {
	o := New(0)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Update(func(v int) int { return v + 1 })
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, o.Get())
}
