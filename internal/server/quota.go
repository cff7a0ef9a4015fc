/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"sync"

	"golang.org/x/time/rate"
)

// quota keeps one token bucket per user.
type quota struct {
	limit rate.Limit
	burst int

	mu    sync.Mutex
	users map[string]*rate.Limiter
}

func newQuota(perMinute float64, burst int) *quota {
	if perMinute <= 0 {
		return &quota{limit: rate.Inf}
	}
	if burst < 1 {
		burst = 1
	}
	return &quota{
		limit: rate.Limit(perMinute / 60),
		burst: burst,
		users: make(map[string]*rate.Limiter),
	}
}

func (q *quota) allow(user string) bool {
	if q.limit == rate.Inf {
		return true
	}
	q.mu.Lock()
	l, ok := q.users[user]
	if !ok {
		l = rate.NewLimiter(q.limit, q.burst)
		q.users[user] = l
	}
	q.mu.Unlock()
	return l.Allow()
}
