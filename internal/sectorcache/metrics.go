// Copyright 2024 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sectorcache

import "github.com/prometheus/client_golang/prometheus"

// Counters are package-level and shared by every Cache. They are
// registered only when RegisterMetrics is called, so importing this
// package never registers anything, and registration reports failures as
// an error instead of panicking.
var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blockfs",
		Subsystem: "sector_cache",
		Name:      "hits_total",
		Help:      "Number of sector reads satisfied from the cache.",
	})
	cacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blockfs",
		Subsystem: "sector_cache",
		Name:      "misses_total",
		Help:      "Number of sector reads that missed the cache.",
	})
	cacheInsertions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blockfs",
		Subsystem: "sector_cache",
		Name:      "insertions_total",
		Help:      "Number of sectors installed into the cache.",
	})
	cacheEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blockfs",
		Subsystem: "sector_cache",
		Name:      "evictions_total",
		Help:      "Number of valid slots evicted by the clock algorithm.",
	})
)

// RegisterMetrics registers the cache's counters with reg. Safe to call at
// most once per registry; callers that create multiple caches in the same
// process (as the test suite does) should register against a private
// prometheus.Registry rather than the default one.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{cacheHits, cacheMisses, cacheInsertions, cacheEvictions} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
