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

package freemap

import "github.com/prometheus/client_golang/prometheus"

var (
	allocatedSectors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blockfs",
		Subsystem: "freemap",
		Name:      "allocated_sectors_total",
		Help:      "Number of sectors handed out by Allocate.",
	})
	releasedSectors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blockfs",
		Subsystem: "freemap",
		Name:      "released_sectors_total",
		Help:      "Number of sectors returned by Release.",
	})
	allocationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "blockfs",
		Subsystem: "freemap",
		Name:      "allocation_failures_total",
		Help:      "Number of Allocate calls that found no run of the requested length.",
	})
)

// RegisterMetrics registers the allocator's counters with reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{allocatedSectors, releasedSectors, allocationFailures} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
