// Copyright 2025 Poiesic Systems
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


package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// ProgressTracker reports delivery progress of a streaming run. The total
// is unknown up front, so it reports counts and throughput only.
type ProgressTracker struct {
	writer         io.Writer
	delivered      int
	failed         int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// reportInterval: report progress every N terminal outcomes
func NewProgressTracker(writer io.Writer, reportInterval int) *ProgressTracker {
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		writer:         writer,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.delivered = 0
	p.failed = 0
	p.lastReported = 0
}

// Record counts one terminal outcome.
func (p *ProgressTracker) Record(succeeded bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	if succeeded {
		p.delivered++
	} else {
		p.failed++
	}

	if p.total()-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.total()
	}
}

// Finish prints final progress.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.report()
	fmt.Fprintf(p.writer, " in %s\n", p.elapsed().Round(time.Millisecond))
	p.started = false
}

// elapsed returns the time since Start. Must be called with lock held.
func (p *ProgressTracker) elapsed() time.Duration {
	if p.startTime.IsZero() {
		return 0
	}

	return time.Since(p.startTime)
}

func (p *ProgressTracker) total() int {
	return p.delivered + p.failed
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	rate := 0.0
	if elapsed := p.elapsed().Seconds(); elapsed > 0 {
		rate = float64(p.total()) / elapsed
	}

	fmt.Fprintf(p.writer, "\rProgress: %d delivered, %d failed - %.1f records/s",
		p.delivered, p.failed, rate)
}
