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


// Package delivery writes documents to the store with bounded concurrency
// and classified retries.
//
// A Sink accepts items one at a time and hands each to a worker from an
// ants pool. Deliver blocks while every worker is busy, which throttles the
// source to the speed of the store.
//
// # Item Lifecycle
//
// Each item moves from pending to attempting and ends either succeeded or
// failed. An attempt is a single store write bounded by the sink timeout.
// A failed attempt is classified into an error kind:
//
//   - Timeout: the attempt deadline expired
//   - Cancelled: the store (or the run) cancelled the request
//   - Overloaded: the store is busy
//   - Other: anything else
//
// The first RetryPolicy whose kinds include the error kind decides whether
// to wait and try again. Every item keeps its own per-policy counter and
// retries while that counter is below the policy's MaxAttempts.
//
// # Guarantees
//
// A worker holds its slot through backoff, so the number of items being
// attempted never exceeds the worker count. A timed-out write is always
// allowed to return before the next attempt for the same item starts.
// Every item reaches exactly one terminal outcome, which is sent to the
// Recorder and to the optional observer.
//
// # Usage
//
//	sink, err := delivery.NewSink(store, auditLog, delivery.WithWorkers(8))
//	if err != nil {
//	    return err
//	}
//	defer sink.Release()
//
//	for item := range items {
//	    if err := sink.Deliver(ctx, item); err != nil {
//	        return err
//	    }
//	}
//	sink.Wait()
package delivery
