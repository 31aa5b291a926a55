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


// Package storage provides the storage abstraction layer for bookmind.
//
// This package defines repository interfaces that decouple storage
// implementation from the ingestion pipeline and the searcher.
//
// # Architecture
//
// The storage layer follows the Repository pattern:
//
//   - PageRepository: one record per source URL with processing bookkeeping
//   - SliceRepository: persisted chunks with their embeddings
//   - QueueRepository: snapshots of pipeline queue items
//
// Values are encoded with CBOR using integer map keys. Timestamps are stored
// as RFC 3339 strings.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	pages := badger.NewPageRepository(backend)
//	slices := badger.NewSliceRepository(backend)
//
// Use in tests with in-memory storage:
//
//	repos, err := badger.NewMemoryRepositories()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support. Pass context.Background() for operations
// without specific timeout requirements.
package storage
