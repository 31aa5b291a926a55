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


package ingestion

import (
	"context"

	"github.com/poiesic/bookmind/core"
)

// Processor performs the work of one pipeline stage on a single item.
type Processor interface {
	// Stage identifies the stage this processor implements.
	Stage() core.Stage

	// Setup runs once before the first item is dispatched.
	Setup(ctx context.Context) error

	// Process enriches item in place. It must honor ctx cancellation.
	// Returning an error fails only this item.
	Process(ctx context.Context, item *core.QueueItem) error

	// Teardown runs once after the last in-flight item has finished.
	Teardown(ctx context.Context) error
}
