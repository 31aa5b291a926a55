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


package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/poiesic/bookmind/core"
)

// Timestamps are stored as RFC 3339 strings with nanosecond precision.
var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

func marshal(v any) ([]byte, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

func unmarshal(data []byte, v any) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return nil
}

// MarshalPage serializes a Page to bytes.
func MarshalPage(page *core.Page) ([]byte, error) {
	return marshal(page)
}

// UnmarshalPage deserializes a Page from bytes.
func UnmarshalPage(data []byte) (*core.Page, error) {
	var page core.Page
	if err := unmarshal(data, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// MarshalSlice serializes a Slice to bytes.
func MarshalSlice(slice *core.Slice) ([]byte, error) {
	return marshal(slice)
}

// UnmarshalSlice deserializes a Slice from bytes.
func UnmarshalSlice(data []byte) (*core.Slice, error) {
	var slice core.Slice
	if err := unmarshal(data, &slice); err != nil {
		return nil, err
	}
	return &slice, nil
}

// MarshalQueueRecord serializes a QueueRecord to bytes.
func MarshalQueueRecord(record *core.QueueRecord) ([]byte, error) {
	return marshal(record)
}

// UnmarshalQueueRecord deserializes a QueueRecord from bytes.
func UnmarshalQueueRecord(data []byte) (*core.QueueRecord, error) {
	var record core.QueueRecord
	if err := unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}
