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


package core

import (
	"fmt"
	"net/url"
)

// ValidatePage validates a Page according to domain rules.
//
// Validation rules:
//   - URL must not be empty
//   - URL must be absolute with an http or https scheme
//
// NOT validated (maintained by the pipeline):
//   - Processed, IndexedAt, Error, Attempts
func ValidatePage(page *Page) error {
	if page == nil {
		return fmt.Errorf("%w: page is nil", ErrInvalidPage)
	}

	if err := ValidateURL(page.URL); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPage, err)
	}

	return nil
}

// ValidateSlice validates a Slice according to domain rules.
//
// Validation rules:
//   - URL must not be empty
//   - Text must not be empty
//   - Position must not be negative
//
// NOT validated:
//   - Embedding (may be absent)
func ValidateSlice(slice *Slice) error {
	if slice == nil {
		return fmt.Errorf("%w: slice is nil", ErrInvalidSlice)
	}

	if slice.URL == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSlice, ErrEmptyURL)
	}

	if slice.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSlice, ErrEmptyText)
	}

	if slice.Position < 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSlice, ErrNegativePosition)
	}

	return nil
}

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) error {
	if raw == "" {
		return ErrEmptyURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrUnsupportedURL, raw)
	}
	return nil
}
