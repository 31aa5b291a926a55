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


package source

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Bookmark is a candidate document for the pipeline.
type Bookmark struct {
	URL   string
	Title string
}

// ParseBookmarks extracts every link of a Netscape bookmark export, the HTML
// format browsers use for "export bookmarks". Links without a title use the
// URL as title.
func ParseBookmarks(r io.Reader) ([]Bookmark, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing bookmark export: %w", err)
	}

	var bookmarks []Bookmark
	doc.Find("a[href]").Each(func(_ int, link *goquery.Selection) {
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}
		title := strings.Join(strings.Fields(link.Text()), " ")
		if title == "" {
			title = href
		}
		bookmarks = append(bookmarks, Bookmark{URL: href, Title: title})
	})
	return bookmarks, nil
}

// ParseURLList reads one URL per line, optionally followed by whitespace and a
// title. Blank lines and lines starting with '#' are skipped.
func ParseURLList(r io.Reader) ([]Bookmark, error) {
	var bookmarks []Bookmark
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		rawURL, title := fields[0], strings.Join(fields[1:], " ")
		if title == "" {
			title = rawURL
		}
		bookmarks = append(bookmarks, Bookmark{URL: rawURL, Title: title})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading url list: %w", err)
	}
	return bookmarks, nil
}

// Parse detects the input format: documents that look like HTML are read as
// a bookmark export, anything else as a URL list.
func Parse(r io.Reader) ([]Bookmark, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if looksLikeHTML(data) {
		return ParseBookmarks(bytes.NewReader(data))
	}
	return ParseURLList(bytes.NewReader(data))
}

// ReadFile parses the bookmark export or URL list stored at path.
func ReadFile(path string) ([]Bookmark, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func looksLikeHTML(data []byte) bool {
	head := bytes.ToLower(data[:min(len(data), 1024)])
	return bytes.Contains(head, []byte("<!doctype")) ||
		bytes.Contains(head, []byte("<html")) ||
		bytes.Contains(head, []byte("<dl")) ||
		bytes.Contains(head, []byte("<a "))
}
