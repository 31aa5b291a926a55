package source

import (
	"net/url"
	"path"
	"strings"
)

// excludedDomains match the host itself and any of its subdomains.
var excludedDomains = []string{
	// social
	"facebook.com", "snapchat.com", "instagram.com", "twitter.com", "x.com",
	"tiktok.com", "linkedin.com",
	// search and portals
	"google.com", "bing.com", "imgur.com", "yahoo.com", "duckduckgo.com",
	// video and streaming
	"youtube.com", "netflix.com", "twitch.tv", "spotify.com", "9gag.com",
	// shopping
	"amazon.com", "ebay.com", "aliexpress.com",
}

// excludedHostPrefixes catch login and auth hosts such as login.example.com.
var excludedHostPrefixes = []string{"login.", "auth.", "signin."}

var localHosts = []string{"localhost", "127.0.0.1", "::1"}

// excludedExtensions are resources that are not HTML pages.
var excludedExtensions = map[string]struct{}{
	".pdf": {}, ".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {},
	".ico": {}, ".bmp": {}, ".mp4": {}, ".webm": {}, ".avi": {}, ".mov": {}, ".mp3": {},
	".wav": {}, ".ogg": {}, ".zip": {}, ".rar": {}, ".7z": {}, ".tar": {}, ".gz": {},
	".exe": {}, ".dmg": {}, ".apk": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {},
	".ppt": {}, ".pptx": {},
}

// IsExcluded reports whether rawURL should never be indexed: non-http(s)
// schemes (browser internals, about:, file:), local addresses, social, search,
// video, shopping and sign-in hosts, and links to binary files. The query
// string is ignored when checking the extension.
func IsExcluded(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return true
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return true
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return true
	}
	for _, local := range localHosts {
		if host == local {
			return true
		}
	}
	for _, prefix := range excludedHostPrefixes {
		if strings.HasPrefix(host, prefix) {
			return true
		}
	}
	host = strings.TrimPrefix(host, "www.")
	for _, domain := range excludedDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}

	_, binary := excludedExtensions[strings.ToLower(path.Ext(u.Path))]
	return binary
}
