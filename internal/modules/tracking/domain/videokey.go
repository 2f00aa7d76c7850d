package domain

import (
	"net/url"
	"strings"
)

// VideoKey canonicalises a video URL or a bare video id into the key used to
// match tab URLs against tracked records. YouTube watch, shorts, embed and
// youtu.be links reduce to the video id; any other URL reduces to host+path.
func VideoKey(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	if !strings.ContainsAny(s, "/.?=") {
		return s, true
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")
	host = strings.TrimPrefix(host, "m.")
	path := strings.TrimSuffix(u.EscapedPath(), "/")

	switch {
	case host == "youtu.be":
		if id := firstSegment(path); id != "" {
			return id, true
		}
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		if path == "/watch" {
			if id := u.Query().Get("v"); id != "" {
				return id, true
			}
		}
		for _, prefix := range []string{"/shorts/", "/embed/", "/live/"} {
			if strings.HasPrefix(path, prefix) {
				if id := firstSegment(strings.TrimPrefix(path, prefix)); id != "" {
					return id, true
				}
			}
		}
	}
	return host + path, true
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.Index(path, "/"); i >= 0 {
		path = path[:i]
	}
	return path
}
