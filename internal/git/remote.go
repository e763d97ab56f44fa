package git

import (
	"fmt"
	"regexp"
	"strings"
)

var remotePathPattern = regexp.MustCompile(`[:/]([^:/][^:]*?)(?:\.git)?/?$`)

// ProjectFromRemoteURL extracts the "group/project" path from a remote
// URL. Both ssh (git@host:group/project.git) and https
// (https://host/group/project.git) forms are handled.
func ProjectFromRemoteURL(url string) (string, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return "", fmt.Errorf("remote url is empty")
	}

	trimmed := url
	if i := strings.Index(trimmed, "://"); i >= 0 {
		trimmed = trimmed[i+3:]
		// drop the host part of https-style urls
		if j := strings.Index(trimmed, "/"); j >= 0 {
			trimmed = trimmed[j:]
		}
	}

	m := remotePathPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", fmt.Errorf("could not parse project path from remote url %q", url)
	}

	path := strings.Trim(m[1], "/")
	if !strings.Contains(path, "/") {
		return "", fmt.Errorf("could not parse project path from remote url %q", url)
	}
	return path, nil
}
