package common

import (
	"net/url"
	"strings"
)

const browseSegment = "/browse/"

// ProjectRef identifies a Jira project derived from a configured browse URL.
// It is recomputed on every call: the inbound config may change between
// requests, so nothing caches it.
type ProjectRef struct {
	// APIPrefix is everything before the /browse/ segment, the base the
	// REST endpoints hang off.
	APIPrefix string
	// ProjectKey is the path segment immediately after /browse/.
	ProjectKey string
}

// ParseBrowseURL extracts the API prefix and project key from a Jira browse
// URL of the form https://host/browse/KEY. No normalization happens beyond
// the extraction; callers must supply a well-formed browse URL.
func ParseBrowseURL(projectURL string) (ProjectRef, error) {
	u, err := url.Parse(projectURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ProjectRef{}, NewValidationError(CodeMalformedURL,
			"project URL is not a valid absolute URL").WithDetails(projectURL).WithCause(err)
	}

	idx := strings.Index(projectURL, browseSegment)
	if idx < 0 {
		return ProjectRef{}, NewValidationError(CodeMalformedURL,
			"project URL has no /browse/<KEY> segment").WithDetails(projectURL)
	}

	key := projectURL[idx+len(browseSegment):]
	if slash := strings.Index(key, "/"); slash >= 0 {
		key = key[:slash]
	}
	if key == "" {
		return ProjectRef{}, NewValidationError(CodeMalformedURL,
			"project URL has an empty project key").WithDetails(projectURL)
	}

	return ProjectRef{
		APIPrefix:  projectURL[:idx],
		ProjectKey: key,
	}, nil
}
