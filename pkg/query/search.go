package query

import (
	"strings"
)

// NewFreeSearch walks the standard search endpoint. Pagination uses the
// opaque next_results query string handed back by the server, appended to the
// endpoint verbatim.
func NewFreeSearch(deps Deps, bucket string, kwargs map[string]string) (Query, error) {
	r := newRequest(deps, KindFreeSearch, bucket, kwargs)
	r.endpoint = "/search/tweets"
	r.resultsPath = "statuses"
	r.nextPath = "search_metadata.next_results"
	r.resumeKey = "since_id"
	r.cursor = cursorRawQuery
	r.expandMentions = true
	r.repairToken = repairNextResults
	if err := r.finalise(); err != nil {
		return nil, err
	}
	return r, nil
}

// repairNextResults forces tweet_mode=extended onto the opaque token. The
// server drops the parameter when building next_results, which would silently
// truncate every tweet on pages after the first.
func repairNextResults(token string) string {
	if strings.Contains(token, "tweet_mode=extended") {
		return token
	}
	if token == "" {
		return token
	}
	separator := "&"
	if !strings.Contains(token, "?") {
		separator = "?"
	}
	return token + separator + "tweet_mode=extended"
}
