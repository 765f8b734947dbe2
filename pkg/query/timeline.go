package query

import (
	"strconv"
)

// NewUserTimeline walks a user's timeline. The endpoint hands back no
// pagination token, so the walk is synthesised: after each page the id of the
// oldest item becomes the max_id of the next request, and the walk halts once
// the new cursor stops making progress or a page comes back empty.
//
// The persisted resume id is injected as since_id, which acts as a floor for
// the whole walk; the stop condition compares cursors only.
func NewUserTimeline(deps Deps, bucket string, kwargs map[string]string) (Query, error) {
	r := newRequest(deps, KindUserTimeline, bucket, kwargs)
	r.endpoint = "/statuses/user_timeline"
	r.resumeKey = "since_id"
	r.cursor = cursorParam
	r.cursorName = "max_id"
	r.expandMentions = true
	r.paginate = timelinePaginate
	if err := r.finalise(); err != nil {
		return nil, err
	}
	return r, nil
}

func timelinePaginate(r *request, page []map[string]any) {
	if len(page) == 0 {
		r.moreResults = ""
		r.done = true
		return
	}
	oldest := itemID(page[len(page)-1])
	prior := r.kwargs.Get("max_id")
	if oldest == "" || (prior != "" && idGTE(oldest, prior)) {
		r.moreResults = ""
		r.done = true
		return
	}
	r.moreResults = oldest
}

// idGTE compares two item ids numerically, falling back to a length-aware
// lexicographic compare if either fails to parse.
func idGTE(a, b string) bool {
	ai, errA := strconv.ParseUint(a, 10, 64)
	bi, errB := strconv.ParseUint(b, 10, 64)
	if errA == nil && errB == nil {
		return ai >= bi
	}
	if len(a) != len(b) {
		return len(a) > len(b)
	}
	return a >= b
}
