package query

import (
	"context"
	"strings"

	"github.com/cuemby/twicorder/pkg/usercache"
)

// NewUserLookup retrieves full profiles for up to 100 user ids or screen
// names per request. Results feed the user cache instead of the disk
// pipeline: no dedup history is recorded and nothing is written to files.
func NewUserLookup(deps Deps, bucket string, kwargs map[string]string) (Query, error) {
	r := newRequest(deps, KindUser, bucket, kwargs)
	r.endpoint = "/users/lookup"
	r.onPage = cacheUsers
	if err := r.finalise(); err != nil {
		return nil, err
	}
	return r, nil
}

func cacheUsers(ctx context.Context, r *request) error {
	if r.deps.Users == nil {
		return nil
	}
	for _, user := range r.results {
		r.deps.Users.Add(user)
	}
	return nil
}

// userLookup adapts a users/lookup query into the shape the user cache's
// mention expansion expects.
func (d Deps) userLookup() usercache.LookupFunc {
	return func(ctx context.Context, ids []string) ([]map[string]any, error) {
		q, err := NewUserLookup(d, "", map[string]string{
			"user_id": strings.Join(ids, ","),
		})
		if err != nil {
			return nil, err
		}
		lookup := q.(*request)
		for !lookup.Done() {
			if err := lookup.Run(ctx); err != nil {
				return nil, err
			}
		}
		return lookup.Results(), nil
	}
}

// UserLookupFunc exposes the chunked users/lookup capability for callers
// outside the query package.
func (d Deps) UserLookupFunc() usercache.LookupFunc {
	return d.userLookup()
}
