package query

import (
	"fmt"
	"sort"
)

// Query kind tags as they appear in the task list.
const (
	KindUserTimeline    = "user_timeline"
	KindFreeSearch      = "free_search"
	KindUser            = "user"
	KindStatus          = "status"
	KindFullArchiveGet  = "fullarchive_get"
	KindFullArchivePost = "fullarchive_post"
	KindFriendsList     = "friends_list"
	KindRateLimitStatus = "rate_limit_status"
)

// Constructor builds a concrete query from a task's bucket and kwargs.
type Constructor func(deps Deps, bucket string, kwargs map[string]string) (Query, error)

// Registry maps query kinds to constructors. Kinds are registered explicitly
// rather than discovered, so the mapping is visible in one place.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns a registry with every built-in kind registered.
func NewRegistry() *Registry {
	r := &Registry{constructors: make(map[string]Constructor)}
	r.Register(KindUserTimeline, NewUserTimeline)
	r.Register(KindFreeSearch, NewFreeSearch)
	r.Register(KindUser, NewUserLookup)
	r.Register(KindStatus, NewStatusLookup)
	r.Register(KindFullArchiveGet, NewFullArchiveGet)
	r.Register(KindFullArchivePost, NewFullArchivePost)
	r.Register(KindFriendsList, NewFriendsList)
	r.Register(KindRateLimitStatus, NewRateLimitStatus)
	return r
}

// Register binds a kind tag to a constructor.
func (r *Registry) Register(kind string, constructor Constructor) {
	r.constructors[kind] = constructor
}

// New constructs a query of the given kind.
func (r *Registry) New(kind string, deps Deps, bucket string, kwargs map[string]string) (Query, error) {
	constructor, ok := r.constructors[kind]
	if !ok {
		return nil, fmt.Errorf("unknown query kind %q", kind)
	}
	return constructor(deps, bucket, kwargs)
}

// Kinds lists the registered kind tags.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.constructors))
	for kind := range r.constructors {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// NewStatusLookup retrieves full tweet objects for explicit status ids. The
// save side-effect is deliberately a no-op.
func NewStatusLookup(deps Deps, bucket string, kwargs map[string]string) (Query, error) {
	r := newRequest(deps, KindStatus, bucket, kwargs)
	r.endpoint = "/statuses/lookup"
	r.saveDisabled = true
	if err := r.finalise(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewFullArchiveGet walks the premium full-archive search endpoint.
func NewFullArchiveGet(deps Deps, bucket string, kwargs map[string]string) (Query, error) {
	r := newRequest(deps, KindFullArchiveGet, bucket, kwargs)
	r.endpoint = "/tweets/search/fullarchive/production"
	r.nextPath = "next"
	r.cursor = cursorParam
	r.cursorName = "next"
	r.saveDisabled = true
	if err := r.finalise(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewFullArchivePost is the POST variant of the full-archive search, issued
// with app-only bearer auth.
func NewFullArchivePost(deps Deps, bucket string, kwargs map[string]string) (Query, error) {
	r := newRequest(deps, KindFullArchivePost, bucket, kwargs)
	r.endpoint = "/tweets/search/fullarchive/production"
	r.nextPath = "next"
	r.post = true
	r.appAuth = true
	r.saveDisabled = true
	if err := r.finalise(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewFriendsList retrieves the accounts a user follows.
func NewFriendsList(deps Deps, bucket string, kwargs map[string]string) (Query, error) {
	r := newRequest(deps, KindFriendsList, bucket, kwargs)
	r.endpoint = "/friends/list"
	r.saveDisabled = true
	if err := r.finalise(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRateLimitStatus retrieves the caller's current quota windows.
func NewRateLimitStatus(deps Deps, bucket string, kwargs map[string]string) (Query, error) {
	r := newRequest(deps, KindRateLimitStatus, bucket, kwargs)
	r.endpoint = "/application/rate_limit_status"
	r.saveDisabled = true
	if err := r.finalise(); err != nil {
		return nil, err
	}
	return r, nil
}
