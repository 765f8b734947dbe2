package query

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cuemby/twicorder/pkg/appdata"
	"github.com/cuemby/twicorder/pkg/config"
	"github.com/cuemby/twicorder/pkg/log"
	"github.com/cuemby/twicorder/pkg/metrics"
	"github.com/cuemby/twicorder/pkg/mongo"
	"github.com/cuemby/twicorder/pkg/ratelimit"
	"github.com/cuemby/twicorder/pkg/usercache"
	"github.com/cuemby/twicorder/pkg/writer"
)

const (
	// DefaultBaseURL is the versioned REST base all endpoints hang off.
	DefaultBaseURL = "https://api.twitter.com/1.1"

	// TweetTimeFormat is the created_at layout used by the API.
	TweetTimeFormat = "Mon Jan 02 15:04:05 -0700 2006"

	maxAttempts = 5
)

// HTTPClient is the signed-request capability queries use for the wire.
type HTTPClient interface {
	Get(ctx context.Context, url string) (*http.Response, error)
	Post(ctx context.Context, url string, body []byte) (*http.Response, error)
}

// Query is one logical retrieval against an endpoint. A query may span many
// pages; Run advances it by at most one page and Done reports whether the
// walk has finished.
type Query interface {
	Kind() string
	Endpoint() string
	UID() string
	Done() bool
	Run(ctx context.Context) error
}

// Deps carries the long-lived collaborators a query needs. Collaborators are
// injected explicitly; there is no process-global state.
type Deps struct {
	UserClient HTTPClient
	AppClient  HTTPClient
	Limits     *ratelimit.Central
	Store      *appdata.Store
	Users      *usercache.Cache
	Mongo      *mongo.Sink // nil when use_mongo is off
	Config     *config.Provider

	// BaseURL overrides DefaultBaseURL; used by tests.
	BaseURL string
}

func (d Deps) baseURL() string {
	if d.BaseURL != "" {
		return d.BaseURL
	}
	return DefaultBaseURL
}

// cursorMode decides how a pagination token feeds the next request.
type cursorMode int

const (
	// cursorNone: the endpoint does not paginate.
	cursorNone cursorMode = iota
	// cursorRawQuery: the opaque token is a ready-made query string appended
	// verbatim to the endpoint URL.
	cursorRawQuery
	// cursorParam: the token is a value for a named request parameter.
	cursorParam
)

// request is the state machine shared by all concrete query kinds. Concrete
// kinds differ in their declared fields and a small set of hooks.
type request struct {
	kind        string
	endpoint    string
	resultsPath string
	nextPath    string
	resumeKey   string
	post        bool
	appAuth     bool

	cursor      cursorMode
	cursorName  string

	bucket     string
	kwargs     url.Values
	origKwargs map[string]string

	deps   Deps
	logger zerolog.Logger

	uid         string
	done        bool
	moreResults string
	lastID      string
	results     []map[string]any
	savePath    string
	savedCount  int

	// repairToken rewrites an opaque cursor before it is appended to the
	// next request URL.
	repairToken func(token string) string
	// paginate synthesises the next cursor from the raw page when the
	// endpoint does not hand one back.
	paginate func(r *request, page []map[string]any)
	// onPage replaces the default pickle-then-save page handling.
	onPage func(ctx context.Context, r *request) error
	// saveDisabled leaves save as a declared no-op.
	saveDisabled bool
	// expandMentions runs the page through the user cache before saving.
	expandMentions bool
}

func newRequest(deps Deps, kind string, bucket string, kwargs map[string]string) *request {
	orig := make(map[string]string, len(kwargs))
	values := url.Values{}
	for k, v := range kwargs {
		orig[k] = v
		values.Set(k, v)
	}
	return &request{
		kind:       kind,
		bucket:     bucket,
		kwargs:     values,
		origKwargs: orig,
		deps:       deps,
	}
}

// finalise computes the uid, injects the resume token and attaches the query
// logger. Must be called once the declared fields are in place.
func (r *request) finalise() error {
	r.logger = log.WithComponent("query").With().
		Str("kind", r.kind).
		Str("endpoint", r.endpoint).
		Str("uid", r.UID()).
		Logger()

	if r.resumeKey == "" || r.deps.Store == nil {
		return nil
	}
	last, ok, err := r.deps.Store.LastID(r.UID())
	if err != nil {
		return fmt.Errorf("failed to read resume id: %w", err)
	}
	if ok {
		r.kwargs.Set(r.resumeKey, last)
	}
	return nil
}

func (r *request) Kind() string     { return r.kind }
func (r *request) Endpoint() string { return r.endpoint }
func (r *request) Done() bool       { return r.done }

// Results returns the current page buffer.
func (r *request) Results() []map[string]any { return r.results }

// Run retrieves one page: quota wait, request, rate-limit bookkeeping,
// cursor handling, dedup, persistence. Errors leave the query non-done so
// the worker loop can retry.
func (r *request) Run(ctx context.Context) error {
	if err := r.waitForQuota(ctx); err != nil {
		return err
	}

	reqURL, body, err := r.buildRequest()
	if err != nil {
		return err
	}

	resp, err := r.fetch(ctx, reqURL, body)
	if err != nil {
		metrics.TransportErrorsTotal.WithLabelValues(r.endpoint).Inc()
		r.logger.Error().Err(err).Msg("request failed after retries")
		return err
	}
	defer resp.Body.Close()

	metrics.RequestsTotal.WithLabelValues(r.endpoint, fmt.Sprint(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusTooManyRequests {
		r.deps.Limits.Update(r.endpoint, resp.Header)
		r.logger.Warn().Msg("rate limited")
		return nil
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		r.logger.Error().
			Int("status", resp.StatusCode).
			Str("reason", resp.Status).
			Str("body", string(raw)).
			Msg("unexpected response")
		return fmt.Errorf("endpoint %s returned %d", r.endpoint, resp.StatusCode)
	}

	r.deps.Limits.Update(r.endpoint, resp.Header)

	payload, err := decodeBody(resp.Body)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to decode response")
		return err
	}

	r.advanceCursor(payload)
	page := r.extractResults(payload)
	r.results = page

	if r.paginate != nil {
		r.paginate(r, page)
	}

	if len(page) > 0 {
		if r.lastID == "" {
			r.lastID = itemID(page[0])
		}
		handler := r.onPage
		if handler == nil {
			handler = defaultOnPage
		}
		if err := handler(ctx, r); err != nil {
			return err
		}
	}

	if r.done {
		metrics.QueriesCompletedTotal.WithLabelValues(r.kind).Inc()
		if r.lastID != "" && r.deps.Store != nil {
			if err := r.deps.Store.SetLastID(r.UID(), r.lastID); err != nil {
				return fmt.Errorf("failed to record resume id: %w", err)
			}
		}
	}
	return nil
}

// waitForQuota sleeps until the endpoint's rate-limit window resets when the
// last observed snapshot reports no remaining requests.
func (r *request) waitForQuota(ctx context.Context) error {
	snapshot, ok := r.deps.Limits.Get(r.endpoint)
	if !ok || !snapshot.Exhausted(time.Now()) {
		return nil
	}
	jitter := time.Duration(rand.Intn(2000)) * time.Millisecond
	delay := time.Until(snapshot.Reset) + jitter
	metrics.RateLimitSleepsTotal.WithLabelValues(r.endpoint).Inc()
	r.logger.Info().Dur("delay", delay).Msg("quota exhausted, sleeping until reset")

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// buildRequest assembles the next request URL (and body for POST kinds) from
// either the pagination cursor or the effective kwargs.
func (r *request) buildRequest() (string, []byte, error) {
	base := r.deps.baseURL() + r.endpoint + ".json"

	if r.post {
		payload := make(map[string]any, len(r.origKwargs)+1)
		for k, v := range r.origKwargs {
			payload[k] = v
		}
		if r.moreResults != "" {
			payload["next"] = r.moreResults
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return "", nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		return base, body, nil
	}

	if r.moreResults != "" {
		switch r.cursor {
		case cursorRawQuery:
			token := r.moreResults
			if r.repairToken != nil {
				token = r.repairToken(token)
			}
			return base + token, nil, nil
		case cursorParam:
			r.kwargs.Set(r.cursorName, r.moreResults)
		}
	}
	if len(r.kwargs) == 0 {
		return base, nil, nil
	}
	return base + "?" + r.kwargs.Encode(), nil, nil
}

// fetch performs the signed call with bounded exponential backoff on
// transport failures.
func (r *request) fetch(ctx context.Context, reqURL string, body []byte) (*http.Response, error) {
	client := r.deps.UserClient
	if r.appAuth {
		client = r.deps.AppClient
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			r.logger.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("transport error, backing off")
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		var resp *http.Response
		var err error
		if r.post {
			resp, err = client.Post(ctx, reqURL, body)
		} else {
			resp, err = client.Get(ctx, reqURL)
		}
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", maxAttempts, lastErr)
}

// advanceCursor navigates the pagination path into the body. An absent or
// empty token ends the walk for server-driven pagination; synthesised
// pagination (timeline) is handled by the paginate hook instead.
func (r *request) advanceCursor(payload any) {
	if r.paginate != nil {
		return
	}
	if r.nextPath == "" {
		r.moreResults = ""
		r.done = true
		return
	}
	value, ok := navigate(payload, r.nextPath)
	if !ok {
		r.moreResults = ""
		r.done = true
		return
	}
	token := tokenString(value)
	if token == "" {
		r.moreResults = ""
		r.done = true
		return
	}
	r.moreResults = token
}

// extractResults navigates the results path into the body and normalises the
// page into a slice of objects.
func (r *request) extractResults(payload any) []map[string]any {
	value, ok := navigate(payload, r.resultsPath)
	if !ok {
		return nil
	}
	raw, ok := value.([]any)
	if !ok {
		return nil
	}
	page := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		obj, ok := item.(map[string]any)
		if !ok {
			r.logger.Warn().Msg("skipping non-object result item")
			continue
		}
		page = append(page, obj)
	}
	return page
}

// defaultOnPage is the standard page handling: dedup against history, then
// persist to disk and the document db.
func defaultOnPage(ctx context.Context, r *request) error {
	if err := r.pickle(); err != nil {
		return err
	}
	if r.expandMentions && r.deps.Users != nil && len(r.results) > 0 {
		cfg := r.deps.Config.Get()
		if cfg.FullUserMentions {
			lookup := r.deps.userLookup()
			if err := r.deps.Users.ExpandMentions(ctx, r.results, lookup); err != nil {
				// Expansion failures degrade the capture, they do not stop it.
				r.logger.Error().Err(err).Msg("mention expansion failed")
			}
		}
	}
	return r.save(ctx)
}

// pickle removes items already present in the per-query tweet history and
// records the survivors.
func (r *request) pickle() error {
	if r.deps.Store == nil || len(r.results) == 0 {
		return nil
	}
	seen, err := r.deps.Store.QueryTweetIDs(r.kind)
	if err != nil {
		return fmt.Errorf("failed to read tweet history: %w", err)
	}

	fresh := make([]map[string]any, 0, len(r.results))
	records := make([]appdata.TweetRecord, 0, len(r.results))
	dropped := 0
	for _, item := range r.results {
		id := itemID(item)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			dropped++
			continue
		}
		fresh = append(fresh, item)
		records = append(records, appdata.TweetRecord{
			ID:        id,
			Timestamp: createdAtUnix(item, r.logger),
		})
	}
	r.results = fresh
	if dropped > 0 {
		metrics.TweetsDedupedTotal.WithLabelValues(r.kind).Add(float64(dropped))
	}
	if len(records) == 0 {
		return nil
	}
	return r.deps.Store.AddQueryTweets(r.kind, records)
}

// save writes one JSON record per line to the query's capture file, then
// upserts the records into the document db best-effort.
func (r *request) save(ctx context.Context) error {
	if r.saveDisabled || r.bucket == "" || len(r.results) == 0 {
		return nil
	}
	cfg := r.deps.Config.Get()

	if r.savePath == "" {
		r.savePath = writer.CrawlPath(
			cfg.OutputDir, r.bucket, cfg.SavePrefix,
			itemID(r.results[0]), cfg.SavePostfix, time.Now(),
		)
	}

	var buf strings.Builder
	for _, item := range r.results {
		line, err := json.Marshal(item)
		if err != nil {
			r.logger.Error().Err(err).Msg("skipping unencodable item")
			continue
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	if err := writer.Append([]byte(buf.String()), r.savePath); err != nil {
		return fmt.Errorf("failed to write capture file: %w", err)
	}
	metrics.TweetsSavedTotal.WithLabelValues(r.kind).Add(float64(len(r.results)))
	r.logger.Debug().
		Int("items", len(r.results)).
		Str("path", r.savePath).
		Msg("page saved")

	// Rotate once the file holds tweets_per_file items; the next page opens a
	// fresh file named after its own first item.
	r.savedCount += len(r.results)
	if cfg.TweetsPerFile > 0 && r.savedCount >= cfg.TweetsPerFile {
		r.savePath = ""
		r.savedCount = 0
	}

	if r.deps.Mongo != nil {
		r.deps.Mongo.Save(ctx, r.results)
	}
	return nil
}

// decodeBody parses a response body, preserving 64-bit ids as json.Number.
func decodeBody(body io.Reader) (any, error) {
	decoder := json.NewDecoder(body)
	decoder.UseNumber()
	var payload any
	if err := decoder.Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return payload, nil
}

// navigate walks a dot path into a decoded JSON document.
func navigate(payload any, path string) (any, bool) {
	if path == "" {
		return payload, true
	}
	current := payload
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// tokenString renders a pagination token. Structured tokens are re-encoded
// as JSON so they survive the trip through the cursor field.
func tokenString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case nil:
		return ""
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

// itemID returns the stable string id of a result item.
func itemID(item map[string]any) string {
	return usercache.IDString(item)
}

// createdAtUnix parses an item's created_at stamp, falling back to capture
// time when the field is missing or malformed.
func createdAtUnix(item map[string]any, logger zerolog.Logger) int64 {
	raw, ok := item["created_at"].(string)
	if !ok {
		return time.Now().Unix()
	}
	t, err := time.Parse(TweetTimeFormat, raw)
	if err != nil {
		logger.Warn().Str("created_at", raw).Msg("unparseable created_at")
		return time.Now().Unix()
	}
	return t.Unix()
}
