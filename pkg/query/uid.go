package query

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// UID returns the stable identity of the query: a blake2b hash over the
// declarative inputs (endpoint, results path, pagination path, original
// kwargs, base URL). Two tasks producing the same uid are the same query for
// deduplication purposes.
func (r *request) UID() string {
	if r.uid != "" {
		return r.uid
	}

	keys := make([]string, 0, len(r.origKwargs))
	for k := range r.origKwargs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, r.origKwargs[k]))
	}

	canonical := strings.Join([]string{
		r.deps.baseURL(),
		r.endpoint,
		r.resultsPath,
		r.nextPath,
		strings.Join(pairs, "&"),
	}, "\n")

	sum := blake2b.Sum256([]byte(canonical))
	r.uid = hex.EncodeToString(sum[:16])
	return r.uid
}
