/*
Package query implements the retrieval state machine at the heart of the
crawler.

A query is one logical retrieval against an endpoint with a specific argument
set; it may span many pages. Each call to Run advances the query by at most
one page:

 1. Consult the shared rate-limit tracker; sleep past the window reset when
    the endpoint quota is exhausted.
 2. Build the request URL from the pagination cursor when one is held, or
    from a URL-encoded merge of the effective kwargs.
 3. Perform the signed call, retrying transport failures with exponential
    backoff for up to five attempts.
 4. On success, refresh the rate-limit snapshot from the response headers,
    navigate the declared pagination and results paths into the body, dedup
    the page against the per-query tweet history, and append the survivors
    to the capture file (and the document db when enabled).

A query's identity (UID) is a pure function of its declarative inputs, which
is what the exchange dedups on. The resume id recorded for a UID is advanced
only after the entire paged walk completed cleanly, so a crash mid-walk
re-fetches rather than skips.

Concrete kinds differ only in their declared fields (endpoint, results path,
pagination path, resume-token key) plus three behavioural overrides: the
timeline synthesises max_id pagination, free search repairs the server's
next_results token, and user lookup feeds the user cache instead of disk.
Kinds are wired through an explicit Registry; adding one means adding a
constructor and a Register call.
*/
package query
