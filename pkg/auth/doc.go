/*
Package auth produces the signed-request capability used by all queries.

Two request contexts exist. User-context requests are signed per OAuth 1.0a
using the application consumer pair and the user token pair; app-context
requests carry a bearer token obtained once through the client-credentials
grant. Queries receive one of the two clients and never see token material.
*/
package auth
