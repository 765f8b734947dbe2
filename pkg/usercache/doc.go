/*
Package usercache keeps a time-bounded in-memory map of user profiles and
drives the expansion of embedded user mentions.

Mention stubs returned inline with tweets carry only a handful of fields.
When full_user_mentions is enabled, the timeline and search queries run their
pages through ExpandMentions, which gathers uncached mention ids, fetches the
full profiles in chunks of up to 100 via a users/lookup query, and splices
them into the mention objects before the page is written out.

The map supports concurrent reads; the expansion path holds an exclusive lock
so lookup bursts from parallel workers are serialised.
*/
package usercache
