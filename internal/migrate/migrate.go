// Package migrate upgrades stored collections to the current record shape.
//
// It works on raw JSON before typed decoding, so files written by any earlier
// version of the app load. Output is canonical (object keys sorted, numbers kept
// as written), which makes every migration idempotent byte for byte.
package migrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Report counts the records each collection had rewritten.
type Report struct {
	Users         int
	Tweets        int
	Notifications int
}

func (r Report) Total() int { return r.Users + r.Tweets + r.Notifications }

type record = map[string]any

// Collection migrates raw by collection name. Unknown names pass through untouched.
func Collection(name string, raw []byte) ([]byte, int, error) {
	switch name {
	case "users":
		return Users(raw)
	case "tweets":
		return Tweets(raw)
	case "notifications":
		return Notifications(raw)
	}
	return raw, 0, nil
}

// Tweets fixes up timestamps, engagement fields, retweet records and comment ids.
func Tweets(raw []byte) ([]byte, int, error) {
	return apply("tweets", raw, migrateTweet)
}

// Users ensures follow fields, bio and created_at, and renames the legacy password key.
func Users(raw []byte) ([]byte, int, error) {
	return apply("users", raw, migrateUser)
}

// Notifications ensures the seen flag and normalises created_at.
func Notifications(raw []byte) ([]byte, int, error) {
	return apply("notifications", raw, migrateNotification)
}

func apply(collection string, raw []byte, fn func(record) bool) ([]byte, int, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, 0, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var items []any
	if err := dec.Decode(&items); err != nil {
		return nil, 0, fmt.Errorf("%s: %w", collection, err)
	}

	changed := 0
	for i, it := range items {
		rec, ok := it.(record)
		if !ok {
			return nil, 0, fmt.Errorf("%s[%d]: not an object", collection, i)
		}
		if fn(rec) {
			changed++
		}
	}
	if items == nil {
		items = []any{}
	}
	out, err := json.Marshal(items)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", collection, err)
	}
	return out, changed, nil
}

// --- Record rules ---

func migrateTweet(t record) bool {
	changed := renameKey(t, "user_id", "author_id")
	changed = renameKey(t, "username", "author_username") || changed
	changed = normalizeField(t, "created_at") || changed
	changed = ensure(t, "likes", []any{}) || changed
	changed = ensure(t, "comments", []any{}) || changed
	changed = ensure(t, "retweets", []any{}) || changed
	changed = ensure(t, "image_refs", []any{}) || changed
	changed = migrateRetweets(t) || changed
	changed = migrateComments(t) || changed
	return changed
}

// migrateRetweets turns bare user ids into {user_id, retweeted_at} and keeps the
// first record per user.
func migrateRetweets(t record) bool {
	list, ok := t["retweets"].([]any)
	if !ok {
		t["retweets"] = []any{}
		return true
	}
	changed := false
	seen := make(map[string]bool, len(list))
	out := make([]any, 0, len(list))
	for _, r := range list {
		var rec record
		switch v := r.(type) {
		case json.Number:
			rec = record{"user_id": v, "retweeted_at": t["created_at"]}
			changed = true
		case record:
			rec = v
			if _, ok := rec["retweeted_at"]; !ok {
				rec["retweeted_at"] = t["created_at"]
				changed = true
			} else {
				changed = normalizeField(rec, "retweeted_at") || changed
			}
		default:
			changed = true
			continue
		}
		key := fmt.Sprint(rec["user_id"])
		if seen[key] {
			changed = true
			continue
		}
		seen[key] = true
		out = append(out, rec)
	}
	t["retweets"] = out
	return changed
}

// migrateComments assigns ids to comments that lack one, continuing from the
// highest id present.
func migrateComments(t record) bool {
	list, ok := t["comments"].([]any)
	if !ok {
		t["comments"] = []any{}
		return true
	}
	var highest int64
	for _, c := range list {
		if rec, ok := c.(record); ok {
			if n, ok := rec["id"].(json.Number); ok {
				if id, err := n.Int64(); err == nil && id > highest {
					highest = id
				}
			}
		}
	}

	changed := false
	for _, c := range list {
		rec, ok := c.(record)
		if !ok {
			continue
		}
		if rec["id"] == nil {
			highest++
			rec["id"] = json.Number(fmt.Sprint(highest))
			changed = true
		}
		changed = normalizeField(rec, "created_at") || changed
		changed = ensure(rec, "likes", []any{}) || changed
		changed = ensure(rec, "replies", []any{}) || changed
		if replies, ok := rec["replies"].([]any); ok {
			for _, r := range replies {
				if rr, ok := r.(record); ok {
					changed = normalizeField(rr, "created_at") || changed
				}
			}
		}
	}
	return changed
}

func migrateUser(u record) bool {
	changed := renameKey(u, "password", "password_hash")
	changed = ensure(u, "followers", []any{}) || changed
	changed = ensure(u, "following", []any{}) || changed
	changed = ensure(u, "bio", "") || changed
	changed = normalizeField(u, "created_at") || changed
	return changed
}

func migrateNotification(n record) bool {
	changed := ensure(n, "seen", false)
	changed = normalizeField(n, "created_at") || changed
	return changed
}

// --- Field helpers ---

func renameKey(r record, from, to string) bool {
	v, ok := r[from]
	if !ok {
		return false
	}
	if _, exists := r[to]; !exists {
		r[to] = v
	}
	delete(r, from)
	return true
}

// ensure sets key to def when it is absent or null.
func ensure(r record, key string, def any) bool {
	if v, ok := r[key]; ok && v != nil {
		return false
	}
	r[key] = def
	return true
}

func normalizeField(r record, key string) bool {
	norm := NormalizeTimestamp(r[key])
	if s, ok := r[key].(string); ok && s == norm {
		return false
	}
	r[key] = norm
	return true
}
