// Package discuss keeps the threaded comments of a post as an immutable tree
// and applies edits, replies and deletions to it once the comment API has
// accepted them.
package discuss
