package discuss

// BuildTree nests comments under their parents using ParentID. Comments whose
// parent is not part of the list become roots. Replies a comment already
// carries are kept in front of the ones attached here.
func BuildTree(comments []*Comment) []*Comment {
	nodes := make([]*Comment, 0, len(comments))
	nodesByID := make(map[string]*Comment, len(comments))

	for _, comment := range comments {
		node := *comment
		node.Replies = append([]*Comment(nil), comment.Replies...)

		nodes = append(nodes, &node)
		nodesByID[node.ID] = &node
	}

	roots := make([]*Comment, 0, len(nodes))

	for _, node := range nodes {
		if node.ParentID == "" {
			roots = append(roots, node)

			continue
		}

		parent, found := nodesByID[node.ParentID]
		if !found || reachesItself(nodesByID, node) {
			roots = append(roots, node)

			continue
		}

		parent.Replies = append(parent.Replies, node)
	}

	return roots
}

// reachesItself reports whether following ParentID from node leads to a loop.
func reachesItself(nodesByID map[string]*Comment, node *Comment) bool {
	seen := map[string]struct{}{node.ID: {}}

	for id := node.ParentID; id != ""; {
		if _, ok := seen[id]; ok {
			return true
		}

		seen[id] = struct{}{}

		parent, ok := nodesByID[id]
		if !ok {
			return false
		}

		id = parent.ParentID
	}

	return false
}

// Walk visits every comment in pre-order together with its depth. Returning
// false from fn skips the comment's replies.
func Walk(roots []*Comment, fn func(comment *Comment, depth int) bool) {
	walk(roots, 0, fn)
}

func walk(comments []*Comment, depth int, fn func(comment *Comment, depth int) bool) {
	for _, comment := range comments {
		if fn(comment, depth) {
			walk(comment.Replies, depth+1, fn)
		}
	}
}

// Count returns the number of comments in the tree.
func Count(roots []*Comment) int {
	count := 0

	Walk(roots, func(*Comment, int) bool {
		count++

		return true
	})

	return count
}

// Find returns the comment with the given id and its depth.
func Find(roots []*Comment, id string) (*Comment, int, bool) {
	var (
		found *Comment
		depth int
	)

	Walk(roots, func(comment *Comment, d int) bool {
		if found != nil {
			return false
		}

		if comment.ID == id {
			found = comment
			depth = d

			return false
		}

		return true
	})

	return found, depth, found != nil
}

// Replace returns a tree in which the comment with updated.ID is swapped for
// updated. Only the ancestors of the replaced comment are copied.
func Replace(roots []*Comment, updated *Comment) ([]*Comment, bool) {
	return rewrite(roots, updated.ID, func(*Comment) []*Comment {
		return []*Comment{updated}
	})
}

// Remove returns a tree without the comment with the given id and its replies.
func Remove(roots []*Comment, id string) ([]*Comment, bool) {
	return rewrite(roots, id, func(*Comment) []*Comment {
		return nil
	})
}

// AppendReply returns a tree in which reply is the last reply of parentID.
// When parentID already has a reply with the same id, that reply is replaced
// in place and keeps its own replies.
func AppendReply(roots []*Comment, parentID string, reply *Comment) ([]*Comment, bool) {
	return rewrite(roots, parentID, func(parent *Comment) []*Comment {
		return []*Comment{parent.withReplies(appendOrReplace(parent.Replies, reply))}
	})
}

// AppendRoot is AppendReply for top level comments.
func AppendRoot(roots []*Comment, comment *Comment) []*Comment {
	return appendOrReplace(roots, comment)
}

func appendOrReplace(siblings []*Comment, comment *Comment) []*Comment {
	result := make([]*Comment, 0, len(siblings)+1)
	result = append(result, siblings...)

	for i, sibling := range siblings {
		if sibling.ID == comment.ID {
			result[i] = comment.withReplies(sibling.Replies)

			return result
		}
	}

	return append(result, comment)
}

// rewrite swaps the comment with the given id for whatever fn returns and
// rebuilds the path from the roots down to it. Siblings are shared.
func rewrite(comments []*Comment, id string, fn func(target *Comment) []*Comment) ([]*Comment, bool) {
	for i, comment := range comments {
		if comment.ID == id {
			replacement := fn(comment)

			result := make([]*Comment, 0, len(comments)-1+len(replacement))
			result = append(result, comments[:i]...)
			result = append(result, replacement...)
			result = append(result, comments[i+1:]...)

			return result, true
		}

		replies, ok := rewrite(comment.Replies, id, fn)
		if !ok {
			continue
		}

		result := make([]*Comment, len(comments))
		copy(result, comments)
		result[i] = comment.withReplies(replies)

		return result, true
	}

	return comments, false
}
