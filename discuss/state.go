package discuss

// NodeState is the interaction state of one comment. Editing and Replying are
// independent toggles; Busy guards every request made on the comment.
type NodeState struct {
	Editing    bool
	EditDraft  string
	Replying   bool
	ReplyDraft string
	Busy       bool
	Error      string
}

// PostState is the interaction state of the post level "add a comment" form.
type PostState struct {
	Draft string
	Busy  bool
	Error string
}

// NodeView is a comment ready to be rendered for the current user.
type NodeView struct {
	Comment   *Comment
	Depth     int
	State     NodeState
	CanEdit   bool
	CanDelete bool
	CanReply  bool
	Replies   []*NodeView
}

// TreeView is the whole comment section of a post.
type TreeView struct {
	PostID     string
	Comments   []*NodeView
	Count      int
	CanComment bool
	Post       PostState
}
