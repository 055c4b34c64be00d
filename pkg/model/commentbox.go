package model

import (
	"time"

	"github.com/google/uuid"
)

// Comment is a single entry inside a comment box thread.
type Comment struct {
	Content      string    `json:"content"`
	CreatorName  string    `json:"creatorName"`
	CreatorID    string    `json:"creatorID"`
	CreationTime time.Time `json:"creationTime"`
}

// CommentBox is a freestanding canvas annotation holding an ordered comment
// thread. It is independent of operators and links.
type CommentBox struct {
	CommentBoxID string    `json:"commentBoxID" validate:"required"`
	Position     Point     `json:"commentBoxPosition"`
	Comments     []Comment `json:"comments"`
}

// NewCommentBoxID generates a fresh comment box ID.
func NewCommentBoxID() string {
	return "commentBox-" + uuid.New().String()
}

// Clone returns a copy of the comment box with its own comment slice.
func (c CommentBox) Clone() CommentBox {
	clone := c
	if c.Comments != nil {
		clone.Comments = make([]Comment, len(c.Comments))
		copy(clone.Comments, c.Comments)
	}

	return clone
}
