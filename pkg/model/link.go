package model

import "github.com/google/uuid"

// LinkEndpoint identifies one end of a link: an operator and one of its ports.
type LinkEndpoint struct {
	OperatorID string `json:"operatorID" validate:"required"`
	PortID     string `json:"portID"     validate:"required"`
}

// Link is a directed edge from an output port of one operator to an input
// port of another.
type Link struct {
	LinkID string       `json:"linkID" validate:"required"`
	Source LinkEndpoint `json:"source" validate:"required"`
	Target LinkEndpoint `json:"target" validate:"required"`
}

// NewLinkID generates a fresh link ID.
func NewLinkID() string {
	return "link-" + uuid.New().String()
}

// Touches reports whether either endpoint of the link references the given
// operator.
func (l Link) Touches(operatorID string) bool {
	return l.Source.OperatorID == operatorID || l.Target.OperatorID == operatorID
}
