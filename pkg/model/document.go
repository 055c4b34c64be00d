package model

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// WorkflowSettings carries engine tuning knobs persisted with the document.
type WorkflowSettings struct {
	DataTransferBatchSize int `json:"dataTransferBatchSize"`
}

// DefaultWorkflowSettings returns the settings applied to new documents.
func DefaultWorkflowSettings() WorkflowSettings {
	return WorkflowSettings{DataTransferBatchSize: 400}
}

// WorkflowContent is the logical graph plus canvas positions, the JSON shape
// stored inside WorkflowDocument.Content.
type WorkflowContent struct {
	Operators         []Operator            `json:"operators"`
	OperatorPositions map[string]Point      `json:"operatorPositions"`
	Links             []Link                `json:"links"`
	CommentBoxes      []CommentBox          `json:"commentBoxes"`
	Breakpoints       map[string]Breakpoint `json:"breakpoints,omitempty"`
	Settings          WorkflowSettings      `json:"settings"`
}

// WorkflowDocument is the persisted workflow record exchanged with the
// platform API. Content holds a stringified WorkflowContent.
type WorkflowDocument struct {
	WID         uint64 `json:"wid"`
	Name        string `json:"name"        validate:"required,min=1"`
	Description string `json:"description"`
	Content     string `json:"content"     validate:"required"`
	IsPublic    bool   `json:"isPublic"`
}

var documentValidator = validator.New()

// Validate checks the document's struct constraints.
func (d *WorkflowDocument) Validate() error {
	if err := documentValidator.Struct(d); err != nil {
		return fmt.Errorf("invalid workflow document: %w", err)
	}

	return nil
}

// DecodeContent parses the stringified content payload.
func (d *WorkflowDocument) DecodeContent() (*WorkflowContent, error) {
	var content WorkflowContent

	if err := json.Unmarshal([]byte(d.Content), &content); err != nil {
		return nil, fmt.Errorf("failed to decode workflow content: %w", err)
	}

	return &content, nil
}

// SetContent serializes the content into the document.
func (d *WorkflowDocument) SetContent(content *WorkflowContent) error {
	payload, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("failed to encode workflow content: %w", err)
	}

	d.Content = string(payload)

	return nil
}
