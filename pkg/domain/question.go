package domain

// Token is an accepted answer to a confirmation question.
type Token string

const (
	TokenYes         Token = "yes"
	TokenNo          Token = "no"
	TokenAll         Token = "all"
	TokenSkipAll     Token = "skip all"
	TokenDontAskMore Token = "don't ask again"
)

// DefaultAnswer is the default reply of a confirmation when none is configured.
const DefaultAnswer = "y"

// ConfirmRequest describes a yes/no decision the engine needs before it can proceed.
type ConfirmRequest struct {
	Question string
	// Default is used when the caller replies with an empty line. Empty means DefaultAnswer.
	Default string
	Subject string
	// ExplicitYesRequired makes only TokenYes affirmative and suppresses TokenAll.
	ExplicitYesRequired bool
	// Group is non-empty when a batch of related decisions is in flight.
	Group      string
	AllowNever bool
}

// DefaultOrYes returns the configured default, falling back to DefaultAnswer.
func (r ConfirmRequest) DefaultOrYes() string {
	if r.Default == "" {
		return DefaultAnswer
	}
	return r.Default
}

// ConfirmResult is the resolution of a ConfirmRequest.
type ConfirmResult struct {
	Yes   bool
	Token Token
}

// PromptRequest describes a free-text question.
type PromptRequest struct {
	Question string
	Default  string
	Subject  string
}

// QuestionPayload is the structured body written inside a question region.
type QuestionPayload struct {
	Type    string  `json:"type" cbor:"type"`
	Text    string  `json:"text" cbor:"text"`
	Options []Token `json:"options,omitempty" cbor:"options,omitempty"`
	Default string  `json:"default,omitempty" cbor:"default,omitempty"`
	Subject string  `json:"subject,omitempty" cbor:"subject,omitempty"`
}

const (
	QuestionTypeConfirm = "question"
	QuestionTypePrompt  = "prompt"
)
