package recurrence

import "context"

// Choice is the outcome of a user decision prompt.
type Choice string

const (
	// ChoiceUpdateAll applies the pending change to the whole series.
	ChoiceUpdateAll Choice = "update-all"
	// ChoiceSplit spawns the next occurrence and detaches the current note.
	ChoiceSplit Choice = "split"
	// ChoiceCancel abandons the pending change.
	ChoiceCancel Choice = "cancel"
)

// Valid reports whether c is one of the three known choices.
func (c Choice) Valid() bool {
	switch c {
	case ChoiceUpdateAll, ChoiceSplit, ChoiceCancel:
		return true
	}
	return false
}

// PromptKind selects the dialog framing.
type PromptKind string

const (
	KindEditing PromptKind = "editing"
	KindFocus   PromptKind = "focus"
)

// Request describes a decision prompt to present to the user.
type Request struct {
	Kind        PromptKind
	Path        string
	Description string
}

// Prompter presents a three-way choice dialog and blocks until the user
// answers or ctx is cancelled. The dialog implementation lives entirely in
// the UI layer.
type Prompter interface {
	RequestChoice(ctx context.Context, req Request) (Choice, error)
}
