package telegram

import "context"

// Haptic is a host haptic-feedback kind
type Haptic string

const (
	HapticLight   Haptic = "light"
	HapticMedium  Haptic = "medium"
	HapticHeavy   Haptic = "heavy"
	HapticSuccess Haptic = "success"
	HapticError   Haptic = "error"
	HapticWarning Haptic = "warning"
)

// Feedback is the UI directive attached to an API response: which haptic to
// fire and what toast to show. The Mini App applies it when running inside
// the host and degrades to a plain toast otherwise.
type Feedback struct {
	Haptic Haptic `json:"haptic,omitempty"`
	Toast  string `json:"toast,omitempty"`
}

// Confirmer asks the user to approve a destructive action and resolves to a
// boolean. It unifies host confirmation dialogs, bot inline-keyboard
// confirmations and non-interactive callers behind one interface.
type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

// AutoConfirm approves everything. Used where the confirmation already
// happened upstream, e.g. the Mini App's own dialog before it calls the API.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(context.Context, string) (bool, error) {
	return true, nil
}
