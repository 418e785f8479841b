// Package composer holds the draft of the next outgoing message.
package composer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"linguachat/client/internal/config"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = fmt.Errorf("message exceeds %d characters", config.MaxMessageLength)
)

// Sender delivers text to the open room.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// textRules bounds an outgoing message to config.MaxMessageLength.
var textRules = fmt.Sprintf("required,max=%d", config.MaxMessageLength)

// Composer is safe for concurrent use.
type Composer struct {
	mu       sync.Mutex
	draft    string
	sender   Sender
	validate *validator.Validate
}

func New(sender Sender) *Composer {
	return &Composer{sender: sender, validate: validator.New()}
}

func (c *Composer) SetDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

func (c *Composer) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Submit sends the trimmed draft. The draft is cleared only when the
// sender accepts the text, unless it was edited meanwhile.
func (c *Composer) Submit(ctx context.Context) error {
	draft := c.Draft()
	text := strings.TrimSpace(draft)

	if err := c.validate.Var(text, textRules); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "max" {
			return ErrMessageTooLong
		}
		return ErrEmptyMessage
	}

	if err := c.sender.Send(ctx, text); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	c.mu.Lock()
	if c.draft == draft {
		c.draft = ""
	}
	c.mu.Unlock()
	return nil
}
