package channel

import (
	"errors"
	"fmt"

	"github.com/keepmind9/chanbridge/internal/message"
)

// ErrNotConnected is returned by Send when the adapter has no live
// platform connection (before Start, after Stop, or while disabled).
var ErrNotConnected = errors.New("channel: not connected")

// PlatformError wraps an error surfaced by a platform SDK. It is forwarded
// to the OnError handler and never thrown back into the SDK's event loop.
type PlatformError struct {
	Channel message.ChannelType
	Err     error
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("%s: platform error: %v", e.Channel, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}
