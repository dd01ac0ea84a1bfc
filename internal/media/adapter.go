package media

import (
	"log/slog"
	"time"

	"github.com/chronologos/mediaplug/internal/envelope"
	"github.com/chronologos/mediaplug/internal/plugin"
)

// Adapter is the controller's view of a plugin process.
//
// SendMessage hands a message to the transport in order. SendUrgent is the
// one exception to that order: it overtakes ordinary messages not yet on
// the wire and is used only for size changes.
type Adapter interface {
	Init(spec plugin.LaunchSpec) error
	RequestShutdown()
	Idle()

	IsRunning() bool
	IsBlocked() bool
	SetPollInterval(d time.Duration)
	MessageClassVersion(class string) string
	CPUUsage() float64

	AddSharedMemory(size int) string
	RemoveSharedMemory(name string)
	SharedMemory(name string) []byte

	SendMessage(e *envelope.Envelope)
	SendUrgent(e *envelope.Envelope)
}

// AdapterFactory creates the adapter for a controller.
type AdapterFactory func(owner plugin.Owner, log *slog.Logger) Adapter

// NewProcessAdapter runs the plugin as a child process.
func NewProcessAdapter(owner plugin.Owner, log *slog.Logger) Adapter {
	return plugin.NewProcess(owner, log)
}
