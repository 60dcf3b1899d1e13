package capture

import (
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"
)

const (
	sdReady    = daemon.SdNotifyReady
	sdStopping = daemon.SdNotifyStopping
)

func sdStatus(s string) string { return "STATUS=" + s }

// notify reports state to the service manager. It is a no-op outside a
// systemd unit.
func notify(logger *slog.Logger, state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		logger.Debug("sd_notify failed", "state", state, "err", err)
	}
}
