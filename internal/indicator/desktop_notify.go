package indicator

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const (
	notificationsDest = "org.freedesktop.Notifications"
	notificationsPath = "/org/freedesktop/Notifications"
)

// urgency levels from the freedesktop notification hints.
const (
	urgencyLow      byte = 0
	urgencyNormal   byte = 1
	urgencyCritical byte = 2
)

// desktopNotification is one Notify call. ReplaceID 0 asks the server for a new ID.
type desktopNotification struct {
	AppName   string
	ReplaceID uint32
	Summary   string
	Urgency   byte
	TimeoutMS int
}

func (n desktopNotification) args() []string {
	return []string{
		"Notify",
		"susssasa{sv}i",
		n.AppName,
		strconv.FormatUint(uint64(n.ReplaceID), 10),
		"",
		n.Summary,
		"",
		"0",
		"1", "urgency", "y", strconv.Itoa(int(n.Urgency)),
		strconv.Itoa(n.TimeoutMS),
	}
}

// desktopNotify sends n over the session bus and returns the server-assigned ID.
func desktopNotify(ctx context.Context, n desktopNotification) (uint32, error) {
	out, err := busctl(ctx, n.args()...)
	if err != nil {
		return 0, fmt.Errorf("desktop notify: %w", err)
	}

	fields := strings.Fields(out)
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify: unexpected reply %q", out)
	}
	id, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("desktop notify: parse id %q: %w", fields[1], err)
	}
	return uint32(id), nil
}

func desktopDismiss(ctx context.Context, id uint32) error {
	if _, err := busctl(ctx, "CloseNotification", "u", strconv.FormatUint(uint64(id), 10)); err != nil {
		return fmt.Errorf("desktop dismiss %d: %w", id, err)
	}
	return nil
}

// busctl calls one method on the notifications interface and returns trimmed stdout.
func busctl(ctx context.Context, method ...string) (string, error) {
	args := append([]string{"--user", "call", notificationsDest, notificationsPath, notificationsDest}, method...)
	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed == "" {
			return "", err
		}
		return "", fmt.Errorf("%w (%s)", err, trimmed)
	}
	return trimmed, nil
}
