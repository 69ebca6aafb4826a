// Package hypr wraps the hyprctl calls orb uses for on-screen status.
package hypr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Notification icons understood by `hyprctl dispatch notify`.
const (
	IconWarning = 0
	IconInfo    = 1
	IconHint    = 2
	IconError   = 3
	IconOK      = 5
)

// MaxNotifyRunes bounds notification text; hyprctl draws a single line.
const MaxNotifyRunes = 160

// DefaultColor is used when Notify is given no color.
const DefaultColor = "rgb(89b4fa)"

type monitor struct {
	Name    string `json:"name"`
	Focused bool   `json:"focused"`
}

// Notify sends a Hyprland notification. Multi-line text is joined onto one
// line and long text is cut at MaxNotifyRunes.
func Notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if strings.TrimSpace(color) == "" {
		color = DefaultColor
	}
	_, err := hyprctl(ctx, "--quiet", "dispatch", "notify",
		strconv.Itoa(icon), strconv.Itoa(timeoutMS), color, NotifyText(text))
	return err
}

// NotifyText flattens text for a one-line notification.
func NotifyText(text string) string {
	lines := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	parts := lines[:0]
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			parts = append(parts, line)
		}
	}
	flat := strings.Join(parts, " · ")

	runes := []rune(flat)
	if len(runes) <= MaxNotifyRunes {
		return flat
	}
	return strings.TrimSpace(string(runes[:MaxNotifyRunes-1])) + "…"
}

// DismissNotify dismisses active Hyprland notifications.
func DismissNotify(ctx context.Context) error {
	_, err := hyprctl(ctx, "--quiet", "dispatch", "dismissnotify")
	return err
}

// QueryFocusedMonitor returns the focused monitor name, or the first monitor
// when none reports focus.
func QueryFocusedMonitor(ctx context.Context) (string, error) {
	out, err := hyprctl(ctx, "-j", "monitors")
	if err != nil {
		return "", err
	}
	var monitors []monitor
	if err := json.Unmarshal(out, &monitors); err != nil {
		return "", fmt.Errorf("decode hyprctl monitors json: %w", err)
	}
	return focusedMonitor(monitors)
}

func focusedMonitor(monitors []monitor) (string, error) {
	if len(monitors) == 0 {
		return "", errors.New("hyprctl monitors returned no outputs")
	}
	pick := monitors[0]
	for _, m := range monitors {
		if m.Focused {
			pick = m
			break
		}
	}
	return strings.TrimSpace(pick.Name), nil
}

// hyprctl runs one hyprctl invocation and folds its output into the error.
func hyprctl(ctx context.Context, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, "hyprctl", args...).CombinedOutput()
	if err == nil {
		return out, nil
	}
	if detail := strings.TrimSpace(string(out)); detail != "" {
		return nil, fmt.Errorf("hyprctl %s: %w (%s)", strings.Join(args, " "), err, detail)
	}
	return nil, fmt.Errorf("hyprctl %s: %w", strings.Join(args, " "), err)
}
