// Package audio is the PulseAudio side of orb: input discovery, microphone
// capture behind the capture.Platform contract, decoding and playback.
package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	clientName     = "orb"
	clientIconName = "audio-input-microphone"
)

var (
	// ErrNoInputDevices means pulse reported no sources at all.
	ErrNoInputDevices = errors.New("no audio input devices found")
	// ErrInputNotFound means a configured input term matched no source.
	ErrInputNotFound = errors.New("audio input not found")
	// ErrInputUnusable means neither the input nor its fallback can record.
	ErrInputUnusable = errors.New("audio input unusable")
)

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Usable reports whether the source can record right now.
func (d Device) Usable() bool {
	return d.Available && !d.Muted
}

func (d Device) problem() string {
	if d.Muted {
		return "muted"
	}
	if !d.Available {
		return "unavailable"
	}
	return ""
}

// String renders the device as one line of the devices listing.
func (d Device) String() string {
	mark := " "
	if d.Default {
		mark = "*"
	}
	return fmt.Sprintf("%s id=%s | description=%q | state=%s | available=%s | muted=%s",
		mark, d.ID, d.Description, d.State, yesNo(d.Available), yesNo(d.Muted))
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// Selection is the source chosen for capture. Warning is set when the
// configured input was skipped for its fallback.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(clientName),
		pulse.ClientApplicationIconName(clientIconName),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	return client, nil
}

// ListDevices returns the pulse input sources.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return listDevices(client)
}

func listDevices(client *pulse.Client) ([]Device, error) {
	def, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}

	var reply pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &reply); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(reply))
	for _, info := range reply {
		if info == nil {
			continue
		}
		devices = append(devices, deviceFromInfo(info, def.ID()))
	}
	return devices, nil
}

func deviceFromInfo(info *pulseproto.GetSourceInfoReply, defaultID string) Device {
	return Device{
		ID:          info.SourceName,
		Description: info.Device,
		State:       sourceState(info.State),
		Available:   sourceAvailable(info),
		Muted:       info.Mute,
		Default:     info.SourceName == defaultID,
	}
}

// SelectDevice resolves the configured input and fallback against live sources.
func SelectDevice(ctx context.Context, input, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return sourcePicker(devices).pick(input, fallback)
}

// sourcePicker matches configured terms against a fetched source list.
// "default" and the empty term mean the pulse default source; anything else
// is a case-insensitive substring of the id or description.
type sourcePicker []Device

func (s sourcePicker) find(term string) (Device, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" || term == "default" {
		for _, d := range s {
			if d.Default {
				return d, nil
			}
		}
		return Device{}, fmt.Errorf("%w: default source is missing", ErrInputNotFound)
	}
	for _, d := range s {
		if deviceMatches(d, term) {
			return d, nil
		}
	}
	return Device{}, fmt.Errorf("%w: %q matched no source", ErrInputNotFound, term)
}

func (s sourcePicker) pick(input, fallback string) (Selection, error) {
	if len(s) == 0 {
		return Selection{}, ErrNoInputDevices
	}

	primary, err := s.find(input)
	if err != nil {
		return Selection{}, fmt.Errorf("audio.input: %w", err)
	}
	if primary.Usable() {
		return Selection{Device: primary}, nil
	}

	reason := primary.problem()
	alt, err := s.find(fallback)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %q is %s and audio.fallback failed: %w", ErrInputUnusable, primary.ID, reason, err)
	}
	if !alt.Usable() {
		return Selection{}, fmt.Errorf("%w: %q is %s and fallback %q is %s", ErrInputUnusable, primary.ID, reason, alt.ID, alt.problem())
	}

	return Selection{
		Device:   alt,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, alt.ID),
		Fallback: alt.ID != primary.ID,
	}, nil
}

func deviceMatches(d Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(d.ID), term) ||
		strings.Contains(strings.ToLower(d.Description), term)
}

var sourceStates = map[uint32]string{
	0: "running",
	1: "idle",
	2: "suspended",
}

func sourceState(state uint32) string {
	if name, ok := sourceStates[state]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", state)
}

// portAvailableNo is pulse's "unplugged" port availability.
const portAvailableNo = 1

// sourceAvailable is false only when the active port is known to be unplugged.
func sourceAvailable(info *pulseproto.GetSourceInfoReply) bool {
	if info == nil {
		return false
	}
	for _, port := range info.Ports {
		if port.Name == info.ActivePortName {
			return port.Available != portAvailableNo
		}
	}
	return true
}
