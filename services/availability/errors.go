package availability

import (
	"errors"
	"strings"
)

// ErrOwnService marks a query against the caller's own service profile.
// Self-booking is forbidden; UI hides the booking controls instead of
// showing an error.
var ErrOwnService = errors.New("availability: provider is the caller's own service")

// ownServiceMarkers are the localized fragments the server embeds in its
// self-booking rejection. The server exposes no machine-readable code yet,
// so this function is the single place that inspects the wording.
var ownServiceMarkers = []string{
	"own service",
	"собственный сервис",
	"o'z servis",
}

func classifyOwnService(message string) bool {
	lowered := strings.ToLower(message)
	for _, marker := range ownServiceMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}
