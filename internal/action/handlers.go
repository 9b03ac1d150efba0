package action

import (
	"context"
	"fmt"
	log "log/slog"
	"time"
)

// Default handlers simulate their integrations and return a human-readable
// description of the effect. Real smart-home/media/etc. backends would slot
// in through RegisterHandler.

func handleSmartHome(_ context.Context, params map[string]any) (any, error) {
	device := str(params, "device", "device")
	location := str(params, "location", "")
	act := str(params, "action", "")
	// value can be any JSON type; numbers decode as float64.
	value := params["value"]

	log.Info("Smart home action", "action", act, "device", device, "location", location)

	switch {
	case act == "on":
		return fmt.Sprintf("Turned on %s in %s", device, location), nil
	case act == "off":
		return fmt.Sprintf("Turned off %s in %s", device, location), nil
	case act == "set" && value != nil && value != "":
		return fmt.Sprintf("Set %s in %s to %v", device, location, value), nil
	default:
		return fmt.Sprintf("Executed %s on %s", act, device), nil
	}
}

func handleInformation(_ context.Context, params map[string]any) (any, error) {
	infoType := str(params, "type", "")
	location := str(params, "location", "current")

	log.Info("Information request", "type", infoType, "location", location)

	switch infoType {
	case "weather":
		return "The current weather is 72°F and sunny", nil
	case "news":
		return "Here are the top news headlines...", nil
	case "time":
		return fmt.Sprintf("The current time is %s", time.Now().Format("03:04 PM")), nil
	default:
		return fmt.Sprintf("Retrieved information about %s", infoType), nil
	}
}

func handleReminder(_ context.Context, params map[string]any) (any, error) {
	act := str(params, "action", "")
	at := str(params, "time", "")
	message := str(params, "message", "")

	log.Info("Reminder action", "action", act, "time", at, "message", message)

	switch act {
	case "set":
		return fmt.Sprintf("I'll remind you %s at %s", message, at), nil
	case "list":
		return "You have 3 upcoming reminders", nil
	case "cancel":
		return "Reminder cancelled", nil
	default:
		return "Reminder action completed", nil
	}
}

func handleMedia(_ context.Context, params map[string]any) (any, error) {
	act := str(params, "action", "")
	mediaType := str(params, "type", "music")
	title := str(params, "title", "")

	log.Info("Media action", "action", act, "type", mediaType, "title", title)

	switch act {
	case "play":
		if title != "" {
			return fmt.Sprintf("Playing %s", title), nil
		}
		return fmt.Sprintf("Playing %s", mediaType), nil
	case "pause":
		return "Media paused", nil
	case "stop":
		return "Media stopped", nil
	case "next":
		return "Playing next track", nil
	case "previous":
		return "Playing previous track", nil
	default:
		return "Media action completed", nil
	}
}

func handleCommunication(_ context.Context, params map[string]any) (any, error) {
	act := str(params, "action", "")
	recipient := str(params, "recipient", "")

	log.Info("Communication action", "action", act, "recipient", recipient)

	switch act {
	case "send_message":
		return fmt.Sprintf("Message sent to %s", recipient), nil
	case "call":
		return fmt.Sprintf("Calling %s", recipient), nil
	case "email":
		return fmt.Sprintf("Email sent to %s", recipient), nil
	default:
		return "Communication action completed", nil
	}
}

func handleSearch(_ context.Context, params map[string]any) (any, error) {
	query := str(params, "query", "")

	log.Info("Search query", "query", query)

	return fmt.Sprintf("Here's what I found about %s...", query), nil
}

// str reads a parameter as a string, falling back to def when the key is
// absent, not a string, or empty.
func str(params map[string]any, key, def string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return def
}
