package models

// AlertLevel follows the Bootstrap contextual colour names.
type AlertLevel int

const (
	AlertLevelPrimary AlertLevel = iota
	AlertLevelSecondary
	AlertLevelSuccess
	AlertLevelDanger
	AlertLevelWarning
	AlertLevelInfo
	AlertLevelLight
	AlertLevelDark
)

var alertLevelColors = map[AlertLevel]string{
	AlertLevelPrimary:   "#4ABCF9",
	AlertLevelSecondary: "#E7E8EA",
	AlertLevelSuccess:   "#2FA44F",
	AlertLevelDanger:    "#D50200",
	AlertLevelWarning:   "#DE9E31",
	AlertLevelInfo:      "#D1ECF1",
	AlertLevelLight:     "#FFFFFF",
	AlertLevelDark:      "#666666",
}

var alertLevelNames = map[AlertLevel]string{
	AlertLevelPrimary:   "primary",
	AlertLevelSecondary: "secondary",
	AlertLevelSuccess:   "success",
	AlertLevelDanger:    "danger",
	AlertLevelWarning:   "warning",
	AlertLevelInfo:      "info",
	AlertLevelLight:     "light",
	AlertLevelDark:      "dark",
}

func (l AlertLevel) Color() string {
	if color, ok := alertLevelColors[l]; ok {
		return color
	}
	return alertLevelColors[AlertLevelPrimary]
}

func (l AlertLevel) String() string {
	if name, ok := alertLevelNames[l]; ok {
		return name
	}
	return "primary"
}

// AlertLevelForEvent picks the colour used when a pipeline event is posted to chat.
func AlertLevelForEvent(e Event) AlertLevel {
	switch e {
	case EventBreaks, EventFails:
		return AlertLevelDanger
	case EventFixed, EventPasses:
		return AlertLevelSuccess
	case EventCancelled:
		return AlertLevelWarning
	default:
		return AlertLevelPrimary
	}
}
