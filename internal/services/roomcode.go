package services

import "unicode/utf8"

// roomMappings maps the two character codes printed on ground floor doors
var roomMappings = map[string]string{
	"10": "G110",
	"11": "G111",
	"12": "G112",
	"20": "G120",
	"21": "G121",
}

// ResolveRoom maps a scanned QR payload to the room label shown to people.
// Every payload resolves to some label, and the same payload always to the same one.
func ResolveRoom(raw string) string {
	switch utf8.RuneCountInString(raw) {
	case 2:
		if room, ok := roomMappings[raw]; ok {
			return room
		}
		return "Unknown Room (" + raw + ")"
	case 3:
		// floor digit followed by the room number on that floor
		runes := []rune(raw)
		floor, number := string(runes[:1]), string(runes[1:])
		return floor + number
	default:
		return "Room " + raw
	}
}
