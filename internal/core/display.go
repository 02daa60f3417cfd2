package core

const (
	displayLengthSmall  = 6
	displayLengthMedium = 8
	displayLengthLarge  = 10
)

// DisplayIDLength returns how many characters of a message id to show for a chat
// holding messageCount messages.
func DisplayIDLength(messageCount int) int {
	if messageCount < 500 {
		return displayLengthSmall
	}
	if messageCount < 5000 {
		return displayLengthMedium
	}
	return displayLengthLarge
}

// ShortID truncates id for display.
func ShortID(id string, length int) string {
	if length <= 0 || len(id) <= length {
		return id
	}
	return id[:length]
}
