package chat

import "strings"

const (
	ThinkingText = "Думаю…"
	ResetText    = "Контекст диалога очищен. Можете начать разговор заново."
	FailureText  = "Произошла ошибка при обращении к модели. Попробуйте позже или упростите запрос."

	ClearCommand = "/clear"

	// MaxReplyRunes is the longest reply handed to a front end.
	MaxReplyRunes = 4000
	ellipsis      = "..."
)

var resetPhrases = map[string]struct{}{
	"очистить контекст": {},
	"очистить":          {},
	"clear context":     {},
	"clear":             {},
}

// IsReset reports whether trimmed input asks to drop the conversation
// context: one of the reset phrases in any case, or the /clear command
// (optionally addressed as /clear@botname).
func IsReset(text string) bool {
	if text == ClearCommand || strings.HasPrefix(text, ClearCommand+"@") {
		return true
	}
	_, ok := resetPhrases[strings.ToLower(text)]
	return ok
}

// Truncate limits text to MaxReplyRunes characters, replacing the tail with
// an ellipsis when it has to cut.
func Truncate(text string) string {
	runes := []rune(text)
	if len(runes) <= MaxReplyRunes {
		return text
	}
	return string(runes[:MaxReplyRunes-len(ellipsis)]) + ellipsis
}
