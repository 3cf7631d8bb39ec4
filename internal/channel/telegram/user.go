package telegram

import (
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/keepmind9/chanbridge/internal/logger"
	"github.com/keepmind9/chanbridge/internal/message"
)

// mapUser builds the normalized sender identity for an event. Returns
// ok=false when the event has no sender or the allowlist rejects them;
// either way the event must be dropped without a callback.
func (a *Adapter) mapUser(from *tgbotapi.User) (message.User, bool) {
	if from == nil {
		return message.User{}, false
	}

	nativeID := strconv.FormatInt(from.ID, 10)
	if !a.allow.Allowed(nativeID) {
		logger.WithFields(logrus.Fields{
			"platform": "telegram",
			"user_id":  nativeID,
			"username": from.UserName,
		}).Debug("dropping-message-from-user-not-in-allowlist")
		return message.User{}, false
	}

	displayName := from.FirstName
	if from.LastName != "" {
		displayName = from.FirstName + " " + from.LastName
	}

	metadata := make(map[string]string)
	if from.UserName != "" {
		metadata["username"] = from.UserName
	}
	if from.LanguageCode != "" {
		metadata["locale"] = from.LanguageCode
	}

	return message.User{
		ID:          message.UserID(message.ChannelTelegram, nativeID),
		DisplayName: displayName,
		Channel:     message.ChannelTelegram,
		NativeID:    nativeID,
		Metadata:    metadata,
	}, true
}
