package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// missingChannels returns the required channels userID is not a member of. A
// failed lookup counts as not joined.
func (b *Bot) missingChannels(userID int64) []string {
	var missing []string
	for _, channel := range b.cfg.RequiredChannels {
		joined, err := b.isMember(channel, userID)
		if err != nil {
			b.log.Warn("check channel membership", "err", err, "channel", channel, "user_id", userID)
		}
		if !joined {
			missing = append(missing, channel)
		}
	}
	return missing
}

func (b *Bot) isMember(channel string, userID int64) (bool, error) {
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			SuperGroupUsername: channel,
			UserID:             userID,
		},
	})
	if err != nil {
		return false, err
	}

	switch strings.ToLower(member.Status) {
	case "creator", "administrator", "member":
		return true, nil
	case "restricted":
		return member.IsMember, nil
	default:
		return false, nil
	}
}
