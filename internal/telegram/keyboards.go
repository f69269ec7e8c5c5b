package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/TGVoiceBot/internal/catalog"
)

func modelKeyboard(rows [][]catalog.MenuItem) tgbotapi.InlineKeyboardMarkup {
	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, item := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(item.Label, item.Data))
		}
		keyboard = append(keyboard, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

func pitchKeyboard(offsets []int) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(offsets))
	for _, offset := range offsets {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(pitchLabel(offset), pitchPrefix+strconv.Itoa(offset)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func pitchLabel(offset int) string {
	if offset > 0 {
		return "+" + strconv.Itoa(offset)
	}
	return strconv.Itoa(offset)
}

func menuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("🎙 Convert voice", dataConvert)),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🎁 Invite friends", dataInvite),
			tgbotapi.NewInlineKeyboardButtonData("💰 Credits", dataCredits),
		),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("❓ Help", dataHelp)),
	)
}

// joinKeyboard has one link button per channel the user still has to join.
func joinKeyboard(channels []string) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(channels))
	for _, channel := range channels {
		url := "https://t.me/" + strings.TrimPrefix(channel, "@")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(channel, url)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
