package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/digkill/TGVoiceBot/internal/catalog"
	"github.com/digkill/TGVoiceBot/internal/config"
	"github.com/digkill/TGVoiceBot/internal/service"
)

const (
	pitchPrefix = "pitch_"

	dataInvite  = "invite"
	dataCredits = "credits"
	dataHelp    = "help"
	dataConvert = "convert_voice"
)

type AudioStorage interface {
	UploadAudio(ctx context.Context, data []byte, contentType string) (string, error)
}

type Bot struct {
	cfg          config.Config
	api          *tgbotapi.BotAPI
	log          *slog.Logger
	users        *service.UserService
	selection    *service.SelectionService
	storage      AudioStorage
	locks        *chatLocks
	httpClient   *http.Client
	fileEndpoint string
	wg           sync.WaitGroup
}

func NewBot(cfg config.Config, api *tgbotapi.BotAPI, log *slog.Logger, users *service.UserService, selection *service.SelectionService, storage AudioStorage) *Bot {
	return &Bot{
		cfg:          cfg,
		api:          api,
		log:          log,
		users:        users,
		selection:    selection,
		storage:      storage,
		locks:        newChatLocks(),
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		fileEndpoint: tgbotapi.FileEndpoint,
	}
}

// Run handles updates until ctx is cancelled. Chats are served concurrently;
// updates of a single chat are applied in order.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.log.Info("telegram bot started", "username", b.api.Self.UserName)

	for {
		select {
		case update := <-updates:
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return ctx.Err()
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	chatID, ok := updateChatID(update)
	if !ok {
		return
	}
	unlock := b.locks.Lock(chatID)
	defer unlock()

	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.Chat.IsPrivate() || (msg.From != nil && msg.From.IsBot) {
		return
	}

	if msg.Voice != nil || msg.Audio != nil {
		b.handleAudio(ctx, msg)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	b.sendText(msg.Chat.ID, msgSendAudio)
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch strings.ToLower(msg.Command()) {
	case "start":
		b.handleStart(ctx, msg)
	case "menu":
		b.sendMenu(msg.Chat.ID)
	case "invite":
		b.sendInvite(ctx, msg.Chat.ID)
	case "credits":
		b.sendCredits(ctx, msg.Chat.ID)
	case "help":
		b.sendText(msg.Chat.ID, msgHelp)
	default:
		b.sendText(msg.Chat.ID, msgUnknownCommand)
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.Chat.ID
	if msg.From != nil {
		userID = msg.From.ID
	}

	if missing := b.missingChannels(userID); len(missing) > 0 {
		reply := tgbotapi.NewMessage(msg.Chat.ID, msgJoinChannels)
		reply.ReplyMarkup = joinKeyboard(missing)
		b.send(reply)
		return
	}

	username := ""
	if msg.From != nil {
		username = msg.From.UserName
	}
	referrerID := parseReferrer(msg.CommandArguments())

	if _, created, err := b.users.Register(ctx, msg.Chat.ID, username, referrerID); err != nil {
		b.log.Error("register user", "err", err, "chat_id", msg.Chat.ID)
		b.sendText(msg.Chat.ID, msgGenericError)
		return
	} else if created {
		b.log.Info("new user", "chat_id", msg.Chat.ID, "referrer_id", referrerID)
	}

	b.sendText(msg.Chat.ID, msgStart)
}

func (b *Bot) handleAudio(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	var fileID, mimeType string
	var duration int
	switch {
	case msg.Voice != nil:
		fileID, mimeType, duration = msg.Voice.FileID, msg.Voice.MimeType, msg.Voice.Duration
	case msg.Audio != nil:
		fileID, mimeType, duration = msg.Audio.FileID, msg.Audio.MimeType, msg.Audio.Duration
	}

	if _, err := b.users.Get(ctx, chatID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			b.sendText(chatID, msgRegisterFirst)
			return
		}
		b.log.Error("load user", "err", err, "chat_id", chatID)
		b.sendText(chatID, msgGenericError)
		return
	}
	if duration <= 0 {
		b.sendText(chatID, msgEmptyAudio)
		return
	}

	data, contentType, err := b.downloadFile(ctx, fileID)
	if err != nil {
		b.log.Error("download audio", "err", err, "chat_id", chatID)
		b.sendText(chatID, msgUploadFailed)
		return
	}
	contentType = audioContentType(mimeType, contentType, data)

	url, err := b.storage.UploadAudio(ctx, data, contentType)
	if err != nil {
		b.log.Error("upload audio", "err", err, "chat_id", chatID)
		b.sendText(chatID, msgUploadFailed)
		return
	}

	if err := b.selection.RecordUpload(ctx, chatID, url, duration); err != nil {
		switch {
		case errors.Is(err, service.ErrUserNotFound):
			b.sendText(chatID, msgRegisterFirst)
		case errors.Is(err, service.ErrInvalidAudio):
			b.sendText(chatID, msgEmptyAudio)
		default:
			b.log.Error("record upload", "err", err, "chat_id", chatID)
			b.sendText(chatID, msgUploadFailed)
		}
		return
	}

	b.log.Info("audio received", "chat_id", chatID, "duration", duration, "url", url)
	b.sendModelMenu(chatID)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	var chatID int64
	switch {
	case cb.Message != nil && cb.Message.Chat != nil:
		chatID = cb.Message.Chat.ID
	case cb.From != nil:
		chatID = cb.From.ID
	default:
		return
	}

	if strings.HasPrefix(cb.Data, catalog.HeaderPrefix) {
		b.answerCallback(cb.ID, msgSelectCategory)
		return
	}

	b.answerCallback(cb.ID, "")
	if cb.Message != nil && cb.Message.Chat != nil {
		if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, cb.Message.MessageID)); err != nil {
			b.log.Warn("delete menu message", "err", err, "chat_id", chatID)
		}
	}

	switch {
	case strings.HasPrefix(cb.Data, catalog.ModelPrefix):
		b.handleModelChoice(ctx, chatID, strings.TrimPrefix(cb.Data, catalog.ModelPrefix))
	case strings.HasPrefix(cb.Data, pitchPrefix):
		offset, err := strconv.Atoi(strings.TrimPrefix(cb.Data, pitchPrefix))
		if err != nil {
			b.sendText(chatID, msgStaleMenu)
			return
		}
		b.handlePitchChoice(ctx, chatID, offset)
	case cb.Data == dataInvite:
		b.sendInvite(ctx, chatID)
	case cb.Data == dataCredits:
		b.sendCredits(ctx, chatID)
	case cb.Data == dataHelp:
		b.sendText(chatID, msgHelp)
	case cb.Data == dataConvert:
		b.sendText(chatID, msgConvert)
	default:
		b.log.Warn("unknown callback", "data", cb.Data, "chat_id", chatID)
	}
}

func (b *Bot) handleModelChoice(ctx context.Context, chatID int64, modelID string) {
	entry, err := b.selection.SelectModel(ctx, chatID, modelID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrModelNotFound):
			b.sendText(chatID, msgVoiceMissing)
		case errors.Is(err, service.ErrStaleSelection):
			b.sendText(chatID, msgStaleMenu)
		case errors.Is(err, service.ErrUserNotFound):
			b.sendText(chatID, msgRegisterFirst)
		default:
			b.log.Error("select model", "err", err, "chat_id", chatID, "model", modelID)
			b.sendText(chatID, msgGenericError)
		}
		return
	}
	b.sendPitchMenu(chatID, entry.Name)
}

func (b *Bot) handlePitchChoice(ctx context.Context, chatID int64, offset int) {
	result, err := b.selection.ChoosePitch(ctx, chatID, offset)
	if err == nil {
		b.sendText(chatID, fmt.Sprintf(msgProcessing, result.Charged))
		return
	}

	switch {
	case errors.Is(err, service.ErrInsufficientCredits):
		user, getErr := b.users.Get(ctx, chatID)
		if getErr != nil {
			b.log.Error("load user", "err", getErr, "chat_id", chatID)
			b.sendText(chatID, msgGenericError)
			return
		}
		b.sendText(chatID, fmt.Sprintf(msgNoCredits, user.Duration, user.Credits))
	case errors.Is(err, service.ErrStaleSelection), errors.Is(err, service.ErrInvalidPitch):
		b.sendText(chatID, msgStaleMenu)
	case errors.Is(err, service.ErrModelNotFound):
		b.sendText(chatID, msgVoiceMissing)
	case errors.Is(err, service.ErrUserNotFound):
		b.sendText(chatID, msgRegisterFirst)
	case errors.Is(err, service.ErrDispatchTransient):
		b.sendText(chatID, msgRetryLater)
		b.resendPitchMenu(ctx, chatID)
	case errors.Is(err, service.ErrDispatchFailed):
		b.sendText(chatID, msgDispatchFailed)
	default:
		b.log.Error("choose pitch", "err", err, "chat_id", chatID, "pitch", offset)
		b.sendText(chatID, msgGenericError)
	}
}

// resendPitchMenu offers the pitch buttons again after a refunded attempt.
func (b *Bot) resendPitchMenu(ctx context.Context, chatID int64) {
	user, err := b.users.Get(ctx, chatID)
	if err != nil {
		b.log.Error("load user", "err", err, "chat_id", chatID)
		return
	}
	entry, ok := b.selection.Catalog().Get(user.ModelName)
	if !ok {
		return
	}
	b.sendPitchMenu(chatID, entry.Name)
}

func (b *Bot) sendModelMenu(chatID int64) {
	rows := catalog.Layout(b.selection.Catalog().ListByCategory(catalog.DefaultCategoryOrder))
	if len(rows) == 0 {
		b.sendText(chatID, msgNoVoices)
		return
	}
	msg := tgbotapi.NewMessage(chatID, msgVoiceSelect)
	msg.ReplyMarkup = modelKeyboard(rows)
	b.send(msg)
}

func (b *Bot) sendPitchMenu(chatID int64, voiceName string) {
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf(msgPitchSelect, voiceName))
	msg.ReplyMarkup = pitchKeyboard(service.PitchOffsets)
	b.send(msg)
}

func (b *Bot) sendMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, msgMenu)
	msg.ReplyMarkup = menuKeyboard()
	b.send(msg)
}

func (b *Bot) sendInvite(ctx context.Context, chatID int64) {
	user, err := b.users.Get(ctx, chatID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			b.sendText(chatID, msgRegisterFirst)
			return
		}
		b.log.Error("load user", "err", err, "chat_id", chatID)
		b.sendText(chatID, msgGenericError)
		return
	}

	link := inviteLink(b.api.Self.UserName, chatID)
	b.sendText(chatID, msgInviteBanner+"\n\n"+link)
	b.sendText(chatID, fmt.Sprintf(msgInviteHelp, link, user.Refs, user.Credits, b.cfg.ReferralBonus))
}

func (b *Bot) sendCredits(ctx context.Context, chatID int64) {
	user, err := b.users.Get(ctx, chatID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			b.sendText(chatID, msgRegisterFirst)
			return
		}
		b.log.Error("load user", "err", err, "chat_id", chatID)
		b.sendText(chatID, msgGenericError)
		return
	}
	b.sendText(chatID, fmt.Sprintf(msgCredits, user.Credits))
}

// Broadcast sends text to every chat and returns how many sends succeeded.
func (b *Bot) Broadcast(ctx context.Context, text string) (int, error) {
	ids, err := b.users.ListChatIDs(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return sent, err
		}
		if _, err := b.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
			b.log.Warn("broadcast send", "err", err, "chat_id", id)
			continue
		}
		sent++
	}
	return sent, nil
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, string, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, "", fmt.Errorf("get file: %w", err)
	}
	if file.FilePath == "" {
		return nil, "", fmt.Errorf("file path empty")
	}
	url := fmt.Sprintf(b.fileEndpoint, b.api.Token, file.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("telegram file status: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.log.Error("callback ack", "err", err)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send message", "err", err, "chat_id", msg.ChatID)
	}
}

func updateChatID(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		return update.CallbackQuery.From.ID, true
	default:
		return 0, false
	}
}

// parseReferrer reads the numeric payload of an invite link.
func parseReferrer(payload string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(payload), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func inviteLink(botUsername string, chatID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%d", botUsername, chatID)
}

// audioContentType prefers the type Telegram reported for the message, then
// the download header, then sniffing.
func audioContentType(messageType, headerType string, data []byte) string {
	for _, ct := range []string{messageType, headerType} {
		ct = strings.ToLower(strings.TrimSpace(ct))
		if base, _, _ := strings.Cut(ct, ";"); strings.HasPrefix(base, "audio/") {
			return ct
		}
	}
	if len(data) == 0 {
		return ""
	}
	sniffed, _, _ := strings.Cut(http.DetectContentType(data), ";")
	switch sniffed {
	case "application/ogg":
		return "audio/ogg"
	case "audio/wave":
		return "audio/wav"
	}
	if strings.HasPrefix(sniffed, "audio/") {
		return sniffed
	}
	return ""
}
