package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"notice-bot/api/internal/classify"
	"notice-bot/api/internal/notice"
	"notice-bot/api/internal/ocr"
)

const sourceTelegram = "telegram"

// Bot is the part of *tgbotapi.BotAPI the router uses.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

type Router struct {
	Bot        Bot
	Service    *notice.Service
	EngManager *ocr.Manager
	Log        *zap.Logger

	// Timeout bounds one analysis; zero means no deadline.
	Timeout time.Duration
	// Debounce is how long to wait for more album pages.
	Debounce time.Duration

	fetch func(ctx context.Context, url string) ([]byte, error)
}

func (r *Router) logger() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil {
		return
	}
	cid := msg.Chat.ID

	switch {
	case msg.IsCommand():
		r.HandleCommand(msg)
	case len(msg.Photo) > 0:
		// the last size is the largest
		r.acceptImage(ctx, msg, msg.Photo[len(msg.Photo)-1].FileID)
	case msg.Document != nil && strings.HasPrefix(msg.Document.MimeType, "image/"):
		r.acceptImage(ctx, msg, msg.Document.FileID)
	case strings.TrimSpace(msg.Text) != "":
		res := r.Service.ClassifyText(msg.Text, sourceTelegram)
		if res.Category == classify.Unrecognized {
			r.send(cid, shortTextReply)
			return
		}
		r.send(cid, FormatResult(res))
	}
}

func (r *Router) HandleCommand(msg *tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, helpText)
	case "health":
		r.send(cid, "✅ OK")
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	default:
		r.send(cid, "알 수 없는 명령입니다. /help 를 입력해 주세요.")
	}
}

// handleEngineCommand switches the OCR engine for one chat:
//
//	/engine          show the current engine
//	/engine vision
//	/engine gemini
//	/engine yandex
//	/engine reset
func (r *Router) handleEngineCommand(chatID int64, args string) {
	name := strings.ToLower(strings.TrimSpace(args))
	switch name {
	case "":
		r.send(chatID, "현재 엔진: "+r.EngManager.Get(chatID)+"\n사용법: /engine {vision|gemini|yandex|reset}")
		return
	case "reset":
		r.EngManager.Reset(chatID)
		r.send(chatID, "✅ 기본 엔진으로 돌아갑니다: "+r.EngManager.Get(chatID))
		return
	}

	if _, err := r.Service.Engine(name); err != nil {
		var mc *ocr.MissingCredentialError
		if errors.As(err, &mc) {
			r.send(chatID, "❌ "+name+" 엔진이 설정되지 않았습니다.")
			return
		}
		r.send(chatID, "알 수 없는 엔진입니다. 사용 가능: vision | gemini | yandex")
		return
	}
	r.EngManager.Set(chatID, name)
	r.send(chatID, "✅ 엔진: "+name)
}

// analyze runs one image through the pipeline and replies with the result.
func (r *Router) analyze(ctx context.Context, chatID int64, img []byte) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	a, err := r.Service.Analyze(ctx, notice.Request{
		Image:  img,
		Engine: r.EngManager.Get(chatID),
		Source: sourceTelegram,
		ChatID: chatID,
	})
	if err != nil {
		r.logger().Warn("analyze failed", zap.Int64("chat_id", chatID), zap.Error(err))
		r.SendError(chatID, err)
		return
	}
	r.logger().Info("analyzed",
		zap.Int64("chat_id", chatID),
		zap.String("engine", a.Engine),
		zap.String("category", a.Classification.Category.String()),
		zap.Bool("cached", a.Cached),
	)
	r.send(chatID, FormatAnalysis(a))
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := r.Bot.Send(msg); err != nil {
		r.logger().Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, FormatError(err))
}

const helpText = "안내문, 문자, 영수증 사진을 보내 주시면 글자를 읽고 어떤 안내인지 알려 드립니다.\n" +
	"글자만 보내셔도 분류해 드립니다.\n\n" +
	"명령어:\n/health - 상태 확인\n/engine - OCR 엔진 확인·변경"

const shortTextReply = "분류하기에는 글이 너무 짧습니다. 안내문 내용을 조금 더 보내 주시거나 사진을 보내 주세요.\n" +
	"사용법은 /help 를 입력해 주세요."
