package handlers

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/courtcal/internal/telegram"
)

// StartHandler handles the /start command
type StartHandler struct {
	logger *logrus.Logger
}

// NewStartHandler creates a new start command handler
func NewStartHandler(logger *logrus.Logger) *StartHandler {
	return &StartHandler{
		logger: logger,
	}
}

// Handle processes the /start command
func (h *StartHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	welcomeText := `🏐 *Welcome to CourtCal!*

I keep track of pickup games for this chat: who booked which court, when, and who is coming.

• /events - See this month's games
• /event 2025-09-27 18:00-20:00 Court 3 - Add a game
• /join <id> - Sign up for a game
• /help - All commands

Everyone sees the same calendar, so changes show up for the whole group.`

	if err := reply(bot, message.Chat.ID, welcomeText, true); err != nil {
		return fmt.Errorf("failed to send welcome message: %w", err)
	}

	h.logger.WithField("chat_id", message.Chat.ID).Info("Sent welcome message")
	return nil
}
