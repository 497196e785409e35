package handlers

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/courtcal/internal/telegram"
)

const helpText = `📚 *CourtCal Help*

*Games:*
• /events [YYYY-MM] - List games of a month
• /event <YYYY-MM-DD> <HH:MM[-HH:MM]> <court> [| notes] - Add a game
• /event <id> - Show a game and who is coming
• /move <id> <YYYY-MM-DD> [HH:MM[-HH:MM]] - Reschedule a game
• /delevent <id> - Delete a game

*Attendance:*
• /join <id> [name] [maybe|no] - Sign up (defaults to you, confirmed)
• /leave <id> <attendee id> - Drop off a roster

Ids may be shortened to their first few characters.`

// HelpHandler handles the /help command
type HelpHandler struct {
	logger *logrus.Logger
}

func NewHelpHandler(logger *logrus.Logger) *HelpHandler {
	return &HelpHandler{logger: logger}
}

func (h *HelpHandler) Handle(bot telegram.Sender, message *tgbotapi.Message, args []string) error {
	return reply(bot, message.Chat.ID, helpText, true)
}
