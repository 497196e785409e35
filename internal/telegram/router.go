package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/courtcal/internal/metrics"
)

// Sender is the part of the bot API command handlers reply through.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Router handles message routing and command parsing
type Router struct {
	logger   *logrus.Logger
	handlers map[string]CommandHandler
}

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	Handle(bot Sender, message *tgbotapi.Message, args []string) error
}

// NewRouter creates a new message router
func NewRouter(logger *logrus.Logger) *Router {
	return &Router{
		logger:   logger,
		handlers: make(map[string]CommandHandler),
	}
}

// RegisterCommand registers a command handler
func (r *Router) RegisterCommand(command string, handler CommandHandler) {
	r.handlers[command] = handler
	r.logger.Debugf("Registered command: %s", command)
}

// HandleMessage handles incoming messages
func (r *Router) HandleMessage(bot Sender, message *tgbotapi.Message) {
	fields := logrus.Fields{
		"chat_id":    message.Chat.ID,
		"message_id": message.MessageID,
	}
	if message.From != nil {
		fields["user_id"] = message.From.ID
		fields["username"] = message.From.UserName
	}
	r.logger.WithFields(fields).Debug("Received message")

	// Only process text commands
	if message.Text == "" || !message.IsCommand() {
		return
	}

	command := message.Command()
	args := strings.Fields(message.CommandArguments())
	fields["command"] = command

	handler, exists := r.handlers[command]
	if !exists {
		metrics.BotCommandsTotal.WithLabelValues("unknown").Inc()
		r.logger.WithFields(fields).Warn("Unknown command")

		unknownMsg := tgbotapi.NewMessage(message.Chat.ID, "❓ Unknown command. Use /help to see available commands.")
		if _, err := bot.Send(unknownMsg); err != nil {
			r.logger.WithError(err).Error("Failed to send unknown command reply")
		}
		return
	}

	metrics.BotCommandsTotal.WithLabelValues(command).Inc()
	if err := handler.Handle(bot, message, args); err != nil {
		r.logger.WithFields(fields).WithError(err).Error("Command handler failed")

		errorMsg := tgbotapi.NewMessage(message.Chat.ID, "❌ An error occurred while processing your command. Please try again.")
		if _, err := bot.Send(errorMsg); err != nil {
			r.logger.WithError(err).Error("Failed to send error reply")
		}
	}
}
