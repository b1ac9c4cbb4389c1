package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"zeni/internal/economy"

	"github.com/bwmarrin/discordgo"
)

type Bot struct {
	session *discordgo.Session
	econ    *economy.Service
	log     *slog.Logger
	guard   *commandGuard
	guildID string
}

func New(token, guildID string, econ *economy.Service, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	b := &Bot{
		session: session,
		econ:    econ,
		log:     logger,
		guard:   newCommandGuard(),
		guildID: guildID,
	}
	session.AddHandler(b.handleInteraction)
	return b, nil
}

// Start opens the gateway connection and registers the slash commands.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	appID := b.session.State.User.ID
	for _, cmd := range commandDefinitions() {
		if _, err := b.session.ApplicationCommandCreate(appID, b.guildID, cmd); err != nil {
			return fmt.Errorf("register command %s: %w", cmd.Name, err)
		}
	}
	b.log.Info("bot connected", "commands", len(commandDefinitions()))

	<-ctx.Done()
	return b.session.Close()
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	userID := interactionUserID(i)
	if userID == "" {
		return
	}
	if !b.guard.acquire(userID) {
		b.respond(i, "You already have a command in progress, hold on.")
		return
	}
	defer b.guard.release(userID)

	data := i.ApplicationCommandData()
	content, err := b.dispatch(context.Background(), userID, data)
	if err != nil {
		content = userMessage(err)
		if content == "" {
			b.log.Error("command failed", "command", data.Name, "user_id", userID, "err", err)
			content = "Something went wrong, try again later."
		}
	}
	b.respond(i, content)
}

func (b *Bot) respond(i *discordgo.InteractionCreate, content string) {
	err := b.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	})
	if err != nil {
		b.log.Error("interaction respond failed", "err", err)
	}
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// userMessage converts domain errors into a reply; unknown errors return "".
func userMessage(err error) string {
	switch {
	case errors.Is(err, economy.ErrValidation),
		errors.Is(err, economy.ErrConflict),
		errors.Is(err, economy.ErrInsufficientFunds),
		errors.Is(err, economy.ErrNotFound):
		return err.Error()
	case errors.Is(err, economy.ErrTxConflict):
		return "The ledger is busy, try again in a moment."
	}
	return ""
}
