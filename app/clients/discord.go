package clients

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"
)

// Discord caps messages at 2000 characters; reports are chunked to fit.
const maxMessageLen = 1900

// DiscordNotifier posts the final run report to a Discord channel.
type DiscordNotifier struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordNotifier(token, channelID string) (*DiscordNotifier, error) {
	if token == "" || channelID == "" {
		return nil, fmt.Errorf("discord notifier requires a token and a channel id")
	}
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordNotifier{
		session:   session,
		channelID: channelID,
	}, nil
}

func (n *DiscordNotifier) Open() error {
	if err := n.session.Open(); err != nil {
		return err
	}
	log.Println("🔌 Discord notifier connected")
	return nil
}

func (n *DiscordNotifier) Close() error { return n.session.Close() }

// NotifyReport sends the rendered report, chunked to Discord's message limit.
func (n *DiscordNotifier) NotifyReport(report string) error {
	for _, chunk := range splitChunks(report, maxMessageLen) {
		if _, err := n.session.ChannelMessageSend(n.channelID, "```\n"+chunk+"\n```"); err != nil {
			return fmt.Errorf("send report to channel %s: %w", n.channelID, err)
		}
	}
	return nil
}

func splitChunks(s string, size int) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
