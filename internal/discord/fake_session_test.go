package discord

import (
	"fmt"
	"io"
	"sync"

	"github.com/bwmarrin/discordgo"
)

type sentMessage struct {
	ChannelID string
	Data      *discordgo.MessageSend
	FileBody  []string
}

type fakeSession struct {
	mu sync.Mutex

	// unknown lists channel IDs that answer with Unknown Channel.
	unknown  map[string]bool
	channels map[string][]*discordgo.Channel
	guilds   map[string]string

	sent      []sentMessage
	messages  map[string]*discordgo.Message
	edits     []*discordgo.MessageEdit
	deleted   []string
	reactions []string
	removed   []string
	created   []discordgo.GuildChannelCreateData
	responses []*discordgo.InteractionResponse
	webhooks  []*discordgo.WebhookEdit

	onSend func(channelID string, data *discordgo.MessageSend)
	nextID int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		unknown:  map[string]bool{},
		channels: map[string][]*discordgo.Channel{},
		guilds:   map[string]string{},
		messages: map[string]*discordgo.Message{},
	}
}

func (f *fakeSession) id() string {
	f.nextID++
	return fmt.Sprintf("m%d", f.nextID)
}

func (f *fakeSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	if f.unknown[channelID] {
		f.mu.Unlock()
		return nil, &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel, Message: "Unknown Channel"}}
	}
	msg := sentMessage{ChannelID: channelID, Data: data}
	out := &discordgo.Message{ID: f.id(), ChannelID: channelID}
	for _, file := range data.Files {
		body, _ := io.ReadAll(file.Reader)
		msg.FileBody = append(msg.FileBody, string(body))
		out.Attachments = append(out.Attachments, &discordgo.MessageAttachment{
			URL:      "https://cdn.example/" + channelID + "/" + file.Name,
			Filename: file.Name,
		})
	}
	f.sent = append(f.sent, msg)
	f.messages[channelID+"/"+out.ID] = out
	hook := f.onSend
	f.mu.Unlock()
	if hook != nil {
		hook(channelID, data)
	}
	return out, nil
}

func (f *fakeSession) ChannelMessage(channelID, messageID string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	msg, ok := f.messages[channelID+"/"+messageID]
	if !ok {
		return nil, &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMessage, Message: "Unknown Message"}}
	}
	return msg, nil
}

func (f *fakeSession) ChannelMessageEditComplex(m *discordgo.MessageEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, m)
	return &discordgo.Message{ID: m.ID, ChannelID: m.Channel}, nil
}

func (f *fakeSession) ChannelMessageDelete(channelID, messageID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, channelID+"/"+messageID)
	return nil
}

func (f *fakeSession) MessageReactionAdd(channelID, messageID, emoji string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, channelID+"/"+messageID+" "+emoji)
	return nil
}

func (f *fakeSession) MessageReactionRemove(channelID, messageID, emoji, _ string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, channelID+"/"+messageID+" "+emoji)
	return nil
}

func (f *fakeSession) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (f *fakeSession) Guild(guildID string, _ ...discordgo.RequestOption) (*discordgo.Guild, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name, ok := f.guilds[guildID]
	if !ok {
		return nil, fmt.Errorf("unknown guild %s", guildID)
	}
	return &discordgo.Guild{ID: guildID, Name: name}, nil
}

func (f *fakeSession) GuildChannels(guildID string, _ ...discordgo.RequestOption) ([]*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channels[guildID], nil
}

func (f *fakeSession) GuildChannelCreateComplex(guildID string, data discordgo.GuildChannelCreateData, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, data)
	ch := &discordgo.Channel{ID: "new-" + data.Name, GuildID: guildID, Name: data.Name, Type: data.Type}
	f.channels[guildID] = append(f.channels[guildID], ch)
	return ch, nil
}

func (f *fakeSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, resp)
	return nil
}

func (f *fakeSession) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.webhooks = append(f.webhooks, edit)
	return &discordgo.Message{ID: f.id()}, nil
}

func (f *fakeSession) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeSession) lastResponse() *discordgo.InteractionResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.responses) == 0 {
		return nil
	}
	return f.responses[len(f.responses)-1]
}
