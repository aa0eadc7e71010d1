package service

import (
	"context"
	"strings"

	"sleep-better/internal/domain"
)

// ChatBackend generates chatbot replies.
type ChatBackend interface {
	Chat(ctx context.Context, token, username, message string) (string, error)
}

// ChatReply is one assistant turn. Options is set when the reply offers the
// canned prompts.
type ChatReply struct {
	Content string
	Options []string
}

type ChatService struct {
	backend ChatBackend
}

func NewChatService(backend ChatBackend) *ChatService {
	return &ChatService{backend: backend}
}

// Greeting is the opening turn of every conversation.
func (s *ChatService) Greeting() ChatReply {
	return ChatReply{Content: domain.ChatGreeting, Options: domain.ChatOptions}
}

// Ask answers one user message. Option commands are expanded to their
// prompt before being relayed.
func (s *ChatService) Ask(ctx context.Context, token, username, message string) (ChatReply, error) {
	message = strings.TrimSpace(message)

	if cmd, ok := ParseCommand(message); ok {
		switch cmd.Type {
		case CommandOptions:
			return s.Greeting(), nil
		case CommandOption:
			if cmd.Index > len(domain.ChatOptions) {
				return ChatReply{}, domain.ErrInvalidInput
			}
			message = domain.ChatOptions[cmd.Index-1]
		}
	}

	if len(message) == 0 || len(message) > domain.MaxChatMessageLength {
		return ChatReply{}, domain.ErrInvalidInput
	}

	reply, err := s.backend.Chat(ctx, token, username, message)
	if err != nil {
		return ChatReply{}, err
	}
	return ChatReply{Content: reply}, nil
}
