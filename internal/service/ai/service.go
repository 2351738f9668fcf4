package ai

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/dparedes/motiva/backend/internal/config"
)

// Service is the production completion boundary, backed by an Ark chat model.
type Service struct {
	chatModel model.ChatModel
}

// NewService creates the completion service from configuration.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	return &Service{chatModel: chatModel}, nil
}

// Complete sends the assembled prompt upstream and returns the reply text.
// A blank reply is an error; the caller never receives a fabricated response.
func (s *Service) Complete(ctx context.Context, prompt []*schema.Message) (string, error) {
	response, err := s.chatModel.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}

	reply := strings.TrimSpace(response.Content)
	if reply == "" {
		return "", errors.New("completion returned empty content")
	}

	log.Printf("[ai] generated reply, length=%d", len(reply))
	return reply, nil
}
