package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
)

// ChatService answers chat turns from the canned reply pool. Anonymous
// callers are metered per device.
type ChatService struct {
	quota ports.ChatQuota
	limit int
	log   zerolog.Logger
	now   func() time.Time
	pick  func(n int) int
	newID func() string
}

var _ ports.ChatService = (*ChatService)(nil)

func NewChatService(quota ports.ChatQuota, limit int, log zerolog.Logger) *ChatService {
	if limit < 0 {
		limit = 0
	}
	return &ChatService{
		quota: quota,
		limit: limit,
		log:   log,
		now:   time.Now,
		pick:  rand.Intn,
		newID: uuid.NewString,
	}
}

func (s *ChatService) Greeting() domain.Message {
	return domain.Message{
		ID:        "greeting",
		Author:    domain.AuthorAssistant,
		Text:      domain.Greeting,
		CreatedAt: s.now().UTC(),
	}
}

// Allowance reads the caller's remaining anonymous turns without using one.
func (s *ChatService) Allowance(ctx context.Context, in ports.ChatInput) (int, error) {
	if in.UserID != "" {
		return -1, nil
	}
	if in.DeviceID == "" {
		return 0, fmt.Errorf("%w: device id is required for anonymous chat", domain.ErrInvalidInput)
	}
	used, err := s.quota.Used(ctx, in.DeviceID)
	if err != nil {
		return 0, fmt.Errorf("chat: read quota: %w", err)
	}
	return max(s.limit-used, 0), nil
}

// Send records one user turn and returns the assistant's reply.
func (s *ChatService) Send(ctx context.Context, in ports.ChatInput) (*ports.ChatResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, fmt.Errorf("%w: message text is required", domain.ErrInvalidInput)
	}

	remaining := -1
	if in.UserID == "" {
		if in.DeviceID == "" {
			return nil, fmt.Errorf("%w: device id is required for anonymous chat", domain.ErrInvalidInput)
		}
		used, err := s.quota.Consume(ctx, in.DeviceID, s.limit)
		if errors.Is(err, domain.ErrChatQuotaExceeded) {
			s.log.Info().Str("device_id", in.DeviceID).Int("limit", s.limit).Msg("anonymous chat quota reached")
			return nil, err
		}
		if err != nil {
			return nil, fmt.Errorf("chat: consume quota: %w", err)
		}
		remaining = max(s.limit-used, 0)
	}

	now := s.now().UTC()
	return &ports.ChatResult{
		UserMessage: domain.Message{ID: s.newID(), Author: domain.AuthorUser, Text: text, CreatedAt: now},
		Reply: domain.Message{
			ID:        s.newID(),
			Author:    domain.AuthorAssistant,
			Text:      domain.CannedReplies[s.pick(len(domain.CannedReplies))],
			CreatedAt: now,
		},
		Remaining: remaining,
	}, nil
}
