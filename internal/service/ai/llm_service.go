package ai

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/lumen/backend/internal/config"
	"github.com/zhouzirui/lumen/backend/internal/model/chat"
	"github.com/zhouzirui/lumen/backend/internal/model/profile"
)

// Service composes the provider prompt and opens completions against the configured chat model.
type Service struct {
	streaming bool
	chain     compose.Runnable[map[string]any, *schema.Message]
	logger    logrus.FieldLogger
}

// NewService creates a Service backed by the ark chat model described by cfg.
func NewService(ctx context.Context, cfg config.AIConfig, logger logrus.FieldLogger) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create chat model")
	}

	return NewServiceWithModel(ctx, chatModel, cfg.StreamResponse, logger)
}

// NewServiceWithModel wires an arbitrary chat model into the prompt chain.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, streaming bool, logger logrus.FieldLogger) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", false),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to compile chat chain")
	}

	return &Service{
		streaming: streaming,
		chain:     runnable,
		logger:    logger.WithField("component", "ai"),
	}, nil
}

// StreamingEnabled reports whether completions are requested as token streams.
func (s *Service) StreamingEnabled() bool {
	return s.streaming
}

// StreamReply opens a completion for the transcript under the given behavior profile.
// An error means no fragment was produced.
func (s *Service) StreamReply(ctx context.Context, p profile.Profile, transcript chat.Transcript) (FragmentStream, error) {
	input := buildChainInput(p, transcript)

	if !s.streaming {
		response, err := s.chain.Invoke(ctx, input)
		if err != nil {
			return nil, errors.Wrap(err, "failed to run chat chain")
		}
		s.logger.WithFields(logrus.Fields{
			"profile": p.ID,
			"length":  len(response.Content),
		}).Debug("generated non-streaming reply")
		return newStaticStream(response.Content), nil
	}

	reader, err := s.chain.Stream(ctx, input)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open chat stream")
	}
	return newMessageStream(reader), nil
}

func buildChainInput(p profile.Profile, transcript chat.Transcript) map[string]any {
	return map[string]any{
		"system":  p.SystemPrompt,
		"history": buildHistoryMessages(transcript),
	}
}

// buildHistoryMessages maps every turn, in order and unmodified, onto provider messages.
func buildHistoryMessages(transcript chat.Transcript) []*schema.Message {
	history := make([]*schema.Message, 0, len(transcript))
	for _, turn := range transcript {
		switch turn.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}
	return history
}
