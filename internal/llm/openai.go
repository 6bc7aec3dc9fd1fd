package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultModel = openai.GPT4oMini

const systemPrompt = `Ты — консультант по строительным нормам и правилам (СП, СНиП, ГОСТ).
Отвечай только на основе предоставленного контекста из нормативных документов.
Указывай пункты документов, на которые опираешься. Если в контексте нет ответа, честно скажи об этом.`

// ChatAPI is the slice of the OpenAI client the generator uses.
type ChatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Generator produces grounded answers with an OpenAI chat model.
type Generator struct {
	client ChatAPI
	model  string
}

func NewGenerator(apiKey string) *Generator {
	return &Generator{
		client: openai.NewClient(apiKey),
		model:  DefaultModel,
	}
}

func NewGeneratorWithClient(client ChatAPI, model string) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{client: client, model: model}
}

// GenerateAnswer asks the model to answer a question against an assembled
// context block. History turns alternate user/assistant, oldest first.
func (g *Generator) GenerateAnswer(ctx context.Context, query, contextBlock string, history []string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})

	for i, turn := range history {
		role := openai.ChatMessageRoleUser
		if i%2 == 1 {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn})
	}

	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: fmt.Sprintf("Контекст из нормативных документов:\n%s\n\nВопрос: %s", contextBlock, query),
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("chat completion returned an empty answer")
	}
	return answer, nil
}
