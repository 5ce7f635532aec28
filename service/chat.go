package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"agrodetect/llm"
	"agrodetect/metrics"
	"agrodetect/models"

	"github.com/apex/log"
)

const chatTemperature = 0.8

// ChatApology is returned to the user when the LLM cannot be reached.
const ChatApology = "I apologize, but I'm having trouble connecting to the AI service. Please ensure Ollama is running and try again."

var scenarioContext = map[models.Scenario]string{
	models.ScenarioFarmMonitoring: "You are a helpful agricultural AI assistant for professional farmers. Provide practical advice on farming, " +
		"crops, diseases, weather, equipment, and general agricultural topics. Be conversational and friendly.",
	models.ScenarioHomeGardener: "You are a friendly gardening assistant for home gardeners. Help with plants, gardening tips, " +
		"pest control, and general gardening questions. Use simple, easy-to-understand language.",
	models.ScenarioAgriculturalTraining: "You are an agricultural education assistant. Provide detailed, educational responses about " +
		"agriculture, plant science, and farming techniques. Be informative and thorough.",
}

const chatInstructions = "Provide a helpful, natural response. You can discuss agriculture, plants, farming, weather, equipment, " +
	"general advice, or even have casual conversation. Keep responses under 200 words and be conversational."

// ChatService answers free-form questions in the voice of the selected scenario.
type ChatService struct {
	client llm.Client
}

func NewChatService(client llm.Client) *ChatService {
	return &ChatService{client: client}
}

func chatPrompt(message string, scenario models.Scenario) string {
	return fmt.Sprintf("%s\n\nUser: %s\n\n%s", scenarioContext[scenario], message, chatInstructions)
}

// Chat sends the message to the LLM. On a gateway error the apology reply is returned along with the error.
func (s *ChatService) Chat(ctx context.Context, message, rawScenario string) (*models.ChatReply, error) {
	if strings.TrimSpace(message) == "" {
		return nil, models.NewValidationError("Message is required")
	}
	scenario := models.ScenarioOrDefault(rawScenario)

	out, err := s.client.Generate(ctx, chatPrompt(message, scenario), llm.WithTemperature(chatTemperature))
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("chat", "error").Inc()
		log.WithError(err).Error("Chat generation failed")
		return &models.ChatReply{Response: ChatApology, Scenario: scenario}, err
	}
	metrics.LLMRequestsTotal.WithLabelValues("chat", "ok").Inc()

	return &models.ChatReply{Response: unwrapReply(out), Scenario: scenario}, nil
}

type jsonReply struct {
	Response any `json:"response"`
	Summary  any `json:"summary"`
}

// unwrapReply returns the response (or summary) field when the model answered with a JSON object,
// and the trimmed text otherwise.
func unwrapReply(raw string) string {
	text := strings.TrimSpace(raw)
	var r jsonReply
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return text
	}
	if s, ok := r.Response.(string); ok && s != "" {
		return s
	}
	if s, ok := r.Summary.(string); ok && s != "" {
		return s
	}
	return text
}
