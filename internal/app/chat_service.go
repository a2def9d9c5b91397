package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"pleader/internal/model"
	"pleader/internal/rag"
	"pleader/internal/repository"
)

type AsyncMessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID uint) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, sessionID uint, messages []model.Message) error
	DeleteHistory(ctx context.Context, sessionID uint) error
	MarkDirty(ctx context.Context, sessionID uint) error
	IsDirty(ctx context.Context, sessionID uint) (bool, error)
}

// ChatService runs chat sessions. Answers come either from plain legal
// chat or, when the knowledge base is consulted, from the retrieval
// pipeline with the supporting sources recorded on the message.
type ChatService struct {
	sessionRepo  *repository.SessionRepository
	messageRepo  *repository.MessageRepository
	publisher    AsyncMessagePublisher
	historyCache HistoryCache
	pipeline     *rag.Pipeline
	generator    rag.Generator
	chatModel    string
	maxContext   int
	logger       *slog.Logger
}

func NewChatService(
	sessionRepo *repository.SessionRepository,
	messageRepo *repository.MessageRepository,
	publisher AsyncMessagePublisher,
	historyCache HistoryCache,
	pipeline *rag.Pipeline,
	generator rag.Generator,
	chatModel string,
	maxContext int,
	logger *slog.Logger,
) *ChatService {
	if maxContext <= 0 {
		maxContext = 20
	}
	return &ChatService{
		sessionRepo:  sessionRepo,
		messageRepo:  messageRepo,
		publisher:    publisher,
		historyCache: historyCache,
		pipeline:     pipeline,
		generator:    generator,
		chatModel:    chatModel,
		maxContext:   maxContext,
		logger:       logger,
	}
}

type CreateSessionInput struct {
	UserID uint
	Title  string
}

type SendMessageInput struct {
	UserID           uint
	SessionID        uint
	Content          string
	UseKnowledgeBase bool
	TopK             int
}

// MessageSource is the per-message view of a retrieval hit, serialized
// onto assistant messages answered from the knowledge base.
type MessageSource struct {
	Filename    string  `json:"filename"`
	ChunkIndex  int     `json:"chunk_index"`
	Score       float64 `json:"score"`
	RerankScore float64 `json:"rerank_score,omitempty"`
	Excerpt     string  `json:"excerpt"`
}

type SendMessageResult struct {
	Messages []model.Message `json:"messages"`
	Sources  []MessageSource `json:"sources,omitempty"`
}

func (s *ChatService) CreateSession(input CreateSessionInput) (*model.Session, error) {
	if input.UserID == 0 {
		return nil, ErrInvalidInput
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = "New Chat"
	}

	session := &model.Session{
		UserID: input.UserID,
		Title:  title,
	}
	if err := s.sessionRepo.Create(session); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *ChatService) ListSessions(userID uint) ([]model.Session, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.sessionRepo.ListByUserID(userID)
}

func (s *ChatService) DeleteSession(userID, sessionID uint) error {
	if userID == 0 || sessionID == 0 {
		return ErrInvalidInput
	}
	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return err
	}
	if session == nil {
		return ErrSessionNotFound
	}
	if err := s.messageRepo.DeleteBySessionID(sessionID); err != nil {
		return err
	}
	if err := s.sessionRepo.DeleteByIDAndUserID(sessionID, userID); err != nil {
		return err
	}
	if s.historyCache != nil {
		_ = s.historyCache.DeleteHistory(context.Background(), sessionID)
	}
	return nil
}

func (s *ChatService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageResult, error) {
	if input.UserID == 0 || input.SessionID == 0 {
		return nil, ErrInvalidInput
	}

	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, ErrMessageEmpty
	}

	session, err := s.sessionRepo.GetByIDAndUserID(input.SessionID, input.UserID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if s.publisher == nil {
		return nil, ErrMessageEnqueue
	}

	userMessage := model.Message{
		SessionID: input.SessionID,
		UserID:    input.UserID,
		Role:      "user",
		Content:   content,
		CreatedAt: time.Now(),
	}
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, input.SessionID)
		_ = s.historyCache.DeleteHistory(ctx, input.SessionID)
	}
	if err := s.publisher.Publish(ctx, userMessage); err != nil {
		return nil, ErrMessageEnqueue
	}

	var (
		answer  string
		sources []MessageSource
	)
	if input.UseKnowledgeBase {
		answer, sources = s.answerFromKnowledgeBase(ctx, content, input.TopK)
	} else {
		answer, err = s.answerFromChat(ctx, input.SessionID, content)
		if err != nil {
			return nil, err
		}
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = "The model returned an empty response."
	}

	assistantMessage := model.Message{
		SessionID: input.SessionID,
		UserID:    input.UserID,
		Role:      "assistant",
		Content:   answer,
		Sources:   encodeSources(sources),
		CreatedAt: time.Now(),
	}
	if err := s.publisher.Publish(ctx, assistantMessage); err != nil {
		return nil, ErrMessageEnqueue
	}

	return &SendMessageResult{
		Messages: []model.Message{userMessage, assistantMessage},
		Sources:  sources,
	}, nil
}

func (s *ChatService) GetHistory(userID, sessionID uint, limit int) ([]model.Message, error) {
	if userID == 0 || sessionID == 0 {
		return nil, ErrInvalidInput
	}

	session, err := s.sessionRepo.GetByIDAndUserID(sessionID, userID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	ctx := context.Background()
	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimMessages(cached, limit), nil
			}
		}
	}

	messages, err := s.messageRepo.ListBySessionID(sessionID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, messages)
		}
	}
	return messages, nil
}

func (s *ChatService) answerFromKnowledgeBase(ctx context.Context, question string, topK int) (string, []MessageSource) {
	results, answer := s.pipeline.Query(ctx, question, topK, true)
	return answer, sourcesFromResults(results)
}

func (s *ChatService) answerFromChat(ctx context.Context, sessionID uint, content string) (string, error) {
	recent, err := s.messageRepo.ListRecentBySessionID(sessionID, s.maxContext)
	if err != nil {
		return "", err
	}
	prompt := buildChatPrompt(recent, content)
	return s.generator.GenerateText(ctx, s.chatModel, prompt)
}

// buildChatPrompt flattens the recent conversation into a single prompt
// for the chat model.
func buildChatPrompt(history []model.Message, currentUserInput string) string {
	var sb strings.Builder
	sb.WriteString("You are Pleader AI, a professional legal assistant specializing in Indian law. ")
	sb.WriteString("Be precise and concise, cite Indian acts, sections, and articles where relevant, ")
	sb.WriteString("and say clearly when a question falls outside Indian law.\n")

	for _, item := range history {
		role := item.Role
		if role == "" {
			role = "user"
		}
		switch role {
		case "assistant":
			sb.WriteString("\nAssistant: ")
		default:
			sb.WriteString("\nUser: ")
		}
		sb.WriteString(item.Content)
	}

	sb.WriteString("\nUser: ")
	sb.WriteString(strings.TrimSpace(currentUserInput))
	sb.WriteString("\nAssistant:")
	return sb.String()
}

const sourceExcerptRunes = 200

func sourcesFromResults(results []rag.SearchResult) []MessageSource {
	if len(results) == 0 {
		return nil
	}
	sources := make([]MessageSource, len(results))
	for i, r := range results {
		excerpt := r.Chunk.Text
		if runes := []rune(excerpt); len(runes) > sourceExcerptRunes {
			excerpt = string(runes[:sourceExcerptRunes]) + "..."
		}
		sources[i] = MessageSource{
			Filename:    r.Chunk.Meta.Filename,
			ChunkIndex:  r.Chunk.Meta.Index,
			Score:       r.Score,
			RerankScore: r.RerankScore,
			Excerpt:     excerpt,
		}
	}
	return sources
}

func encodeSources(sources []MessageSource) string {
	if len(sources) == 0 {
		return ""
	}
	payload, err := json.Marshal(sources)
	if err != nil {
		return ""
	}
	return string(payload)
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
