package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fin-advisor-go/internal/model"
	"fin-advisor-go/internal/repository"
	"fin-advisor-go/pkg/llm"
	"fin-advisor-go/pkg/log"
)

// AdvisoryService 定义了引导完成后持续咨询对话的接口。
type AdvisoryService interface {
	Answer(ctx context.Context, userID uint, question string) (string, bool, error)
}

type advisoryService struct {
	personaRepo  repository.PersonaRepository
	advisoryRepo repository.AdvisoryRepository
	gateway      Generator
}

// NewAdvisoryService 创建一个新的 AdvisoryService 实例。
func NewAdvisoryService(personaRepo repository.PersonaRepository, advisoryRepo repository.AdvisoryRepository, gateway Generator) AdvisoryService {
	return &advisoryService{
		personaRepo:  personaRepo,
		advisoryRepo: advisoryRepo,
		gateway:      gateway,
	}
}

// Answer 回答一条咨询问题并更新对话历史。
// 画像存在时注入系统提示；尚未完成引导的用户得到不带画像前言的通用回答。
// 返回值第二项表示回复是否由兜底 mock 生成。
func (s *advisoryService) Answer(ctx context.Context, userID uint, question string) (string, bool, error) {
	persona, err := s.personaRepo.FindByUserID(userID)
	if err != nil {
		if !errors.Is(err, repository.ErrPersonaNotFound) {
			return "", false, err
		}
		persona = nil
	}

	history, err := s.advisoryRepo.GetHistory(ctx, userID)
	if err != nil {
		log.Errorf("加载用户 %d 的咨询历史失败: %v", userID, err)
		history = []model.ChatMessage{}
	}

	messages := s.composeMessages(persona, history, question)
	result := s.gateway.Generate(ctx, messages)

	// 使用后台上下文，即使原始请求被取消也要保存成功生成的回答
	if err := s.saveExchange(context.Background(), userID, history, question, result.Text); err != nil {
		// 只记录错误，回答仍然返回给客户端
		log.Errorf("保存用户 %d 的咨询历史失败: %v", userID, err)
	}

	return result.Text, result.Degraded, nil
}

// composeMessages 用画像（若存在）构建系统提示，拼上历史和当前提问。
func (s *advisoryService) composeMessages(persona *model.Persona, history []model.ChatMessage, question string) []llm.Message {
	var sys strings.Builder
	sys.WriteString("You are a personal financial advisor.")
	if persona != nil {
		sys.WriteString(" The user's profile: ")
		sys.WriteString(fmt.Sprintf("goals: %s; risk tolerance: %s; investment horizon: %s",
			strings.Join(persona.GoalList(), ", "), persona.RiskTolerance, persona.TimeHorizon))
		if persona.Interests != "" {
			sys.WriteString("; interests: ")
			sys.WriteString(persona.Interests)
		}
		sys.WriteString(". Tailor every answer to this profile and")
	} else {
		sys.WriteString(" The user has not completed onboarding yet, so answer generally and")
	}
	sys.WriteString(" keep replies concise.")

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: sys.String()})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: question})
	return messages
}

func (s *advisoryService) saveExchange(ctx context.Context, userID uint, history []model.ChatMessage, question, answer string) error {
	now := time.Now()
	history = append(history,
		model.ChatMessage{Role: model.RoleUser, Content: question, Timestamp: now},
		model.ChatMessage{Role: model.RoleAssistant, Content: answer, Timestamp: now},
	)
	return s.advisoryRepo.UpdateHistory(ctx, userID, history)
}
