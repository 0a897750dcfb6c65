// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"fin-advisor-go/internal/config"
	"fin-advisor-go/internal/model"
	"fin-advisor-go/internal/repository"
	"fin-advisor-go/pkg/llm"
	"fin-advisor-go/pkg/log"

	"github.com/google/uuid"
)

// Generator 抽象了 LLM 网关，便于在测试中注入假实现。
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message) llm.Result
}

var (
	// ErrSessionComplete 表示会话已达到要求的轮数，不再接受新的用户消息。
	ErrSessionComplete = errors.New("session already complete")
	// ErrSessionNotComplete 表示会话尚未完成，还不能抽取画像。
	ErrSessionNotComplete = errors.New("session not complete")
)

// onboardingSystemPrompt 引导对话的元提示。模型只负责措辞，
// 完成与否由轮数计数器判定，模型的表态不作数。
const onboardingSystemPrompt = `You are a friendly financial onboarding advisor. ` +
	`Over the course of the conversation, learn about the user's financial goals, ` +
	`their investment timeline, their risk tolerance, and the product categories they are interested in. ` +
	`Ask one focused question at a time and keep replies short.`

// AdvanceResult 是一次会话推进的结果。
type AdvanceResult struct {
	Session  *model.Session
	Reply    string
	Degraded bool
	// Saved 为 false 表示会话状态没能写入存储，本次回复不会被记住。
	Saved bool
}

// OnboardingService 定义了引导会话状态机的业务逻辑接口。
type OnboardingService interface {
	Start(ctx context.Context, userID uint) (*model.Session, string, error)
	Advance(ctx context.Context, sessionID string, userID uint, message string) (*AdvanceResult, error)
	Finalize(ctx context.Context, sessionID string, userID uint) (*model.Persona, error)
}

type onboardingService struct {
	sessionRepo   repository.SessionRepository
	personaRepo   repository.PersonaRepository
	gateway       Generator
	requiredTurns int
	// 按会话 ID 串行化并发推进，防止轮数计数被覆盖
	sessionLocks sync.Map
}

// NewOnboardingService 创建一个新的 OnboardingService 实例。
func NewOnboardingService(sessionRepo repository.SessionRepository, personaRepo repository.PersonaRepository, gateway Generator, cfg config.OnboardingConfig) OnboardingService {
	return &onboardingService{
		sessionRepo:   sessionRepo,
		personaRepo:   personaRepo,
		gateway:       gateway,
		requiredTurns: cfg.RequiredTurns,
	}
}

func (s *onboardingService) lockSession(sessionID string) *sync.Mutex {
	mu, _ := s.sessionLocks.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// releaseLock 在会话进入终态（已定稿或已不存在）时回收互斥锁。
// 终态之后的操作都是幂等的读取，重建出新锁也不会破坏一致性。
func (s *onboardingService) releaseLock(sessionID string) {
	s.sessionLocks.Delete(sessionID)
}

// Start 创建一个新的引导会话并生成开场问候。
func (s *onboardingService) Start(ctx context.Context, userID uint) (*model.Session, string, error) {
	now := time.Now()
	session := &model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Turns:     []model.Turn{{Role: model.RoleSystem, Content: onboardingSystemPrompt, Timestamp: now}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	result := s.gateway.Generate(ctx, []llm.Message{
		{Role: "system", Content: onboardingSystemPrompt},
		{Role: "user", Content: "Hello, I'd like to get started."},
	})
	session.Turns = append(session.Turns, model.Turn{
		Role:      model.RoleAssistant,
		Content:   result.Text,
		Degraded:  result.Degraded,
		Timestamp: time.Now(),
	})

	if err := s.sessionRepo.Save(ctx, session); err != nil {
		return nil, "", fmt.Errorf("failed to save new session: %w", err)
	}

	log.Infof("用户 %d 开启引导会话 %s", userID, session.ID)
	return session, result.Text, nil
}

// Advance 接收一条用户消息并推进会话状态机。
// 当用户轮数达到要求时会话被标记为完成，之后的推进请求被拒绝。
func (s *onboardingService) Advance(ctx context.Context, sessionID string, userID uint, message string) (*AdvanceResult, error) {
	mu := s.lockSession(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.sessionRepo.Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			s.releaseLock(sessionID)
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, repository.ErrSessionNotFound
	}
	if session.Complete {
		return nil, ErrSessionComplete
	}

	now := time.Now()
	session.Turns = append(session.Turns, model.Turn{Role: model.RoleUser, Content: message, Timestamp: now})
	session.UserTurnCount++
	if session.UserTurnCount >= s.requiredTurns {
		session.Complete = true
	}

	result := s.gateway.Generate(ctx, s.buildMessages(session))
	session.Turns = append(session.Turns, model.Turn{
		Role:      model.RoleAssistant,
		Content:   result.Text,
		Degraded:  result.Degraded,
		Timestamp: time.Now(),
	})

	saved := true
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		// 回复仍然返回给用户，但明确告知状态没有落盘
		log.Errorf("保存会话 %s 失败: %v", sessionID, err)
		saved = false
	}

	return &AdvanceResult{Session: session, Reply: result.Text, Degraded: result.Degraded, Saved: saved}, nil
}

// buildMessages 把会话轮次转换成网关的消息格式。
func (s *onboardingService) buildMessages(session *model.Session) []llm.Message {
	messages := make([]llm.Message, 0, len(session.Turns)+1)
	for _, turn := range session.Turns {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	if session.Complete {
		messages = append(messages, llm.Message{
			Role:    "system",
			Content: "The onboarding conversation is now complete. Thank the user and summarize what you learned about them.",
		})
	}
	return messages
}

// extractedPersona 是画像抽取提示期望模型返回的 JSON 结构。
type extractedPersona struct {
	Goals         []string `json:"goals"`
	RiskTolerance string   `json:"risk_tolerance"`
	TimeHorizon   string   `json:"time_horizon"`
	Interests     []string `json:"interests"`
}

// Finalize 从已完成的会话中抽取用户画像并持久化。重复调用是幂等的。
func (s *onboardingService) Finalize(ctx context.Context, sessionID string, userID uint) (*model.Persona, error) {
	mu := s.lockSession(sessionID)
	mu.Lock()
	defer mu.Unlock()

	session, err := s.sessionRepo.Find(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			s.releaseLock(sessionID)
		}
		return nil, err
	}
	if session.UserID != userID {
		return nil, repository.ErrSessionNotFound
	}
	if !session.Complete {
		return nil, ErrSessionNotComplete
	}
	if session.Finalized {
		s.releaseLock(sessionID)
		return s.personaRepo.FindByUserID(userID)
	}

	persona := s.extractPersona(ctx, session)
	persona.UserID = userID
	persona.SessionID = session.ID
	persona.CompletedAt = time.Now()

	if err := s.personaRepo.Upsert(persona); err != nil {
		return nil, fmt.Errorf("failed to save persona: %w", err)
	}

	session.Finalized = true
	if err := s.sessionRepo.Save(ctx, session); err != nil {
		// 画像已持久化，会话标记失败只会导致下一次 Finalize 重新覆盖同样的画像
		log.Warnf("标记会话 %s 为已定稿失败: %v", sessionID, err)
	}

	log.Infof("用户 %d 的画像已从会话 %s 抽取完成", userID, session.ID)
	s.releaseLock(sessionID)
	return persona, nil
}

// extractPersona 先尝试用模型抽取结构化画像，失败时退回确定性的关键词扫描。
func (s *onboardingService) extractPersona(ctx context.Context, session *model.Session) *model.Persona {
	var transcript strings.Builder
	for _, turn := range session.Turns {
		if turn.Role == model.RoleUser {
			transcript.WriteString(turn.Content)
			transcript.WriteString("\n")
		}
	}

	prompt := "Extract the user's financial profile from the following onboarding answers. " +
		"Respond with ONLY a JSON object: {\"goals\": [...], \"risk_tolerance\": \"low|moderate|high\", " +
		"\"time_horizon\": \"short|medium|long\", \"interests\": [...]}.\n\n" + transcript.String()

	result := s.gateway.Generate(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if !result.Degraded {
		if persona, ok := parseExtraction(result.Text); ok {
			return persona
		}
		log.Warnf("画像抽取结果不是有效 JSON，退回关键词扫描")
	}
	return scanPersona(transcript.String())
}

// parseExtraction 从模型输出中解析画像 JSON，容忍 JSON 前后的多余文本。
func parseExtraction(text string) (*model.Persona, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	var extracted extractedPersona
	if err := json.Unmarshal([]byte(text[start:end+1]), &extracted); err != nil {
		return nil, false
	}
	risk := strings.ToLower(strings.TrimSpace(extracted.RiskTolerance))
	switch risk {
	case model.RiskLow, model.RiskModerate, model.RiskHigh:
	default:
		risk = model.RiskModerate
	}
	horizon := strings.ToLower(strings.TrimSpace(extracted.TimeHorizon))
	switch horizon {
	case model.HorizonShort, model.HorizonMedium, model.HorizonLong:
	default:
		horizon = model.HorizonMedium
	}
	persona := &model.Persona{
		RiskTolerance: risk,
		TimeHorizon:   horizon,
		Interests:     strings.ToLower(strings.Join(extracted.Interests, ",")),
	}
	persona.SetGoals(extracted.Goals)
	return persona, true
}

// 关键词扫描用的词表。顺序即优先级，先命中的生效。
var (
	goalKeywords = []struct {
		keyword string
		goal    string
	}{
		{"retire", "retirement"},
		{"house", "home_purchase"},
		{"home", "home_purchase"},
		{"education", "education"},
		{"college", "education"},
		{"travel", "travel"},
		{"emergency", "emergency_fund"},
		{"wealth", "wealth_growth"},
		{"grow", "wealth_growth"},
	}
	interestKeywords = []string{"etf", "stocks", "bonds", "crypto", "real estate", "funds", "savings"}
)

// scanPersona 是模型不可用时的确定性兜底抽取。
func scanPersona(transcript string) *model.Persona {
	lowered := strings.ToLower(transcript)

	risk := model.RiskModerate
	switch {
	case strings.Contains(lowered, "conservative") || strings.Contains(lowered, "low risk") || strings.Contains(lowered, "cautious"):
		risk = model.RiskLow
	case strings.Contains(lowered, "aggressive") || strings.Contains(lowered, "high risk"):
		risk = model.RiskHigh
	}

	horizon := model.HorizonMedium
	switch {
	case strings.Contains(lowered, "short term") || strings.Contains(lowered, "next year") || strings.Contains(lowered, "soon"):
		horizon = model.HorizonShort
	case strings.Contains(lowered, "long term") || strings.Contains(lowered, "decade") || strings.Contains(lowered, "retirement"):
		horizon = model.HorizonLong
	}

	var goals []string
	seen := make(map[string]bool)
	for _, gk := range goalKeywords {
		if strings.Contains(lowered, gk.keyword) && !seen[gk.goal] {
			goals = append(goals, gk.goal)
			seen[gk.goal] = true
		}
	}
	if len(goals) == 0 {
		goals = []string{"general_savings"}
	}

	var interests []string
	for _, ik := range interestKeywords {
		if strings.Contains(lowered, ik) {
			interests = append(interests, strings.ReplaceAll(ik, " ", "_"))
		}
	}

	persona := &model.Persona{
		RiskTolerance: risk,
		TimeHorizon:   horizon,
		Interests:     strings.Join(interests, ","),
	}
	persona.SetGoals(goals)
	return persona
}
