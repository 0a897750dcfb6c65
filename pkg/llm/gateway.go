package llm

import (
	"context"
	"sync"
	"time"

	"fin-advisor-go/internal/config"
	"fin-advisor-go/pkg/log"
)

// breakerState 记录单个 provider 的连续失败次数与熔断截止时间。
type breakerState struct {
	consecutiveFailures int
	openUntil           time.Time
}

// Gateway 按固定优先级编排多个 provider，并以确定性 mock 作为降级终点。
// Generate 永不向调用方返回错误，最坏情况是带降级标记的兜底文本。
type Gateway struct {
	providers        []Provider
	mock             *MockResponder
	attemptTimeout   time.Duration
	overallTimeout   time.Duration
	failureThreshold int
	cooldown         time.Duration

	mu       sync.Mutex
	breakers map[string]*breakerState
}

// NewGateway 按配置组装网关。优先级是静态的：gemini > mistral > openai。
// 未配置凭证的 provider 构造器返回 nil，直接不进入调用链。
func NewGateway(cfg config.LLMConfig) *Gateway {
	var providers []Provider
	for _, p := range []Provider{
		NewGemini(cfg.Gemini, cfg.Generation),
		NewMistral(cfg.Mistral, cfg.Generation),
		NewOpenAI(cfg.OpenAI, cfg.Generation),
	} {
		if p != nil {
			providers = append(providers, p)
		}
	}

	g := &Gateway{
		providers:        providers,
		attemptTimeout:   time.Duration(cfg.AttemptTimeoutSeconds) * time.Second,
		overallTimeout:   time.Duration(cfg.OverallTimeoutSeconds) * time.Second,
		failureThreshold: cfg.FailureThreshold,
		cooldown:         time.Duration(cfg.CooldownSeconds) * time.Second,
		breakers:         make(map[string]*breakerState),
	}
	if cfg.MockEnabled || len(providers) == 0 {
		g.mock = NewMockResponder()
	}
	for _, p := range providers {
		log.Infof("Provider Gateway 已注册 provider: %s", p.Name())
	}
	return g
}

// NewGatewayWithProviders 以显式的 provider 列表构造网关，供测试注入使用。
func NewGatewayWithProviders(providers []Provider, attemptTimeout time.Duration, failureThreshold int, cooldown time.Duration) *Gateway {
	return &Gateway{
		providers:        providers,
		mock:             NewMockResponder(),
		attemptTimeout:   attemptTimeout,
		overallTimeout:   attemptTimeout * time.Duration(len(providers)+1),
		failureThreshold: failureThreshold,
		cooldown:         cooldown,
		breakers:         make(map[string]*breakerState),
	}
}

// Generate 依次尝试各 provider，全部失败后落到兜底应答器。
func (g *Gateway) Generate(ctx context.Context, messages []Message) Result {
	// 为整条降级链路设置总时长上限，防止完全降级的 provider 链拖垮请求
	if g.overallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.overallTimeout)
		defer cancel()
	}

	for _, p := range g.providers {
		if g.isOpen(p.Name()) {
			log.Debugf("provider '%s' 处于熔断冷却期，跳过", p.Name())
			continue
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
		start := time.Now()
		text, err := p.Generate(attemptCtx, messages)
		latency := time.Since(start)
		cancel()

		if err != nil || text == "" {
			g.recordFailure(p.Name())
			log.Warnf("provider '%s' 调用失败 (耗时 %s): %v", p.Name(), latency, err)
			continue
		}

		g.recordSuccess(p.Name())
		log.Infow("Provider Gateway 生成成功",
			"provider", p.Name(),
			"latency", latency.String(),
		)
		return Result{Text: text, Provider: p.Name(), Degraded: false}
	}

	// 所有 provider 失败或不可用：确定性兜底，永不失败
	log.Warnf("所有 provider 均不可用，使用兜底应答器")
	if g.mock == nil {
		// mock 被禁用时仍保证返回非空文本
		return Result{
			Text:     "I apologize, but I encountered an issue while processing your request. Please try again later.",
			Provider: "none",
			Degraded: true,
		}
	}
	return Result{Text: g.mock.Respond(messages), Provider: g.mock.Name(), Degraded: true}
}

// isOpen 报告 provider 是否处于熔断冷却期。
func (g *Gateway) isOpen(name string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.breakers[name]
	if !ok {
		return false
	}
	return time.Now().Before(b.openUntil)
}

// recordFailure 累计连续失败次数，达到阈值后进入冷却期。
func (g *Gateway) recordFailure(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	b, ok := g.breakers[name]
	if !ok {
		b = &breakerState{}
		g.breakers[name] = b
	}
	b.consecutiveFailures++
	if b.consecutiveFailures >= g.failureThreshold {
		b.openUntil = time.Now().Add(g.cooldown)
		b.consecutiveFailures = 0
		log.Warnf("provider '%s' 连续失败达到阈值，熔断 %s", name, g.cooldown)
	}
}

// recordSuccess 清零失败计数。
func (g *Gateway) recordSuccess(name string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.breakers[name]; ok {
		b.consecutiveFailures = 0
		b.openUntil = time.Time{}
	}
}
