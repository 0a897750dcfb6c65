package llm

import "strings"

// MockResponder 是确定性的关键词匹配兜底应答器。
// 它永不失败、永不阻塞，是网关降级链路的终点。
type MockResponder struct{}

// NewMockResponder 创建兜底应答器。
func NewMockResponder() *MockResponder {
	return &MockResponder{}
}

func (m *MockResponder) Name() string { return "mock" }

// mockRule 将一组触发关键词映射到一条固定话术。
type mockRule struct {
	keywords []string
	reply    string
}

// 规则按序匹配，先命中先返回；引导类话术在前，通用理财话术在后。
var mockRules = []mockRule{
	{
		keywords: []string{"onboard", "get started", "financial goal", "primary goal"},
		reply:    "Hi there! I'd love to help you plan your financial future. What are your primary financial goals right now? Are you saving for something specific, looking to invest, or perhaps planning for retirement?",
	},
	{
		keywords: []string{"retirement", "saving", "save for", "education"},
		reply:    "That's great to know. How soon are you planning to achieve this goal? Understanding your timeline helps us recommend the right strategies for you.",
	},
	{
		keywords: []string{"timeline", "years", "soon", "long term", "short term"},
		reply:    "Thanks for sharing that. Could you tell me about your risk tolerance when it comes to investing? Do you prefer safer investments with steady returns, or are you comfortable with some volatility for potentially higher returns?",
	},
	{
		keywords: []string{"risk", "volatile", "safe", "conservative", "aggressive"},
		reply:    "Thank you for sharing all this information with me! Based on what you've told me, I can now provide you with personalized recommendations. Would you like to see your customized financial plan?",
	},
	{
		keywords: []string{"summary", "complete", "thank"},
		reply:    "Great! I've completed your onboarding process. Your personalized recommendations are now ready to view. Thank you for taking the time to share your financial goals with me!",
	},
	{
		keywords: []string{"invest", "investing", "portfolio"},
		reply:    "Based on general investment principles, it's usually a good idea to diversify your portfolio. Consider a mix of stocks, bonds, and other assets based on your risk tolerance and time horizon.",
	},
	{
		keywords: []string{"save", "emergency"},
		reply:    "Saving money is a great financial habit. Consider setting up an emergency fund with 3-6 months of expenses, and automate your savings by setting up regular transfers to a savings account.",
	},
	{
		keywords: []string{"debt", "loan", "mortgage"},
		reply:    "When managing debt, it's often best to prioritize high-interest debt first while making minimum payments on other debts. Creating a repayment plan can help you stay on track.",
	},
	{
		keywords: []string{"budget"},
		reply:    "Creating a budget helps you track income and expenses. The 50/30/20 rule suggests allocating 50% to needs, 30% to wants, and 20% to savings and debt repayment.",
	},
}

const mockDefaultReply = "I understand. Could you tell me more about your financial situation so I can better assist you?"

// Respond 根据最后一条消息中的关键词返回固定话术，保证非空且不出错。
func (m *MockResponder) Respond(messages []Message) string {
	if len(messages) == 0 {
		return "I'm here to help with your financial questions!"
	}
	last := strings.ToLower(messages[len(messages)-1].Content)
	for _, rule := range mockRules {
		for _, kw := range rule.keywords {
			if strings.Contains(last, kw) {
				return rule.reply
			}
		}
	}
	return mockDefaultReply
}
