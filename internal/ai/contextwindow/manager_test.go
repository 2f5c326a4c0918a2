package contextwindow

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lk2023060901/ai-chat-dashboard/internal/ai/provider/types"
)

// msg 创建内容长度为 tokens*4 的消息，估算值恰为 tokens
func msg(role types.Role, tokens int) types.Message {
	return types.NewMessage(role, strings.Repeat("a", tokens*DefaultCharsPerToken))
}

func ids(messages []types.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func model(window int) types.Model {
	return types.Model{ID: "test", Provider: "stub", ContextWindow: window}
}

func TestCharEstimator(t *testing.T) {
	tests := []struct {
		content string
		ratio   int
		want    int
	}{
		{"", 4, 0},
		{"abc", 4, 1},
		{"abcd", 4, 1},
		{"abcde", 4, 2},
		{"你好世界", 4, 1},
		{"abcdef", 0, 2},
		{"abcdef", 2, 3},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q/%d", tt.content, tt.ratio), func(t *testing.T) {
			assert.Equal(t, tt.want, CharEstimator{CharsPerToken: tt.ratio}.Estimate(tt.content))
		})
	}
}

func TestEstimate_CacheAndKnownTokens(t *testing.T) {
	m := NewManager()

	a := msg(types.RoleUser, 10)
	assert.Equal(t, 10, m.Estimate(a))
	assert.Equal(t, 1, m.CacheSize())

	// 同 ID 命中缓存
	assert.Equal(t, 10, m.Estimate(a))
	assert.Equal(t, 1, m.CacheSize())

	known := msg(types.RoleAssistant, 10)
	known.Tokens = 3
	assert.Equal(t, 3, m.Estimate(known))
	assert.Equal(t, 1, m.CacheSize(), "known tokens are not cached")

	// 编辑后重新估算
	a.Edit("short")
	assert.Equal(t, 2, m.Estimate(a))
	assert.Equal(t, 2, m.CacheSize())

	m.Reset()
	assert.Zero(t, m.CacheSize())
}

func TestTrim_IdentityWithinBudget(t *testing.T) {
	m := NewManager()
	messages := []types.Message{
		msg(types.RoleSystem, 100),
		msg(types.RoleUser, 100),
		msg(types.RoleAssistant, 100),
		msg(types.RoleUser, 100),
	}

	got := m.Trim(messages, model(900), DefaultReserveTokens)
	assert.Equal(t, messages, got)
}

func TestTrim_OverBudget(t *testing.T) {
	m := NewManager()
	sys := msg(types.RoleSystem, 100)
	u1 := msg(types.RoleUser, 300)
	a1 := msg(types.RoleAssistant, 300)
	u2 := msg(types.RoleUser, 200)
	a2 := msg(types.RoleAssistant, 200)
	u3 := msg(types.RoleUser, 100)
	messages := []types.Message{sys, u1, a1, u2, a2, u3}

	// 预算 1100 - 500 = 600：sys(100)+u3(100) 必选，再加 a2(200)、u2(200)，a1 超出停止
	got := m.Trim(messages, model(1100), DefaultReserveTokens)
	assert.Equal(t, ids([]types.Message{sys, u2, a2, u3}), ids(got))
	assert.LessOrEqual(t, m.TotalTokens(got), 600)
}

func TestTrim_StopsAtFirstOverflow(t *testing.T) {
	m := NewManager()
	old := msg(types.RoleUser, 10)
	big := msg(types.RoleAssistant, 500)
	last := msg(types.RoleUser, 10)

	// big 超出后不再回头纳入更早的小消息
	got := m.Trim([]types.Message{old, big, last}, model(600), 500)
	assert.Equal(t, ids([]types.Message{last}), ids(got))
}

func TestTrim_MandatoryOverBudget(t *testing.T) {
	m := NewManager()
	sys1 := msg(types.RoleSystem, 400)
	u1 := msg(types.RoleUser, 10)
	sys2 := msg(types.RoleSystem, 400)
	last := msg(types.RoleUser, 400)
	messages := []types.Message{sys1, u1, sys2, last}

	got := m.Trim(messages, model(1000), 500)
	assert.Equal(t, ids([]types.Message{sys1, sys2, last}), ids(got))
}

func TestTrim_NegativeReserveUsesDefault(t *testing.T) {
	m := NewManager(WithReserveTokens(0))
	messages := []types.Message{msg(types.RoleUser, 50), msg(types.RoleUser, 50)}

	assert.Len(t, m.Trim(messages, model(100), -1), 2)
	assert.Len(t, m.Trim(messages, model(100), 10), 1)
}

func TestTrim_Empty(t *testing.T) {
	m := NewManager()
	got := m.Trim(nil, model(100), 0)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

// TestTrim_Properties 随机历史上验证必选保留、预算、幂等与确定性
func TestTrim_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	roles := []types.Role{types.RoleSystem, types.RoleUser, types.RoleAssistant, types.RoleUser, types.RoleAssistant}

	for iter := 0; iter < 200; iter++ {
		m := NewManager()
		n := 1 + rng.IntN(30)
		messages := make([]types.Message, n)
		for i := range messages {
			messages[i] = msg(roles[rng.IntN(len(roles))], rng.IntN(300))
		}
		mdl := model(500 + rng.IntN(3000))
		budget := mdl.ContextWindow - DefaultReserveTokens

		got := m.Trim(messages, mdl, DefaultReserveTokens)

		var mandatory []types.Message
		for i, message := range messages {
			if message.IsSystem() || i == n-1 {
				mandatory = append(mandatory, message)
			}
		}

		gotIDs := ids(got)
		for _, message := range mandatory {
			require.Contains(t, gotIDs, message.ID)
		}
		if m.TotalTokens(mandatory) <= budget {
			require.LessOrEqual(t, m.TotalTokens(got), budget)
		} else {
			require.Equal(t, ids(mandatory), gotIDs)
		}
		if m.TotalTokens(messages) <= budget {
			require.Equal(t, messages, got)
		}

		// 保持原有顺序
		pos := make(map[string]int, n)
		for i, message := range messages {
			pos[message.ID] = i
		}
		for i := 1; i < len(got); i++ {
			require.Less(t, pos[got[i-1].ID], pos[got[i].ID])
		}

		require.Equal(t, got, m.Trim(got, mdl, DefaultReserveTokens), "idempotent")
		require.Equal(t, got, m.Trim(messages, mdl, DefaultReserveTokens), "deterministic")
	}
}

func TestLimitCount(t *testing.T) {
	m := NewManager()
	sys := msg(types.RoleSystem, 1)
	var messages []types.Message
	messages = append(messages, sys)
	for i := 0; i < 60; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		messages = append(messages, msg(role, 1))
	}

	got := m.LimitCount(messages, 0)
	require.Len(t, got, DefaultMaxMessages+1)
	assert.Equal(t, sys.ID, got[0].ID)
	assert.Equal(t, ids(messages[len(messages)-DefaultMaxMessages:]), ids(got[1:]))

	got = m.LimitCount(messages, 3)
	assert.Equal(t, []string{sys.ID, messages[58].ID, messages[59].ID, messages[60].ID}, ids(got))

	short := messages[:5]
	assert.Equal(t, short, m.LimitCount(short, 10))
}

func TestPrepare(t *testing.T) {
	m := NewManager(WithMaxMessages(3), WithReserveTokens(0))
	messages := []types.Message{
		msg(types.RoleSystem, 10),
		msg(types.RoleUser, 10),
		msg(types.RoleAssistant, 10),
		msg(types.RoleUser, 10),
		msg(types.RoleAssistant, 10),
		msg(types.RoleUser, 10),
	}

	got := m.Prepare(messages, model(30))
	assert.Equal(t, ids([]types.Message{messages[0], messages[4], messages[5]}), ids(got))
}

func TestManager_ConcurrentEstimate(t *testing.T) {
	m := NewManager()
	messages := make([]types.Message, 100)
	for i := range messages {
		messages[i] = msg(types.RoleUser, i)
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Trim(messages, model(1000), 100)
		}()
	}
	wg.Wait()
	assert.Equal(t, len(messages), m.CacheSize())
}

func TestTiktokenEstimator(t *testing.T) {
	e, err := NewTiktokenEstimatorForModel("gpt-4o")
	if err != nil {
		t.Skipf("tiktoken encoding unavailable: %v", err)
	}

	assert.Zero(t, e.Estimate(""))
	n := e.Estimate("hello world")
	assert.Greater(t, n, 0)
	assert.Less(t, n, 5)

	m := NewManager(WithEstimator(e))
	assert.Equal(t, n, m.Estimate(types.NewMessage(types.RoleUser, "hello world")))
}
