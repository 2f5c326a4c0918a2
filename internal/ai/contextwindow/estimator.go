package contextwindow

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultCharsPerToken 字符数与 token 数的经验比例
const DefaultCharsPerToken = 4

// Estimator 估算一段文本的 token 数
type Estimator interface {
	Estimate(content string) int
}

// CharEstimator 按固定字符比例估算，结果只与内容长度有关
// 这是近似值，不能用于计费
type CharEstimator struct {
	CharsPerToken int
}

// Estimate 向上取整
func (e CharEstimator) Estimate(content string) int {
	ratio := e.CharsPerToken
	if ratio <= 0 {
		ratio = DefaultCharsPerToken
	}
	n := utf8.RuneCountInString(content)
	return (n + ratio - 1) / ratio
}

// TiktokenEstimator 使用 tiktoken 精确计数，适用于 OpenAI 系列模型
type TiktokenEstimator struct {
	mu       sync.Mutex
	encoding *tiktoken.Tiktoken
}

// NewTiktokenEstimator 按编码名创建（默认 cl100k_base）
func NewTiktokenEstimator(encoding string) (*TiktokenEstimator, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to get encoding %s: %w", encoding, err)
	}
	return &TiktokenEstimator{encoding: enc}, nil
}

// NewTiktokenEstimatorForModel 按模型名选择编码，未知模型退回 cl100k_base
func NewTiktokenEstimatorForModel(model string) (*TiktokenEstimator, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return NewTiktokenEstimator("")
	}
	return &TiktokenEstimator{encoding: enc}, nil
}

// Estimate 返回编码后的 token 数
func (e *TiktokenEstimator) Estimate(content string) int {
	if content == "" {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.encoding.Encode(content, nil, nil))
}
