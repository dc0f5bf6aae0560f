package internal

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
)

//go:embed flags.json
var flagsData []byte

// Option 候選答案
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Question 服務器端的完整題目模型
//
// 題目一經發出即不可變；CorrectAnswer 保證是 Options 中某一項的 ID。
type Question struct {
	FlagID        string   `json:"flagId"`
	FlagURL       string   `json:"flagUrl"`
	Options       []Option `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// ClientQuestion 發送給客戶端的安全投影（不含正確答案）
type ClientQuestion struct {
	FlagURL string   `json:"flagUrl"`
	Options []Option `json:"options"`
}

// ClientView 轉換為客戶端投影
func (q Question) ClientView() *ClientQuestion {
	return &ClientQuestion{
		FlagURL: q.FlagURL,
		Options: q.Options,
	}
}

// QuestionSource 題目提供者
//
// 核心只依賴此介面，題庫內容與選題策略可替換（測試時注入固定題目）。
type QuestionSource interface {
	NextQuestion() Question
}

// LocalizedText 多語言名稱
type LocalizedText struct {
	TR string `json:"tr"`
	EN string `json:"en"`
}

// Flag 一面國旗的原始資料
type Flag struct {
	ID           string        `json:"id"`
	Name         LocalizedText `json:"name"`
	FlagURL      string        `json:"flagUrl"`
	FlagURLSmall string        `json:"flagUrlSmall"`
}

const optionsPerQuestion = 4

// FlagBank 內嵌的國旗題庫
//
// 設計考量：
//   - 隨機選題，但盡力不與上一題重複（題庫大小 >= 2 時保證）
//   - 正確答案必定出現在選項中（選項 = 正解 + 隨機干擾項，再打亂順序）
//   - rand.Rand 非並發安全，以 Mutex 保護（多個房間同時出題）
type FlagBank struct {
	mu     sync.Mutex
	flags  []Flag
	rng    *rand.Rand
	lastID string
}

// NewFlagBank 載入內嵌題庫
func NewFlagBank(seed int64) (*FlagBank, error) {
	var payload struct {
		Flags []Flag `json:"flags"`
	}
	if err := json.Unmarshal(flagsData, &payload); err != nil {
		return nil, fmt.Errorf("解析題庫失敗: %w", err)
	}
	if len(payload.Flags) < optionsPerQuestion {
		return nil, fmt.Errorf("題庫至少需要 %d 面國旗，目前只有 %d", optionsPerQuestion, len(payload.Flags))
	}

	return &FlagBank{
		flags: payload.Flags,
		rng:   rand.New(rand.NewSource(seed)),
	}, nil
}

// Size 題庫大小
func (b *FlagBank) Size() int {
	return len(b.flags)
}

// NextQuestion 隨機產生下一道題目
func (b *FlagBank) NextQuestion() Question {
	b.mu.Lock()
	defer b.mu.Unlock()

	// 打亂後取第一面作為正解
	shuffled := make([]Flag, len(b.flags))
	copy(shuffled, b.flags)
	b.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	correct := shuffled[0]
	// 盡力不與上一題重複
	if correct.ID == b.lastID && len(shuffled) > 1 {
		correct = shuffled[1]
		shuffled[0], shuffled[1] = shuffled[1], shuffled[0]
	}
	b.lastID = correct.ID

	// 正解 + 干擾項，再打亂選項順序
	options := make([]Option, 0, optionsPerQuestion)
	for _, f := range shuffled[:optionsPerQuestion] {
		options = append(options, Option{ID: f.ID, Name: f.Name.EN})
	}
	b.rng.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})

	return Question{
		FlagID:        correct.ID,
		FlagURL:       correct.FlagURL,
		Options:       options,
		CorrectAnswer: correct.ID,
	}
}
