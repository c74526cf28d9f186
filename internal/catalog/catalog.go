package catalog

import (
	"fmt"

	"training_backend/internal/config"
)

type Module struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	RequiredTopics int    `json:"requiredTopics"`
}

// Catalog 启动时由配置构建，之后只读
type Catalog struct {
	modules map[string]Module
	order   []string
}

func NewCatalog(entries []config.ModuleEntry) (*Catalog, error) {
	c := &Catalog{modules: make(map[string]Module, len(entries))}
	for _, e := range entries {
		if e.ID == "" {
			return nil, fmt.Errorf("catalog: module with empty id")
		}
		if e.Topics <= 0 {
			return nil, fmt.Errorf("catalog: module %q needs a positive topic count, got %d", e.ID, e.Topics)
		}
		if _, dup := c.modules[e.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate module %q", e.ID)
		}
		c.modules[e.ID] = Module{ID: e.ID, Title: e.Title, RequiredTopics: e.Topics}
		c.order = append(c.order, e.ID)
	}
	return c, nil
}

// RequiredTopics 未知模块返回 ok=false，永远不会完成
func (c *Catalog) RequiredTopics(moduleID string) (int, bool) {
	m, ok := c.modules[moduleID]
	return m.RequiredTopics, ok
}

func (c *Catalog) Lookup(moduleID string) (Module, bool) {
	m, ok := c.modules[moduleID]
	return m, ok
}

// Modules 按配置顺序返回
func (c *Catalog) Modules() []Module {
	out := make([]Module, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.modules[id])
	}
	return out
}

// AnswerKey 题号 -> 正确选项下标
type AnswerKey struct {
	answers map[int]int
}

func NewAnswerKey(entries []config.QuestionEntry) (*AnswerKey, error) {
	k := &AnswerKey{answers: make(map[int]int, len(entries))}
	for _, e := range entries {
		if _, dup := k.answers[e.ID]; dup {
			return nil, fmt.Errorf("answer key: duplicate question %d", e.ID)
		}
		if e.Answer < 0 {
			return nil, fmt.Errorf("answer key: question %d has negative answer index", e.ID)
		}
		k.answers[e.ID] = e.Answer
	}
	if len(k.answers) == 0 {
		return nil, fmt.Errorf("answer key: no questions configured")
	}
	return k, nil
}

// Total 评分分母，与提交的答案数量无关
func (k *AnswerKey) Total() int {
	return len(k.answers)
}

func (k *AnswerKey) IsCorrect(questionID, selected int) bool {
	want, ok := k.answers[questionID]
	return ok && want == selected
}
