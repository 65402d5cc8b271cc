package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

type ComponentKind string

const (
	KindVideo  ComponentKind = "video"
	KindText   ComponentKind = "text"
	KindMCQ    ComponentKind = "mcq"
	KindMOQ    ComponentKind = "moq"
	KindCoding ComponentKind = "coding"
)

func (k ComponentKind) Valid() bool {
	switch k {
	case KindVideo, KindText, KindMCQ, KindMOQ, KindCoding:
		return true
	}
	return false
}

// Graded 是否需要用户提交答案
func (k ComponentKind) Graded() bool {
	return k == KindMCQ || k == KindMOQ || k == KindCoding
}

// HasOptions 选择题类组件带选项
func (k ComponentKind) HasOptions() bool {
	return k == KindMCQ || k == KindMOQ
}

// Component 课时内的一个组件，具体内容按 Kind 存放在 Payload 中
// swagger:model Component
type Component struct {
	CatalogModel
	LessonID     uint              `gorm:"not null;index" json:"lessonId"`
	Kind         ComponentKind     `gorm:"column:type;size:15;not null" json:"type"`
	MaxScore     int               `gorm:"not null" json:"maxScore"`
	SerialNumber int               `gorm:"not null" json:"serialNumber"`
	Payload      datatypes.JSON    `json:"-"`
	Options      []ComponentOption `gorm:"foreignKey:ComponentID" json:"-"`
	Tests        []CodingTest      `gorm:"foreignKey:ComponentID" json:"-"`
}

func (Component) TableName() string {
	return "components"
}

// swagger:model ComponentOption
type ComponentOption struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ComponentID uint   `gorm:"not null;index" json:"-"`
	Option      string `gorm:"type:text" json:"option"`
	IsCorrect   bool   `gorm:"default:false" json:"isCorrect"`
	Position    int    `gorm:"default:0" json:"-"`
}

func (ComponentOption) TableName() string {
	return "component_options"
}

// swagger:model CodingTest
type CodingTest struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ComponentID uint   `gorm:"not null;index" json:"-"`
	Input       string `gorm:"type:text" json:"input"`
	Output      string `gorm:"type:text" json:"output"`
	Position    int    `gorm:"default:0" json:"-"`
}

func (CodingTest) TableName() string {
	return "coding_tests"
}

// ComponentBody 组件的具体内容，取值由 Kind 决定
type ComponentBody interface {
	BodyKind() ComponentKind
}

type VideoBody struct {
	VideoURL string `json:"videoUrl"`
}

type TextBody struct {
	Content string `json:"content"`
}

// ChoiceBody 单选题和多选题共用
type ChoiceBody struct {
	kind     ComponentKind
	Question string            `json:"question"`
	Options  []ComponentOption `json:"options"`
}

type CodingBody struct {
	Question    string       `json:"question"`
	Language    string       `json:"language"`
	StarterCode string       `json:"starterCode,omitempty"`
	Tests       []CodingTest `json:"tests"`
}

func (VideoBody) BodyKind() ComponentKind    { return KindVideo }
func (TextBody) BodyKind() ComponentKind     { return KindText }
func (b ChoiceBody) BodyKind() ComponentKind { return b.kind }
func (CodingBody) BodyKind() ComponentKind   { return KindCoding }

// Body 按 Kind 解析 Payload，Options/Tests 需要事先 Preload
func (c *Component) Body() (ComponentBody, error) {
	raw := []byte(c.Payload)
	if len(raw) == 0 {
		raw = []byte("{}")
	}

	switch c.Kind {
	case KindVideo:
		var b VideoBody
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case KindText:
		var b TextBody
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		return b, nil
	case KindMCQ, KindMOQ:
		b := ChoiceBody{kind: c.Kind}
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		b.Options = c.Options
		if b.Options == nil {
			b.Options = []ComponentOption{}
		}
		return b, nil
	case KindCoding:
		var b CodingBody
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, err
		}
		b.Tests = c.Tests
		if b.Tests == nil {
			b.Tests = []CodingTest{}
		}
		return b, nil
	}
	return nil, nil
}

// CorrectOptionCount 多选题判分用
func (c *Component) CorrectOptionCount() int {
	n := 0
	for _, o := range c.Options {
		if o.IsCorrect {
			n++
		}
	}
	return n
}

// Language 编程题的语言标识
func (c *Component) Language() string {
	if c.Kind != KindCoding {
		return ""
	}
	var b struct {
		Language string `json:"language"`
	}
	_ = json.Unmarshal([]byte(c.Payload), &b)
	return b.Language
}
