package service

import (
	"encoding/json"
	"fmt"

	"ucode_backend/internal/model"
	"ucode_backend/internal/util"
)

// TaskAnswer 判分请求体，不同题型使用不同字段
// swagger:model TaskAnswer
type TaskAnswer struct {
	// 单选题：客户端给出所选选项的正误标记，或给出选项 ID 由服务端解析
	Answer   *bool `json:"answer,omitempty"`
	OptionID *uint `json:"optionId,omitempty"`
	// 多选题：所选选项的正误标记列表，或选项 ID 列表
	Answers   *[]bool `json:"answers,omitempty"`
	OptionIDs *[]uint `json:"optionIds,omitempty"`
	// 编程题
	Code string `json:"code,omitempty"`
}

func ParseTaskAnswer(raw []byte) (*TaskAnswer, error) {
	var a TaskAnswer
	if len(raw) == 0 {
		return &a, nil
	}
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, util.NewValidationError("body", "malformed answer payload")
	}
	return &a, nil
}

func optionIndex(c *model.Component) map[uint]model.ComponentOption {
	idx := make(map[uint]model.ComponentOption, len(c.Options))
	for _, o := range c.Options {
		idx[o.ID] = o
	}
	return idx
}

// GradeMultipleChoice 所选选项为正确选项即判对
func GradeMultipleChoice(c *model.Component, a *TaskAnswer) (bool, error) {
	switch {
	case a.OptionID != nil:
		opt, ok := optionIndex(c)[*a.OptionID]
		if !ok {
			return false, util.NewValidationError("optionId", fmt.Sprintf("option %d does not belong to component %d", *a.OptionID, c.ID))
		}
		return opt.IsCorrect, nil
	case a.Answer != nil:
		return *a.Answer, nil
	}
	return false, util.NewValidationError("answer", "required")
}

// GradeMultipleOptions 选中数量等于正确选项数量且没有选错即判对；正确选项为 0 时空选判对
func GradeMultipleOptions(c *model.Component, a *TaskAnswer) (bool, error) {
	var flags []bool
	switch {
	case a.OptionIDs != nil:
		idx := optionIndex(c)
		seen := make(map[uint]bool, len(*a.OptionIDs))
		for _, id := range *a.OptionIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			opt, ok := idx[id]
			if !ok {
				return false, util.NewValidationError("optionIds", fmt.Sprintf("option %d does not belong to component %d", id, c.ID))
			}
			flags = append(flags, opt.IsCorrect)
		}
	case a.Answers != nil:
		flags = *a.Answers
	default:
		return false, util.NewValidationError("answers", "required")
	}

	if len(flags) != c.CorrectOptionCount() {
		return false, nil
	}
	for _, f := range flags {
		if !f {
			return false, nil
		}
	}
	return true, nil
}

// Grade 对可即时判分的题型判分，编程题走异步判题
func Grade(c *model.Component, a *TaskAnswer) (bool, error) {
	switch c.Kind {
	case model.KindMCQ:
		return GradeMultipleChoice(c, a)
	case model.KindMOQ:
		return GradeMultipleOptions(c, a)
	}
	return false, util.ErrComponentNotGraded
}
