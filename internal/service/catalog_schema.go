package service

import (
	"encoding/json"
	"fmt"
	"sort"

	"ucode_backend/internal/model"
	"ucode_backend/internal/util"

	"github.com/xeipuuv/gojsonschema"
	"gorm.io/datatypes"
)

func languageEnum() []interface{} {
	langs := make([]string, 0, len(util.Judge0LanguageIDs))
	for l := range util.Judge0LanguageIDs {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	out := make([]interface{}, len(langs))
	for i, l := range langs {
		out[i] = l
	}
	return out
}

func choiceSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":     "object",
		"required": []interface{}{"question", "options"},
		"properties": map[string]interface{}{
			"question": map[string]interface{}{"type": "string", "minLength": 1},
			"options": map[string]interface{}{
				"type":     "array",
				"minItems": 1,
				"items": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"option"},
					"properties": map[string]interface{}{
						"option":    map[string]interface{}{"type": "string", "minLength": 1},
						"isCorrect": map[string]interface{}{"type": "boolean"},
					},
				},
			},
		},
	}
}

var componentSchemaDocs = map[model.ComponentKind]map[string]interface{}{
	model.KindVideo: {
		"type":     "object",
		"required": []interface{}{"videoUrl"},
		"properties": map[string]interface{}{
			"videoUrl": map[string]interface{}{"type": "string", "minLength": 1},
		},
	},
	model.KindText: {
		"type":     "object",
		"required": []interface{}{"content"},
		"properties": map[string]interface{}{
			"content": map[string]interface{}{"type": "string"},
		},
	},
	model.KindMCQ: choiceSchema(),
	model.KindMOQ: choiceSchema(),
	model.KindCoding: {
		"type":     "object",
		"required": []interface{}{"question", "language", "tests"},
		"properties": map[string]interface{}{
			"question":    map[string]interface{}{"type": "string", "minLength": 1},
			"language":    map[string]interface{}{"type": "string", "enum": languageEnum()},
			"starterCode": map[string]interface{}{"type": "string"},
			"tests": map[string]interface{}{
				"type":     "array",
				"minItems": 1,
				"items": map[string]interface{}{
					"type":     "object",
					"required": []interface{}{"output"},
					"properties": map[string]interface{}{
						"input":  map[string]interface{}{"type": "string"},
						"output": map[string]interface{}{"type": "string"},
					},
				},
			},
		},
	},
}

var componentSchemas = compileComponentSchemas()

func compileComponentSchemas() map[model.ComponentKind]*gojsonschema.Schema {
	schemas := make(map[model.ComponentKind]*gojsonschema.Schema, len(componentSchemaDocs))
	for kind, doc := range componentSchemaDocs {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(doc))
		if err != nil {
			panic(fmt.Sprintf("invalid %s component schema: %v", kind, err))
		}
		schemas[kind] = schema
	}
	return schemas
}

// validateComponentData 按题型校验 data，错误写入 verr，字段以 prefix 开头
func validateComponentData(kind model.ComponentKind, data json.RawMessage, prefix string, verr *util.ValidationError) bool {
	schema, ok := componentSchemas[kind]
	if !ok {
		verr.Add(prefix, "unknown component type")
		return false
	}
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		verr.Add(prefix, "must be a JSON object")
		return false
	}
	if result.Valid() {
		return true
	}

	for _, e := range result.Errors() {
		field := prefix
		if f := e.Field(); f != "" && f != gojsonschema.STRING_ROOT_SCHEMA_PROPERTY {
			field += "." + f
		}
		if e.Type() == "required" {
			if p, ok := e.Details()["property"].(string); ok {
				field += "." + p
				verr.Add(field, "required")
				continue
			}
		}
		verr.Add(field, e.Description())
	}
	return false
}

type choiceData struct {
	Question string `json:"question"`
	Options  []struct {
		Option    string `json:"option"`
		IsCorrect bool   `json:"isCorrect"`
	} `json:"options"`
}

type codingData struct {
	Question    string `json:"question"`
	Language    string `json:"language"`
	StarterCode string `json:"starterCode"`
	Tests       []struct {
		Input  string `json:"input"`
		Output string `json:"output"`
	} `json:"tests"`
}

// buildComponent 把已校验的输入转换为组件及其子记录
func buildComponent(in ComponentInput) (model.Component, error) {
	c := model.Component{
		Kind:         in.Type,
		MaxScore:     in.MaxScore,
		SerialNumber: in.SerialNumber,
	}

	var payload interface{}
	switch in.Type {
	case model.KindVideo:
		var b model.VideoBody
		if err := json.Unmarshal(in.Data, &b); err != nil {
			return c, err
		}
		payload = b
	case model.KindText:
		var b model.TextBody
		if err := json.Unmarshal(in.Data, &b); err != nil {
			return c, err
		}
		payload = b
	case model.KindMCQ, model.KindMOQ:
		var d choiceData
		if err := json.Unmarshal(in.Data, &d); err != nil {
			return c, err
		}
		payload = map[string]string{"question": d.Question}
		for _, o := range d.Options {
			c.Options = append(c.Options, model.ComponentOption{Option: o.Option, IsCorrect: o.IsCorrect})
		}
	case model.KindCoding:
		var d codingData
		if err := json.Unmarshal(in.Data, &d); err != nil {
			return c, err
		}
		payload = map[string]string{
			"question":    d.Question,
			"language":    d.Language,
			"starterCode": d.StarterCode,
		}
		for _, t := range d.Tests {
			c.Tests = append(c.Tests, model.CodingTest{Input: t.Input, Output: t.Output})
		}
	default:
		return c, fmt.Errorf("unknown component type %q", in.Type)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return c, err
	}
	c.Payload = datatypes.JSON(raw)
	return c, nil
}
