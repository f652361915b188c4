package content

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// importSchema validates course documents before they are accepted into the
// store. Syllabus analysis output arrives as JSON from an external model, so
// nothing about its shape is trusted.
const importSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "course", "weeks"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "course": {
      "type": "object",
      "required": ["course_title", "subject", "grade_level", "duration_weeks"],
      "properties": {
        "course_title": {"type": "string", "minLength": 1},
        "subject": {"type": "string", "minLength": 1},
        "grade_level": {"type": "string"},
        "duration_weeks": {"type": "integer", "minimum": 1, "maximum": 52},
        "school_year": {"type": "string"},
        "teacher_name": {"type": "string"},
        "max_students": {"type": "integer", "minimum": 0}
      }
    },
    "weeks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["week", "topic"],
        "properties": {
          "week": {"type": "integer", "minimum": 1},
          "topic": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "study_content": {"type": "boolean"},
          "video": {"type": "boolean"},
          "due_date": {"type": "string"},
          "assignment": {
            "type": "object",
            "required": ["questions"],
            "properties": {
              "total_points": {"type": "number", "minimum": 0},
              "time_limit": {"type": "integer", "minimum": 0},
              "questions": {
                "type": "array",
                "minItems": 1,
                "items": {"$ref": "#/definitions/question"}
              }
            }
          },
          "daily_challenges": {
            "type": "array",
            "items": {
              "allOf": [
                {"$ref": "#/definitions/question"},
                {
                  "type": "object",
                  "required": ["day"],
                  "properties": {"day": {"type": "integer", "minimum": 1, "maximum": 7}}
                }
              ]
            }
          }
        }
      }
    }
  },
  "definitions": {
    "question": {
      "type": "object",
      "required": ["id", "question", "type"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "question": {"type": "string", "minLength": 1},
        "type": {"enum": ["mcq", "short_answer"]},
        "options": {"type": "array", "items": {"type": "string"}},
        "correct_option": {"type": "integer", "minimum": 0},
        "correct_text": {"type": "string"},
        "points": {"type": "number", "minimum": 0},
        "explanation": {"type": "string"}
      },
      "allOf": [
        {
          "if": {"properties": {"type": {"const": "mcq"}}},
          "then": {"required": ["options", "correct_option"]}
        },
        {
          "if": {"properties": {"type": {"const": "short_answer"}}},
          "then": {"required": ["correct_text"]}
        }
      ]
    }
  }
}`

// ValidateImport checks a course import document against the schema and
// returns every violation found.
func ValidateImport(doc []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(importSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validate course document: %w", err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid course document: %s", strings.Join(msgs, "; "))
}
