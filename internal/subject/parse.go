package subject

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sells-group/fieldsnap/internal/model"
)

const responseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["detected_subjects"],
  "properties": {
    "detected_subjects": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["type"],
        "properties": {
          "type": {"type": "string"},
          "description": {"type": "string"},
          "location": {
            "type": "object",
            "properties": {
              "position": {"type": "string"},
              "size_relative": {"type": "string"}
            }
          },
          "business_data": {
            "type": "object",
            "properties": {
              "business_name": {"type": ["string", "null"]},
              "phone_number": {"type": ["string", "null"]},
              "website": {"type": ["string", "null"]},
              "address": {"type": ["string", "null"]},
              "services": {"type": ["array", "null"], "items": {"type": "string"}}
            }
          },
          "text_content": {"type": ["array", "null"], "items": {"type": "string"}},
          "confidence": {"type": "number", "minimum": 0, "maximum": 1}
        }
      }
    },
    "primary_subject_index": {"type": ["integer", "null"]},
    "other_objects": {"type": ["array", "null"], "items": {"type": "string"}},
    "subject_isolation_success": {"type": "boolean"},
    "business_relevance_score": {"type": "number", "minimum": 0, "maximum": 1},
    "description": {"type": "string"}
  }
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("subject.json", strings.NewReader(responseSchema)); err != nil {
		panic(err)
	}
	return c.MustCompile("subject.json")
}

type wireResponse struct {
	DetectedSubjects        []wireSubject `json:"detected_subjects"`
	PrimarySubjectIndex     *int          `json:"primary_subject_index"`
	OtherObjects            []string      `json:"other_objects"`
	SubjectIsolationSuccess bool          `json:"subject_isolation_success"`
	BusinessRelevanceScore  float64       `json:"business_relevance_score"`
	Description             string        `json:"description"`
}

type wireSubject struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Location    struct {
		Position     string `json:"position"`
		SizeRelative string `json:"size_relative"`
	} `json:"location"`
	BusinessData struct {
		BusinessName string   `json:"business_name"`
		PhoneNumber  string   `json:"phone_number"`
		Website      string   `json:"website"`
		Address      string   `json:"address"`
		Services     []string `json:"services"`
	} `json:"business_data"`
	TextContent []string `json:"text_content"`
	Confidence  float64  `json:"confidence"`
}

// cleanJSON strips markdown fences and extracts the outermost JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

// ParseResponse decodes and validates a model reply into a
// SubjectAnalysis.
func ParseResponse(raw string) (*model.SubjectAnalysis, error) {
	text := cleanJSON(raw)
	if text == "" {
		return nil, eris.New("subject: empty response")
	}

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, eris.Wrap(err, "subject: response is not json")
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, eris.Wrap(err, "subject: response does not match schema")
	}

	var w wireResponse
	if err := json.Unmarshal([]byte(text), &w); err != nil {
		return nil, eris.Wrap(err, "subject: decode response")
	}
	return w.toAnalysis(), nil
}

func (w wireResponse) toAnalysis() *model.SubjectAnalysis {
	a := &model.SubjectAnalysis{
		DetectedSubjects:        make([]model.BusinessSubject, 0, len(w.DetectedSubjects)),
		OtherObjects:            nonEmpty(w.OtherObjects),
		SubjectIsolationSuccess: w.SubjectIsolationSuccess,
		BusinessRelevanceScore:  clamp01(w.BusinessRelevanceScore),
		Description:             strings.TrimSpace(w.Description),
	}
	for _, s := range w.DetectedSubjects {
		a.DetectedSubjects = append(a.DetectedSubjects, model.BusinessSubject{
			Type:        model.ParseSubjectType(strings.ToLower(strings.TrimSpace(s.Type))),
			Description: strings.TrimSpace(s.Description),
			Location: model.SubjectLocation{
				Position:     s.Location.Position,
				SizeRelative: s.Location.SizeRelative,
			},
			BusinessData: model.BusinessData{
				BusinessName: strings.TrimSpace(s.BusinessData.BusinessName),
				PhoneNumber:  strings.TrimSpace(s.BusinessData.PhoneNumber),
				Website:      strings.TrimSpace(s.BusinessData.Website),
				Address:      strings.TrimSpace(s.BusinessData.Address),
				Services:     nonEmpty(s.BusinessData.Services),
			},
			TextContent: nonEmpty(s.TextContent),
			Confidence:  clamp01(s.Confidence),
		})
	}

	a.PrimaryBusinessSubject = selectPrimary(a.DetectedSubjects, w.PrimarySubjectIndex)
	if a.PrimaryBusinessSubject == nil {
		a.SubjectIsolationSuccess = false
	}
	return a
}

// selectPrimary returns the indexed subject when it is business relevant,
// otherwise the most confident business-relevant subject, otherwise nil.
func selectPrimary(subjects []model.BusinessSubject, idx *int) *model.BusinessSubject {
	if idx != nil && *idx >= 0 && *idx < len(subjects) && subjects[*idx].Type.BusinessRelevant() {
		p := subjects[*idx]
		return &p
	}
	best := -1
	for i, s := range subjects {
		if !s.Type.BusinessRelevant() {
			continue
		}
		if best < 0 || s.Confidence > subjects[best].Confidence {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	p := subjects[best]
	return &p
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
