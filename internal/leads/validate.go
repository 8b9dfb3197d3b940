package leads

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sells-group/fieldsnap/internal/model"
	"github.com/sells-group/fieldsnap/internal/resilience"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest trims and validates an ingestion request. Failures are
// returned as *resilience.ValidationError naming the first bad field.
func (o *Orchestrator) validateRequest(req *model.IngestRequest) error {
	req.ImageURL = strings.TrimSpace(req.ImageURL)
	req.SourceLocation = strings.TrimSpace(req.SourceLocation)
	req.SourceNotes = strings.TrimSpace(req.SourceNotes)

	err := o.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &resilience.ValidationError{Field: "request", Reason: err.Error()}
	}
	fe := verrs[0]
	return &resilience.ValidationError{Field: fe.Field(), Reason: reason(fe)}
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url", "startswith":
		return "must be an http or https URL"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
