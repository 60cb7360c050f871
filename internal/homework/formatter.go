package homework

import "fmt"

const (
	fieldName   = "homework_name"
	fieldStatus = "status"
)

// Submission is one homework review record.
type Submission struct {
	Name   string
	Status string
}

// Parse extracts name and status from a raw submission mapping.
// It does not consult the catalog.
func Parse(v any) (Submission, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Submission{}, newError(KindShape, "submission is not a mapping", nil)
	}
	name, err := stringField(obj, fieldName)
	if err != nil {
		return Submission{}, err
	}
	status, err := stringField(obj, fieldStatus)
	if err != nil {
		return Submission{}, err
	}
	return Submission{Name: name, Status: status}, nil
}

// StatusOf returns the raw status of a submission mapping.
func StatusOf(v any) (string, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", newError(KindShape, "submission is not a mapping", nil)
	}
	return stringField(obj, fieldStatus)
}

// Format renders the chat message for a submission.
func Format(v any) (string, error) {
	sub, err := Parse(v)
	if err != nil {
		return "", err
	}
	return sub.Message()
}

// Message renders the chat message for an already parsed submission.
func (s Submission) Message() (string, error) {
	verdict, ok := Verdict(s.Status)
	if !ok {
		return "", &Error{
			Kind:  KindUnknownStatus,
			Msg:   fmt.Sprintf("unknown homework status %q", s.Status),
			Field: s.Status,
		}
	}
	return fmt.Sprintf("Изменился статус проверки работы \"%s\". %s", s.Name, verdict), nil
}

func stringField(obj map[string]any, key string) (string, error) {
	raw, ok := obj[key]
	if !ok {
		return "", &Error{
			Kind:  KindMissingField,
			Msg:   fmt.Sprintf("submission has no %q field", key),
			Field: key,
		}
	}
	s, ok := raw.(string)
	if !ok {
		return "", newError(KindShape, fmt.Sprintf("submission field %q is not a string", key), nil)
	}
	return s, nil
}
