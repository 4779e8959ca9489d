package pagestate

import (
	"errors"
	"fmt"
	"strconv"
)

// formStateMagic is the sentinel blink writes as the first document-state
// token when the vector carries serialized form values.
const formStateMagic = "\n\r?% Blink serialized form state version 9 \n\r=&"

// ErrNotFormState reports a document-state vector that does not carry the
// version-9 form serialization.
var ErrNotFormState = errors.New("pagestate: not a serialized form state")

// FormField is one control's recovered values within a form.
type FormField struct {
	Name   string
	Type   string
	Values []string
}

// FormState maps a form key to its recovered fields, in token order.
type FormState map[string][]FormField

// ParseFormState recovers form values from a frame's document-state vector.
// Forensically these are the user-typed inputs captured at serialization
// time, which is why the vector is worth the awkward token format.
func ParseFormState(documentState []string) (FormState, error) {
	if len(documentState) < 1 {
		return nil, ErrNotFormState
	}
	if documentState[0] != formStateMagic {
		return nil, ErrNotFormState
	}

	tokens := documentState[1:]
	pos := 0
	next := func() (string, error) {
		if pos >= len(tokens) {
			return "", fmt.Errorf("pagestate: form state ends mid-structure at token %d", pos)
		}
		t := tokens[pos]
		pos++
		return t, nil
	}
	nextCount := func(what string) (int, error) {
		t, err := next()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(t)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("pagestate: bad %s count %q", what, t)
		}
		return n, nil
	}

	result := make(FormState)
	for pos < len(tokens) {
		formKey, err := next()
		if err != nil {
			return nil, err
		}
		itemCount, err := nextCount("item")
		if err != nil {
			return nil, err
		}
		for i := 0; i < itemCount; i++ {
			name, err := next()
			if err != nil {
				return nil, err
			}
			fieldType, err := next()
			if err != nil {
				return nil, err
			}
			valueCount, err := nextCount("value")
			if err != nil {
				return nil, err
			}
			values := make([]string, 0, valueCount)
			for j := 0; j < valueCount; j++ {
				v, err := next()
				if err != nil {
					return nil, err
				}
				values = append(values, v)
			}
			result[formKey] = appendField(result[formKey], name, fieldType, values)
		}
	}
	return result, nil
}

// appendField merges values into an existing (name, type) field or adds a
// new one, matching how repeated serializations accumulate.
func appendField(fields []FormField, name, fieldType string, values []string) []FormField {
	for i := range fields {
		if fields[i].Name == name && fields[i].Type == fieldType {
			fields[i].Values = append(fields[i].Values, values...)
			return fields
		}
	}
	return append(fields, FormField{Name: name, Type: fieldType, Values: values})
}
