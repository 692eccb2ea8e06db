package helper

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// FlexFloat decodes 123.4, "123.4" and null.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	s := strings.Trim(string(b), `"`)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("number %s: %w", b, err)
	}
	*f = FlexFloat(v)
	return nil
}

// FlexString decodes "abc" as well as bare numbers (epoch timestamps, numeric tokens).
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if string(b) == "null" {
		*s = ""
		return nil
	}
	*s = FlexString(strings.Trim(string(b), `"`))
	return nil
}
