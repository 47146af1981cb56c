package explore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var errNoJSONObject = errors.New("response contains no JSON object")

// firstJSONObject returns the first well-formed {...} value in raw, after
// dropping a surrounding markdown code fence. Prose before or after the
// object is ignored.
func firstJSONObject(raw string) (json.RawMessage, error) {
	text := stripCodeFence(strings.TrimSpace(raw))
	for offset := 0; offset < len(text); {
		idx := strings.IndexByte(text[offset:], '{')
		if idx < 0 {
			break
		}
		start := offset + idx
		var candidate json.RawMessage
		if err := json.NewDecoder(strings.NewReader(text[start:])).Decode(&candidate); err == nil {
			return candidate, nil
		}
		offset = start + 1
	}
	return nil, errNoJSONObject
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return text
	}
	lines = lines[1:]
	if last := strings.TrimSpace(lines[len(lines)-1]); last == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// DecodeResponse extracts the first JSON object from a model response,
// validates it against schema and decodes it into target.
func DecodeResponse(raw string, schema *jsonschema.Schema, target any) error {
	block, err := firstJSONObject(raw)
	if err != nil {
		return err
	}
	if schema != nil {
		var doc any
		decoder := json.NewDecoder(bytes.NewReader(block))
		decoder.UseNumber()
		if err := decoder.Decode(&doc); err != nil {
			return fmt.Errorf("decode response for validation: %w", err)
		}
		if err := schema.Validate(doc); err != nil {
			return fmt.Errorf("response does not match schema: %w", err)
		}
	}
	if err := json.Unmarshal(block, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func MustCompileSchema(name, source string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(source)); err != nil {
		panic(fmt.Sprintf("load schema %s: %v", name, err))
	}
	return compiler.MustCompile(name)
}

// looseFloat accepts a JSON number or a numeric string.
type looseFloat float64

func (f *looseFloat) UnmarshalJSON(data []byte) error {
	value := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if value == "" || value == "null" {
		*f = 0
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", value, err)
	}
	*f = looseFloat(parsed)
	return nil
}

// LooseBool accepts true/false or their string spellings.
type LooseBool bool

func (b *LooseBool) UnmarshalJSON(data []byte) error {
	value := strings.ToLower(strings.Trim(strings.TrimSpace(string(data)), `"`))
	switch value {
	case "true", "yes", "1":
		*b = true
	case "false", "no", "0", "", "null":
		*b = false
	default:
		return fmt.Errorf("parse bool %q", value)
	}
	return nil
}
