package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"gopkg.in/yaml.v3"

	"github.com/gameshake/gameshake/pkg/gameshake/client"
)

type Format string

const (
	FormatTable      Format = "table"
	FormatJSON       Format = "json"
	FormatYAML       Format = "yaml"
	FormatWide       Format = "wide"
	FormatGoTemplate Format = "go-template"
)

// ParseFormat splits "-o" values. For go-template=TEXT the template text is
// returned as well.
func ParseFormat(value string) (Format, string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return FormatTable, "", nil
	}
	if name, text, ok := strings.Cut(value, "="); ok {
		if Format(name) != FormatGoTemplate {
			return "", "", fmt.Errorf("unknown output format: %s", value)
		}
		if strings.TrimSpace(text) == "" {
			return "", "", fmt.Errorf("go-template output requires a template")
		}
		return FormatGoTemplate, text, nil
	}
	switch f := Format(value); f {
	case FormatTable, FormatJSON, FormatYAML, FormatWide:
		return f, "", nil
	case FormatGoTemplate:
		return "", "", fmt.Errorf("go-template output requires a template: -o go-template=...")
	}
	return "", "", fmt.Errorf("unknown output format: %s", value)
}

func WriteObject(w io.Writer, format Format, obj any) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		data, err := yaml.Marshal(obj)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, string(data))
		return err
	case FormatTable:
		return fmt.Errorf("table format requires a specific formatter")
	case FormatWide:
		return fmt.Errorf("wide format requires a specific formatter")
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}

// WriteRecords prints records as a JSON array or a YAML sequence, keeping
// every field the server sent.
func WriteRecords(w io.Writer, format Format, records []client.Record) error {
	if records == nil {
		records = []client.Record{}
	}
	switch format {
	case FormatJSON:
		return WriteObject(w, format, records)
	case FormatYAML:
		values, err := decodeGeneric(records)
		if err != nil {
			return err
		}
		return WriteObject(w, format, values)
	default:
		return fmt.Errorf("records cannot be written as %s", format)
	}
}

// WriteTemplate executes text once per record. Sprig functions are
// available.
func WriteTemplate(w io.Writer, text string, records []client.Record) error {
	tmpl, err := template.New("output").Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return fmt.Errorf("invalid go-template: %w", err)
	}
	values, err := decodeGeneric(records)
	if err != nil {
		return err
	}
	for _, v := range values {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, v); err != nil {
			return fmt.Errorf("failed to execute go-template: %w", err)
		}
		if !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
			buf.WriteByte('\n')
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// decodeGeneric keeps numbers as json.Number so large integers print
// unchanged.
func decodeGeneric(records []client.Record) ([]any, error) {
	out := make([]any, 0, len(records))
	for i, r := range records {
		dec := json.NewDecoder(bytes.NewReader(r))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("record %d is not valid JSON: %w", i, err)
		}
		out = append(out, numbersToNative(v))
	}
	return out, nil
}

func numbersToNative(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = numbersToNative(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = numbersToNative(e)
		}
		return t
	}
	return v
}
