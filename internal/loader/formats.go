package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

func readJSON(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read: %w", err)
	}
	return parseJSON(data)
}

func parseJSON(data []byte) (Descriptor, error) {
	if !gjson.ValidBytes(data) {
		return Descriptor{}, errors.New("malformed JSON")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return Descriptor{}, errors.New("JSON migration must be an object")
	}

	var d Descriptor
	var err error
	if d.Name, err = jsonString(doc, "name"); err != nil {
		return Descriptor{}, err
	}
	if d.Up, err = jsonString(doc, "up"); err != nil {
		return Descriptor{}, err
	}
	if d.Down, err = jsonString(doc, "down"); err != nil {
		return Descriptor{}, err
	}
	if d.Version, err = jsonString(doc, "version"); err != nil {
		return Descriptor{}, err
	}

	if deps := doc.Get("dependencies"); deps.Exists() && deps.Type != gjson.Null {
		if !deps.IsArray() {
			return Descriptor{}, errors.New("dependencies must be an array of strings")
		}
		for _, dep := range deps.Array() {
			if dep.Type != gjson.String {
				return Descriptor{}, errors.New("dependencies must be an array of strings")
			}
			d.Dependencies = append(d.Dependencies, dep.Str)
		}
	}

	if ts := doc.Get("timestamp"); ts.Exists() && ts.Type != gjson.Null {
		v, err := jsonTimestamp(ts)
		if err != nil {
			return Descriptor{}, err
		}
		d.Timestamp = &v
	}

	if err := d.validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

func jsonString(doc gjson.Result, key string) (string, error) {
	v := doc.Get(key)
	if !v.Exists() || v.Type == gjson.Null {
		return "", nil
	}
	if v.Type != gjson.String {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return v.Str, nil
}

func jsonTimestamp(v gjson.Result) (int64, error) {
	switch v.Type {
	case gjson.Number:
		if v.Num != float64(int64(v.Num)) {
			return 0, fmt.Errorf("timestamp must be an integer, got %s", v.Raw)
		}
		return v.Int(), nil
	case gjson.String:
		ts, err := strconv.ParseInt(v.Str, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", v.Str)
		}
		return ts, nil
	default:
		return 0, fmt.Errorf("invalid timestamp %s", v.Raw)
	}
}

func readYAML(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("read: %w", err)
	}
	return parseYAML(data)
}

func parseYAML(data []byte) (Descriptor, error) {
	var d Descriptor
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&d); err != nil {
		if errors.Is(err, io.EOF) {
			return Descriptor{}, errors.New("empty YAML document")
		}
		return Descriptor{}, fmt.Errorf("malformed YAML: %w", err)
	}
	if err := d.validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}
