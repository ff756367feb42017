// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/aleutian-testgen/services/llm"
)

// DefaultPath is read when no --config flag is given. A missing file there
// is not an error.
const DefaultPath = "testgen.yaml"

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()

	// Report fields by their YAML keys.
	configValidate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// "model" accepts any selector known to the llm registry.
	_ = configValidate.RegisterValidation("model", func(fl validator.FieldLevel) bool {
		_, err := llm.LookupModel(fl.Field().String())
		return err == nil
	})
}

// Load reads path over DefaultConfig.
//
// # Description
//
// Keys present in the file replace defaults; absent keys keep them. Unknown
// keys are rejected so a misspelt option never silently does nothing.
// When path is empty, DefaultPath is tried and its absence is ignored. An
// explicit path that does not exist is an error.
//
// The result is not validated; callers merge flags first and then call
// Validate.
//
// # Outputs
//
//   - Config: defaults overlaid with the file
//   - string: the file actually read, "" when none
//   - error: read or parse failure
func Load(path string) (Config, string, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, "", nil
		}
		return cfg, "", fmt.Errorf("failed to read the config file %s: %w", path, err)
	}
	if err := Decode(bytes.NewReader(data), &cfg); err != nil {
		return cfg, "", fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, path, nil
}

// Decode strictly decodes YAML from r onto cfg. An empty document leaves cfg
// untouched.
func Decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks every field constraint and reports all violations at once.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "http_url":
		return fmt.Sprintf("%s must be an http(s) URL, got %q", field, fe.Value())
	case "model":
		return fmt.Sprintf("%s %q is not one of %s", field, fe.Value(), strings.Join(llm.Selectors(), ", "))
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s fails %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
}

// Marshal renders cfg as YAML, used by `testgen config` to show the
// effective settings.
func Marshal(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
