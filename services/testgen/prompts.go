// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package testgen

import (
	"fmt"
	"strings"
	"text/template"
)

// ConstraintSuffix is appended to every message sent to the model.
const ConstraintSuffix = " Constraints: Do not include pretext or context, only return the answer."

const startPrompt = `For this conversation, assume the role of the most experienced JavaScript developer in the world. We are going to be generating a series of Playwright interactive end-to-end JavaScript tests, use ESM syntax. I will provide you with HTML in the next message. As part of this conversation, do not generate duplicate tests for the same components, instead find new ones in the given HTML.
You need to create a passing test case with several assertions for that HTML structure, one component at a time. To import the Playwright interface use the following code: "import { test, expect } from '@playwright/test'". Your task is to create a passing test case for one component at a time. Please do not add any additional text in the response, just return the code!`

const firstComponentTemplate = `Here is the HTML for a website hosted at {{.Endpoint}}, generate a comprehensive Playwright test file for the first component on this web page, make sure to navigate to the provided url in the test. Include a short name of the component in a few words in the response wrapped in "$$" characters, use snake case format inside of test with a JavaScript comment. If a component is a form, try to interact with the form. If the component includes links, then try to interact with the links. {{.Markup}}`

const nextComponentTemplate = `This is great, let us proceed with an interactive test for a component that you have not generated a test for already.
For example, components could be the navigation bar, the search bar, footer links, the login form.
Include a short name of the component in a few words in the response wrapped in "$$" characters, use snake case format inside of test with a JavaScript comment.
Components that I already have are {{if .Known}}{{join .Known ", "}}{{else}}none yet{{end}}.
The HTML is the same as before for a website hosted at {{.Endpoint}}: {{.Markup}}`

const fixTemplate = `I got an error running the test, please try to fix the code to make the test pass. You likely need to update the assertions to match the expected and please output all of the code for the test file fixed, so I copy it and run it. Don't forget to include Playwright with "import { test, expect } from '@playwright/test'"{{if .Hint}} The failure looks like {{.Hint}}.{{end}} {{.Output}}`

// PromptData fills the named slots of the prompt templates.
type PromptData struct {
	Endpoint string
	Markup   string
	Known    []string
	Hint     string
	Output   string
}

// PromptTemplates renders every message the loop sends.
//
// Built once per run and never modified.
type PromptTemplates struct {
	first *template.Template
	next  *template.Template
	fix   *template.Template
}

// NewPromptTemplates parses the built-in templates.
func NewPromptTemplates() (*PromptTemplates, error) {
	funcs := template.FuncMap{"join": strings.Join}
	parse := func(name, text string) (*template.Template, error) {
		t, err := template.New(name).Funcs(funcs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("parse %s prompt: %w", name, err)
		}
		return t, nil
	}

	first, err := parse("first", firstComponentTemplate)
	if err != nil {
		return nil, err
	}
	next, err := parse("next", nextComponentTemplate)
	if err != nil {
		return nil, err
	}
	fix, err := parse("fix", fixTemplate)
	if err != nil {
		return nil, err
	}
	return &PromptTemplates{first: first, next: next, fix: fix}, nil
}

// Start returns the opening message of the conversation.
func (p *PromptTemplates) Start() string { return startPrompt }

// Component renders the prompt for the component at index.
//
// Index 0 uses the first-component variant. Later indexes list the names
// already known so the model can avoid repeating them.
func (p *PromptTemplates) Component(index int, data PromptData) (string, error) {
	if index == 0 {
		return render(p.first, data)
	}
	return render(p.next, data)
}

// Fix renders a repair request carrying the runner output.
func (p *PromptTemplates) Fix(output, hint string) (string, error) {
	return render(p.fix, PromptData{Output: output, Hint: hint})
}

func render(t *template.Template, data PromptData) (string, error) {
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return b.String(), nil
}
