// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prompt

import (
	"context"
	"fmt"

	"github.com/AlecAivazis/survey/v2"

	"github.com/tombee/kiln/pkg/workflow"
)

// SurveyPrompter implements Prompter using the survey library.
type SurveyPrompter struct{}

// NewSurveyPrompter creates a new survey-based prompter.
func NewSurveyPrompter() *SurveyPrompter {
	return &SurveyPrompter{}
}

// PromptValue reads one value, validating it as a --set value before
// accepting it.
func (sp *SurveyPrompter) PromptValue(ctx context.Context, name, desc string) (string, error) {
	var result string
	q := &survey.Input{
		Message: fmt.Sprintf("%s (%s):", name, desc),
		Help:    "numbers, strings, true/false, [lists] or a quantity such as \"0.5 cm\"",
	}
	err := survey.AskOne(q, &result,
		survey.WithValidator(survey.Required),
		survey.WithValidator(func(ans any) error {
			s, _ := ans.(string)
			_, err := workflow.ParseAssignment(name + "=" + s)
			return err
		}),
	)
	return result, err
}
