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
)

// MockPrompter implements Prompter with scripted responses for testing.
type MockPrompter struct {
	responses []string
	next      int

	// Asked records the names prompted for, in order.
	Asked []string
}

// NewMockPrompter returns a prompter answering with responses in order.
func NewMockPrompter(responses ...string) *MockPrompter {
	return &MockPrompter{responses: responses}
}

// PromptValue returns the next scripted response.
func (mp *MockPrompter) PromptValue(ctx context.Context, name, desc string) (string, error) {
	mp.Asked = append(mp.Asked, name)
	if mp.next >= len(mp.responses) {
		return "", fmt.Errorf("no mock response for %s", name)
	}
	r := mp.responses[mp.next]
	mp.next++
	return r, nil
}
