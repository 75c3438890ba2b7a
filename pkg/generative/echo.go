package generative

import (
	"context"
	"strings"

	"github.com/kaizen-works/kaizen/pkg/improvement"
	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/kaizen-works/kaizen/pkg/template"
)

const echoTemplate = `{{ range .Steps -}}
<工程名>{{ .Title }}</工程名>
<概要>{{ .Description }}</概要>
<担当者>{{ .Assignee }}</担当者>
<所要時間>{{ .TimeRequiredMinutes }}分</所要時間>
<ツール>{{ .Tools }}</ツール>
<コスト>{{ yen .CostYen }}</コスト>
{{ end }}`

// Echo answers with the tagged form of the current steps. Steps whose tools
// mention automation are reassigned to the automated actor. It lets the service
// run without an external model.
type Echo struct{}

var _ improvement.GenerativeTextService = Echo{}

// Complete renders pc.Steps in the tagged block format.
func (Echo) Complete(_ context.Context, _ string, pc improvement.PromptContext) (string, error) {
	steps := models.CloneSteps(pc.Steps)

	for i := range steps {
		if strings.Contains(steps[i].Tools, "自動") || strings.Contains(strings.ToLower(steps[i].Tools), "rpa") {
			steps[i].Assignee = models.AutomatedAssignee
		}
	}

	return template.Render(echoTemplate, struct{ Steps []models.Step }{Steps: steps})
}

// Static answers every prompt with the same text.
type Static struct {
	Text string
}

var _ improvement.GenerativeTextService = Static{}

// Complete returns s.Text.
func (s Static) Complete(context.Context, string, improvement.PromptContext) (string, error) {
	return s.Text, nil
}
