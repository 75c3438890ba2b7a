package improvement

import (
	"strings"
	"text/template"

	kt "github.com/kaizen-works/kaizen/pkg/template"
)

// SystemPrompt frames the generative service as a business process consultant.
const SystemPrompt = "あなたは業務改善コンサルタントです。与えられた業務フローを分析し、" +
	"自動化とツール活用によって所要時間とコストを削減した改善案を、指定されたタグ形式のみで出力してください。"

const promptTemplate = `以下の業務フローを改善してください。

# 業務フロー
名称: {{ orEmpty .WorkflowName "(未設定)" }}
概要: {{ orEmpty .WorkflowDescription "(なし)" }}

# 現在の工程
{{ range $i, $s := .Steps -}}
{{ inc $i }}. {{ $s.Title }}
   概要: {{ orEmpty $s.Description "(なし)" }}
   担当者: {{ $s.Assignee }}
   所要時間: {{ $s.TimeRequiredMinutes }}分
   ツール: {{ orEmpty $s.Tools "(なし)" }}
   コスト: {{ yen $s.CostYen }}
{{ end }}
{{- if .PreviousImproved }}
# 前回の改善案
{{ range $i, $s := .PreviousImproved -}}
{{ inc $i }}. {{ $s.Title }} / 担当者: {{ $s.Assignee }} / 所要時間: {{ $s.TimeRequiredMinutes }}分 / コスト: {{ yen $s.CostYen }}
{{ end }}
前回の改善案を踏まえ、さらに良い改善案を提案してください。
{{ end }}
{{- if .Actors }}
# 担当者と時給
{{ range .Actors -}}
- {{ .Name }}: 時給{{ .HourlyRate }}円
{{ end }}
{{- end }}
{{- if .Instruction }}
# 追加の指示
{{ .Instruction }}
{{ end }}
# 出力形式
各工程を次のタグで、この順番どおりに出力してください。
担当者は上記の担当者名、または自動化する場合は「自動化」と記入してください。
所要時間は分単位の数値で記入してください。

<工程名>工程名</工程名>
<概要>工程の説明</概要>
<担当者>担当者名または自動化</担当者>
<所要時間>分数</所要時間>
<ツール>使用するツール</ツール>
<コスト>想定コスト</コスト>`

var prompt = template.Must(kt.Parse("improvement", promptTemplate))

// BuildPrompt renders the improvement prompt for pc.
func BuildPrompt(pc PromptContext) (string, error) {
	pc.Instruction = strings.TrimSpace(pc.Instruction)

	return kt.Execute(prompt, pc)
}
