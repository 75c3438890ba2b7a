package cost

import (
	"testing"

	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/kaizen-works/kaizen/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roster = []models.Actor{
	{Name: "事務員", HourlyRate: 1500},
	{Name: "課長", HourlyRate: 4000},
	{Name: "部長", HourlyRate: 5999},
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		assignee string
		minutes  int
		fallback string
		want     Resolution
	}{
		{
			name:     "known actor",
			assignee: "事務員",
			minutes:  30,
			want:     Resolution{Assignee: "事務員", CostYen: models.Yen(750)},
		},
		{
			name:     "rounds half up",
			assignee: "部長",
			minutes:  1,
			want:     Resolution{Assignee: "部長", CostYen: models.Yen(100)},
		},
		{
			name:     "unknown actor falls back to known previous assignee",
			assignee: "課長代理",
			minutes:  15,
			fallback: "課長",
			want:     Resolution{Assignee: "課長", CostYen: models.Yen(1000)},
		},
		{
			name:     "unknown actor with unknown fallback keeps the name",
			assignee: "外注先",
			minutes:  15,
			fallback: "派遣社員",
			want:     Resolution{Assignee: "外注先"},
		},
		{
			name:     "unknown actor without fallback keeps the name",
			assignee: "外注先",
			minutes:  15,
			want:     Resolution{Assignee: "外注先"},
		},
		{
			name:     "automated sentinel in Japanese",
			assignee: "自動化",
			minutes:  90,
			fallback: "課長",
			want:     Resolution{Assignee: models.AutomatedAssignee, CostYen: models.Yen(0)},
		},
		{
			name:     "automated sentinel in English",
			assignee: " Automated ",
			minutes:  90,
			want:     Resolution{Assignee: models.AutomatedAssignee, CostYen: models.Yen(0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.assignee, tt.minutes, roster, tt.fallback))
		})
	}
}

func TestResolve_AutomatedIsAlwaysFree(t *testing.T) {
	rosters := [][]models.Actor{nil, {}, roster, {{Name: "automated", HourlyRate: 9000}}}

	for _, r := range rosters {
		for _, minutes := range []int{0, 1, 59, 600, 100000} {
			got := Resolve("automated", minutes, r, "")
			require.NotNil(t, got.CostYen)
			assert.Equal(t, 0, *got.CostYen)
		}
	}
}

func TestStepFromParsed(t *testing.T) {
	automated := StepFromParsed(parser.ParsedStep{
		Title:               "集計",
		Assignee:            "自動化",
		TimeRequiredMinutes: 5,
	}, 1, roster, "事務員")

	assert.NotEmpty(t, automated.ID)
	assert.Equal(t, 1, automated.Position)
	assert.Equal(t, AutomationToolsLabel, automated.Tools)
	assert.Equal(t, 0, automated.Cost())

	manual := StepFromParsed(parser.ParsedStep{
		Title:               "受付",
		Assignee:            "事務員",
		TimeRequiredMinutes: 20,
	}, 0, roster, "")

	assert.Empty(t, manual.Tools)
	require.NotNil(t, manual.CostYen)
	assert.Equal(t, 500, *manual.CostYen)
}

func TestStepsFromParsed_UsesPositionalFallback(t *testing.T) {
	parsed := []parser.ParsedStep{
		{Title: "A", Assignee: "担当X", TimeRequiredMinutes: 60},
		{Title: "B", Assignee: "担当Y", TimeRequiredMinutes: 60},
		{Title: "C", Assignee: "担当Z", TimeRequiredMinutes: 60},
	}
	previous := []models.Step{{Assignee: "事務員"}, {Assignee: "課長"}}

	steps := StepsFromParsed(parsed, roster, previous)
	require.Len(t, steps, 3)

	assert.Equal(t, "事務員", steps[0].Assignee)
	assert.Equal(t, 1500, steps[0].Cost())
	assert.Equal(t, "課長", steps[1].Assignee)
	assert.Equal(t, "担当Z", steps[2].Assignee)
	assert.Nil(t, steps[2].CostYen)

	for i, step := range steps {
		assert.Equal(t, i, step.Position)
	}
}
