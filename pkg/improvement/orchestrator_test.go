package improvement_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kaizen-works/kaizen/pkg/events"
	"github.com/kaizen-works/kaizen/pkg/improvement"
	"github.com/kaizen-works/kaizen/pkg/metrics"
	"github.com/kaizen-works/kaizen/pkg/mocks"
	"github.com/kaizen-works/kaizen/pkg/models"
	"github.com/kaizen-works/kaizen/pkg/parser"
	"github.com/kaizen-works/kaizen/pkg/persistence"
	"github.com/kaizen-works/kaizen/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const threeBlocks = `改善案は以下のとおりです。
<工程名>請求書の自動取込</工程名><概要>OCRで取り込む</概要><担当者>自動化</担当者><所要時間>5分</所要時間><ツール></ツール><コスト></コスト>
<工程名>内容確認</工程名><概要>取込結果を確認する</概要><担当者>田中</担当者><所要時間>15分</所要時間><ツール>会計ソフト</ツール><コスト>500円</コスト>
<工程名>承認</工程名><概要>上長が承認する</概要><担当者>山田</担当者><所要時間>30</所要時間><ツール>ワークフロー</ツール><コスト></コスト>`

const twoBlocks = `<工程名>一括自動処理</工程名><概要>RPAで処理</概要><担当者>automated</担当者><所要時間>10</所要時間><ツール>RPA</ツール><コスト>0</コスト>
<工程名>最終承認</工程名><概要>承認</概要><担当者>佐藤</担当者><所要時間>20</所要時間><ツール></ツール><コスト></コスト>`

var roster = []models.Actor{
	{Name: "田中", HourlyRate: 2000},
	{Name: "佐藤", HourlyRate: 3000},
}

type fixture struct {
	generator *mocks.MockGenerativeTextService
	roster    *mocks.MockActorRosterProvider
	store     *mocks.MockPersistence
	bus       *mocks.MockEventBus
	orch      *improvement.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		generator: &mocks.MockGenerativeTextService{},
		roster:    &mocks.MockActorRosterProvider{},
		store:     &mocks.MockPersistence{},
		bus:       &mocks.MockEventBus{},
	}

	f.bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	f.orch = improvement.NewOrchestrator(f.generator, f.roster, f.store,
		improvement.WithPublisher(f.bus),
		improvement.WithClock(func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) }),
	)

	return f
}

func (f *fixture) publishedTypes() []events.EventType {
	var types []events.EventType

	for _, call := range f.bus.Calls {
		if call.Method == "Publish" {
			types = append(types, call.Arguments.Get(2).(interface{ GetType() events.EventType }).GetType())
		}
	}

	return types
}

func newSession() *workflow.Session {
	return workflow.NewDraftSession("請求書処理", "月次の請求書処理", []models.Step{
		{Title: "受領", Assignee: "田中", TimeRequiredMinutes: 30, CostYen: models.Yen(1000)},
		{Title: "入力", Assignee: "佐藤", TimeRequiredMinutes: 60, CostYen: models.Yen(3000)},
		{Title: "承認", Assignee: "佐藤", TimeRequiredMinutes: 30, CostYen: models.Yen(1500)},
	}, workflow.WithStrictInvariants())
}

func TestOrchestrator_Request_ThreeBlocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session := newSession()

	f.roster.On("List", mock.Anything).Return(roster, nil)
	f.generator.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(pc improvement.PromptContext) bool {
		return pc.WorkflowName == "請求書処理" && len(pc.Steps) == 3 && pc.PreviousImproved == nil && len(pc.Actors) == 2
	})).Return(threeBlocks, nil)

	assert.Equal(t, improvement.StateIdle, f.orch.State(session))
	require.NoError(t, f.orch.Request(ctx, session, "自動化を優先"))

	assert.Equal(t, improvement.StateImproved, f.orch.State(session))
	assert.True(t, session.ShowComparison())
	assert.False(t, session.Requesting())
	assert.Empty(t, session.PreviousImproved())

	improved := session.Current()
	require.Len(t, improved, 3)

	assert.Equal(t, models.AutomatedAssignee, improved[0].Assignee)
	assert.Equal(t, 0, *improved[0].CostYen)
	assert.Equal(t, "自動化ツール", improved[0].Tools)

	assert.Equal(t, "田中", improved[1].Assignee)
	assert.Equal(t, 500, *improved[1].CostYen)

	assert.Equal(t, "佐藤", improved[2].Assignee, "unknown assignee falls back to the original step")
	assert.Equal(t, 1500, *improved[2].CostYen)

	for i, step := range improved {
		assert.Equal(t, i, step.Position)
	}

	comparison := metrics.Compare(session.Original(), improved)
	assert.Equal(t, 58, comparison.TimeSavedPct)
	assert.Equal(t, 64, comparison.CostSavedPct)
	assert.InDelta(t, 1.0/3.0, comparison.CompareAutomationRatio, 1e-9)

	assert.Equal(t, []events.EventType{events.ImprovementRequestedEvent, events.ImprovementCompletedEvent}, f.publishedTypes())
}

func TestOrchestrator_RegenerateAndOneLevelUndo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session := newSession()

	f.roster.On("List", mock.Anything).Return(roster, nil)
	f.generator.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(pc improvement.PromptContext) bool {
		return pc.PreviousImproved == nil
	})).Return(threeBlocks, nil).Once()
	f.generator.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(pc improvement.PromptContext) bool {
		return len(pc.PreviousImproved) == 3 && len(pc.Steps) == 3
	})).Return(twoBlocks, nil).Once()

	require.NoError(t, f.orch.Request(ctx, session, ""))
	first := session.Current()

	require.NoError(t, f.orch.Request(ctx, session, "さらに削減"))

	second := session.Current()
	require.Len(t, second, 2)
	assert.Equal(t, models.AutomatedAssignee, second[0].Assignee)
	assert.Equal(t, first, session.PreviousImproved())
	assert.Len(t, session.Original(), 3, "original is frozen while improved")

	require.NoError(t, f.orch.Revert(ctx, session))
	assert.Equal(t, improvement.StateImproved, f.orch.State(session))
	assert.Equal(t, first, session.Current())
	assert.Empty(t, session.PreviousImproved())

	require.NoError(t, f.orch.Revert(ctx, session))
	assert.Equal(t, improvement.StateIdle, f.orch.State(session))
	assert.False(t, session.ShowComparison())
	assert.Len(t, session.Current(), 3)

	assert.ErrorIs(t, f.orch.Revert(ctx, session), improvement.ErrNotImproved)
	f.generator.AssertExpectations(t)
}

func TestOrchestrator_RequestAfterDraftRevertIsContextual(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session := newSession()

	f.roster.On("List", mock.Anything).Return(roster, nil)
	f.generator.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(pc improvement.PromptContext) bool {
		return pc.PreviousImproved == nil
	})).Return(threeBlocks, nil).Once()
	f.generator.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(pc improvement.PromptContext) bool {
		return len(pc.PreviousImproved) == 3 && len(pc.Steps) == 3
	})).Return(twoBlocks, nil).Once()

	require.NoError(t, f.orch.Request(ctx, session, ""))
	require.NoError(t, f.orch.Revert(ctx, session))

	assert.Equal(t, workflow.LineageDraft, session.Kind())
	assert.Len(t, session.Improved(), 3, "the draft keeps the reverted improvement")

	reverted, ok := f.bus.Calls[len(f.bus.Calls)-1].Arguments.Get(2).(events.ImprovementReverted)
	require.True(t, ok)
	assert.False(t, reverted.RestoredPrevious)

	require.NoError(t, f.orch.Request(ctx, session, "さらに削減"))
	assert.Len(t, session.Current(), 2)
	assert.Empty(t, session.PreviousImproved(), "leaving the improvement drops the undo history")
	f.generator.AssertExpectations(t)
}

func TestOrchestrator_Request_FailuresLeaveStateIntact(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *fixture)
		assertErr func(t *testing.T, err error)
	}{
		{
			name: "transport failure",
			setup: func(f *fixture) {
				f.roster.On("List", mock.Anything).Return(roster, nil)
				f.generator.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("connection refused"))
			},
			assertErr: func(t *testing.T, err error) {
				var transportErr *improvement.TransportError
				require.ErrorAs(t, err, &transportErr)
				assert.Equal(t, "complete", transportErr.Op)
				assert.True(t, improvement.IsTransportError(err))
			},
		},
		{
			name: "roster failure",
			setup: func(f *fixture) {
				f.roster.On("List", mock.Anything).Return(nil, errors.New("roster offline"))
			},
			assertErr: func(t *testing.T, err error) {
				assert.True(t, improvement.IsTransportError(err))
			},
		},
		{
			name: "untagged response",
			setup: func(f *fixture) {
				f.roster.On("List", mock.Anything).Return(roster, nil)
				f.generator.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return("申し訳ありませんが、提案できません。", nil)
			},
			assertErr: func(t *testing.T, err error) {
				assert.True(t, improvement.IsParseError(err))
				assert.ErrorIs(t, err, parser.ErrNoStructuredSteps)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			session := newSession()
			before := session.Snapshot()

			tt.setup(f)

			err := f.orch.Request(context.Background(), session, "")
			require.Error(t, err)
			tt.assertErr(t, err)

			after := session.Snapshot()
			assert.Equal(t, before.Current, after.Current)
			assert.Equal(t, before.Kind, after.Kind)
			assert.False(t, after.Requesting)
			assert.Equal(t, improvement.StateIdle, f.orch.State(session))
			assert.Equal(t, []events.EventType{events.ImprovementRequestedEvent, events.ImprovementFailedEvent}, f.publishedTypes())
		})
	}
}

func TestOrchestrator_Request_RejectsConcurrentRequest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session := newSession()
	release := make(chan struct{})

	f.roster.On("List", mock.Anything).Return(roster, nil)
	f.generator.On("Complete", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { <-release }).
		Return(threeBlocks, nil).Once()

	done := make(chan error, 1)

	go func() {
		done <- f.orch.Request(ctx, session, "")
	}()

	require.Eventually(t, session.Requesting, time.Second, time.Millisecond)
	assert.Equal(t, improvement.StateRequesting, f.orch.State(session))

	assert.ErrorIs(t, f.orch.Request(ctx, session, ""), improvement.ErrRequestInProgress)
	assert.ErrorIs(t, f.orch.Revert(ctx, session), improvement.ErrRequestInProgress)

	session.AddStep(workflow.StepInput{Title: "追加", Assignee: "田中", TimeRequiredMinutes: 10})

	close(release)
	require.NoError(t, <-done)

	assert.Equal(t, improvement.StateImproved, f.orch.State(session))
	assert.Len(t, session.Original(), 4, "edits made while requesting are kept")
	f.generator.AssertNumberOfCalls(t, "Complete", 1)
}

func TestOrchestrator_Request_PublishFailureIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.bus.ExpectedCalls = nil
	f.bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	f.roster.On("List", mock.Anything).Return(roster, nil)
	f.generator.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(threeBlocks, nil)

	session := newSession()
	require.NoError(t, f.orch.Request(context.Background(), session, ""))
	assert.True(t, session.IsImproved())
}

func TestOrchestrator_Save(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	session := newSession()

	f.roster.On("List", mock.Anything).Return(roster, nil)
	f.generator.On("Complete", mock.Anything, mock.Anything, mock.Anything).Return(threeBlocks, nil)
	require.NoError(t, f.orch.Request(ctx, session, ""))

	var saved []*models.WorkflowVersion

	f.store.On("SaveVersions", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { saved = args.Get(1).([]*models.WorkflowVersion) }).
		Return(nil).Once()

	original, improved, err := f.orch.Save(ctx, session)
	require.NoError(t, err)
	require.NotNil(t, improved)

	require.Len(t, saved, 2)
	assert.False(t, original.IsDraft())
	assert.False(t, original.IsImproved)
	assert.Len(t, original.Steps, 3)
	assert.True(t, improved.IsImproved)
	assert.Equal(t, original.ID, improved.OriginalID)
	assert.Equal(t, "請求書処理", improved.Name)

	snapshot := session.Snapshot()
	assert.Equal(t, original.ID, snapshot.OriginalVersionID)
	assert.Equal(t, improved.ID, snapshot.ImprovedVersionID)
	assert.Equal(t, workflow.LineageImproved, snapshot.Kind)

	f.store.AssertNumberOfCalls(t, "SaveVersions", 1)
	assert.Contains(t, f.publishedTypes(), events.VersionsSavedEvent)
}

func TestOrchestrator_Save_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing to save", func(t *testing.T) {
		f := newFixture(t)

		_, _, err := f.orch.Save(ctx, workflow.NewDraftSession("", "", nil))
		assert.ErrorIs(t, err, improvement.ErrNothingToSave)
		f.store.AssertNotCalled(t, "SaveVersions", mock.Anything, mock.Anything)
	})

	t.Run("store failure keeps draft", func(t *testing.T) {
		f := newFixture(t)
		session := newSession()

		f.store.On("SaveVersions", mock.Anything, mock.Anything).Return(errors.New("disk full"))

		_, _, err := f.orch.Save(ctx, session)
		assert.True(t, improvement.IsTransportError(err))
		assert.Equal(t, workflow.LineageDraft, session.Kind())
		assert.Empty(t, session.Snapshot().OriginalVersionID)
	})
}

func TestOrchestrator_Open(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	versions := []*models.WorkflowVersion{
		{
			ID:        "orig-1",
			Name:      "請求書処理",
			Steps:     []models.Step{{ID: "a", Title: "受領", Assignee: "田中", TimeRequiredMinutes: 30}},
			UpdatedAt: now,
		},
		{
			ID:         "impr-1",
			Name:       "請求書処理",
			Steps:      []models.Step{{ID: "b", Title: "自動取込", Assignee: models.AutomatedAssignee, TimeRequiredMinutes: 5}},
			IsImproved: true,
			OriginalID: "orig-1",
			UpdatedAt:  now.Add(time.Hour),
		},
		{ID: "orphan", Name: "孤立", IsImproved: true, OriginalID: "gone"},
	}

	tests := []struct {
		name       string
		versionID  string
		wantKind   workflow.LineageKind
		wantTitles []string
		wantErr    error
	}{
		{name: "new draft", versionID: models.NewVersionID, wantKind: workflow.LineageDraft},
		{name: "original keeps improved reference", versionID: "orig-1", wantKind: workflow.LineageOriginal, wantTitles: []string{"受領"}},
		{name: "improved opens comparison", versionID: "impr-1", wantKind: workflow.LineageImproved, wantTitles: []string{"自動取込"}},
		{name: "missing version", versionID: "nope", wantErr: improvement.ErrVersionNotFound},
		{name: "orphan improved", versionID: "orphan", wantErr: persistence.ErrVersionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.On("LoadVersions", mock.Anything).Return(versions, nil)

			session, err := f.orch.Open(ctx, tt.versionID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, session.Kind())

			var got []string
			for _, step := range session.Current() {
				got = append(got, step.Title)
				assert.NotEqual(t, "a", step.ID, "step ids are regenerated")
			}

			assert.Equal(t, tt.wantTitles, got)
		})
	}

	t.Run("original pairs improved", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("LoadVersions", mock.Anything).Return(versions, nil)

		session, err := f.orch.Open(ctx, "orig-1")
		require.NoError(t, err)
		assert.Len(t, session.Improved(), 1)
		assert.Equal(t, "impr-1", session.Snapshot().ImprovedVersionID)
		assert.False(t, session.ShowComparison())
	})

	t.Run("load failure", func(t *testing.T) {
		f := newFixture(t)
		f.store.On("LoadVersions", mock.Anything).Return(nil, errors.New("timeout"))

		_, err := f.orch.Open(ctx, "orig-1")
		assert.True(t, improvement.IsTransportError(err))
	})
}

func TestOrchestrator_ListVersions(t *testing.T) {
	f := newFixture(t)
	now := time.Now().UTC()

	f.store.On("LoadVersions", mock.Anything).Return([]*models.WorkflowVersion{
		{ID: "old", UpdatedAt: now},
		{ID: "new", UpdatedAt: now.Add(time.Minute)},
	}, nil)

	versions, err := f.orch.ListVersions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "new", versions[0].ID)
}
