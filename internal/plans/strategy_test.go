package plans

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studysched/internal/criteria"
	"studysched/internal/schedules"
)

func onceSchedule(label string) *schedules.Schedule {
	return &schedules.Schedule{
		Label:        label,
		ScheduleType: schedules.ScheduleOnce,
		Activities: []schedules.Activity{{
			Label: label,
			GUID:  "act-" + label,
			Task:  &schedules.TaskReference{Identifier: "task-" + label},
		}},
	}
}

func planCtx(client criteria.ClientInfo, groups []string) *schedules.ScheduleContext {
	return schedules.NewContextBuilder("study-1").
		WithHealthCode("HC-123").
		WithClient(client).
		WithDataGroups(groups).
		WithNow(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)).
		Build()
}

func TestSimpleStrategy(t *testing.T) {
	sch := onceSchedule("everyone")
	plan := NewPlan("study-1", "simple plan", Simple(sch))

	got := plan.Strategy.ScheduleFor(plan, planCtx(criteria.UnknownClient, []string{}))
	require.Same(t, sch, got)
}

func TestABTestAssignmentIsStable(t *testing.T) {
	plan := NewPlan("study-1", "ab plan", ABTest(
		ABTestGroup{Percentage: 30, Schedule: onceSchedule("a")},
		ABTestGroup{Percentage: 70, Schedule: onceSchedule("b")},
	))

	ctx := planCtx(criteria.UnknownClient, []string{})
	first := plan.Strategy.ScheduleFor(plan, ctx)
	require.NotNil(t, first)
	for i := 0; i < 50; i++ {
		require.Same(t, first, plan.Strategy.ScheduleFor(plan, ctx))
	}
}

func TestABTestDistribution(t *testing.T) {
	plan := NewPlan("study-1", "ab plan", ABTest(
		ABTestGroup{Percentage: 30, Schedule: onceSchedule("a")},
		ABTestGroup{Percentage: 70, Schedule: onceSchedule("b")},
	))

	counts := map[string]int{}
	const n = 10000
	for i := 0; i < n; i++ {
		ctx := schedules.NewContextBuilder("study-1").
			WithHealthCode(fmt.Sprintf("participant-%05d", i)).
			WithNow(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)).
			Build()
		sch := plan.Strategy.ScheduleFor(plan, ctx)
		require.NotNil(t, sch)
		counts[sch.Label]++
	}

	require.Equal(t, n, counts["a"]+counts["b"])
	// Rough proportionality is all the hash promises.
	require.InDelta(t, 3000, counts["a"], 500)
	require.InDelta(t, 7000, counts["b"], 500)
}

func TestABTestEveryBucketResolves(t *testing.T) {
	plan := NewPlan("study-1", "ab plan", ABTest(
		ABTestGroup{Percentage: 10, Schedule: onceSchedule("a")},
		ABTestGroup{Percentage: 90, Schedule: onceSchedule("b")},
	))
	for i := 0; i < 1000; i++ {
		ctx := schedules.NewContextBuilder("study-1").
			WithHealthCode(fmt.Sprintf("hc-%d", i)).
			Build()
		require.NotNil(t, plan.Strategy.ScheduleFor(plan, ctx))
	}
}

func TestCriteriaStrategyFirstMatchWins(t *testing.T) {
	testSch := onceSchedule("testers")
	defaultSch := onceSchedule("default")
	plan := NewPlan("study-1", "criteria plan", FirstMatch(
		CriteriaGroup{
			Label:    "testers",
			Criteria: criteria.Criteria{AllOfGroups: []string{"test_user"}, NoneOfGroups: []string{}},
			Schedule: testSch,
		},
		CriteriaGroup{
			Label:    "everyone else",
			Criteria: criteria.New(),
			Schedule: defaultSch,
		},
	))

	got := plan.Strategy.ScheduleFor(plan, planCtx(criteria.UnknownClient, []string{"test_user"}))
	require.Same(t, testSch, got)

	got = plan.Strategy.ScheduleFor(plan, planCtx(criteria.UnknownClient, []string{}))
	require.Same(t, defaultSch, got)
}

func TestCriteriaStrategyNoMatchIsNil(t *testing.T) {
	plan := NewPlan("study-1", "criteria plan", FirstMatch(
		CriteriaGroup{
			Criteria: criteria.Criteria{AllOfGroups: []string{"test_user"}, NoneOfGroups: []string{}},
			Schedule: onceSchedule("testers"),
		},
	))
	require.Nil(t, plan.Strategy.ScheduleFor(plan, planCtx(criteria.UnknownClient, []string{})))
}

func TestPlanValidate(t *testing.T) {
	available := []string{"test_user"}

	t.Run("percentages must sum to 100", func(t *testing.T) {
		plan := NewPlan("study-1", "ab plan", ABTest(
			ABTestGroup{Percentage: 30, Schedule: onceSchedule("a")},
			ABTestGroup{Percentage: 30, Schedule: onceSchedule("b")},
		))
		errs := plan.Validate(available)
		require.False(t, errs.Empty())
		require.Error(t, errs.Err())
	})

	t.Run("missing schedule in group", func(t *testing.T) {
		plan := NewPlan("study-1", "ab plan", ABTest(
			ABTestGroup{Percentage: 100},
		))
		errs := plan.Validate(available)
		require.False(t, errs.Empty())
	})

	t.Run("criteria errors carry full paths", func(t *testing.T) {
		plan := NewPlan("study-1", "criteria plan", FirstMatch(
			CriteriaGroup{
				Criteria: criteria.Criteria{AllOfGroups: []string{"undeclared"}, NoneOfGroups: []string{}},
				Schedule: onceSchedule("a"),
			},
		))
		errs := plan.Validate(available)
		require.False(t, errs.Empty())
		found := false
		for _, fe := range errs.List() {
			if fe.Field == "strategy.scheduleCriteria[0].criteria.allOfGroups" {
				found = true
			}
		}
		require.True(t, found, "got: %v", errs.List())
	})

	t.Run("valid plan passes", func(t *testing.T) {
		plan := NewPlan("study-1", "simple plan", Simple(onceSchedule("a")))
		errs := plan.Validate(available)
		require.True(t, errs.Empty(), "unexpected: %v", errs.List())
		require.NoError(t, errs.Err())
	})
}

func TestStrategyJSONTagDispatch(t *testing.T) {
	plan := NewPlan("study-1", "criteria plan", FirstMatch(
		CriteriaGroup{
			Label:    "testers",
			Criteria: criteria.Criteria{AllOfGroups: []string{" test_user "}, NoneOfGroups: []string{}},
			Schedule: onceSchedule("a"),
		},
	))

	b, err := plan.Encode()
	require.NoError(t, err)
	require.Contains(t, string(b), `"type":"criteria"`)

	got, err := Decode(b)
	require.NoError(t, err)
	require.Equal(t, StrategyCriteria, got.Strategy.Type)
	require.Len(t, got.Strategy.Rules, 1)
	// Group names are trimmed on the way in.
	require.Equal(t, []string{"test_user"}, got.Strategy.Rules[0].Criteria.AllOfGroups)
}

func TestStrategyJSONUnknownType(t *testing.T) {
	var st Strategy
	err := json.Unmarshal([]byte(`{"type":"weighted"}`), &st)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown strategy type")
}

func TestStrategyMarshalRequiresType(t *testing.T) {
	_, err := json.Marshal(Strategy{})
	require.Error(t, err)
}

func TestAllSchedules(t *testing.T) {
	st := ABTest(
		ABTestGroup{Percentage: 50, Schedule: onceSchedule("a")},
		ABTestGroup{Percentage: 50, Schedule: onceSchedule("b")},
	)
	require.Len(t, st.AllSchedules(), 2)

	require.Len(t, Simple(onceSchedule("only")).AllSchedules(), 1)
	require.Empty(t, Simple(nil).AllSchedules())
}
