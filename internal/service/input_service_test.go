package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/noah-isme/formdesk-api/internal/models"
)

func newInputService(f *fixture) InputService {
	return NewInputService(f.accounts, f.projects, f.submissions, f.gate, f.recorder, time.Second, testLogger())
}

func TestSaveInputTwiceKeepsSecondAsLatest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.createLocal(t, "alice", "secret1", nil)
	f.createProject(t, "bmi-calculator", nil)
	svc := newInputService(f)

	empty, err := svc.LastInput(ctx, actorFor(account), "bmi-calculator")
	require.NoError(t, err)
	require.Nil(t, empty.Data)
	require.Nil(t, empty.SavedAt)

	_, err = svc.Save(ctx, actorFor(account), "bmi-calculator", map[string]interface{}{"weight": 70.0}, RequestMeta{})
	require.NoError(t, err)
	_, err = svc.Save(ctx, actorFor(account), "bmi-calculator", map[string]interface{}{"weight": 72.5}, RequestMeta{})
	require.NoError(t, err)

	last, err := svc.LastInput(ctx, actorFor(account), "bmi-calculator")
	require.NoError(t, err)
	require.Equal(t, json.Number("72.5"), last.Data["weight"])
	require.NotNil(t, last.SavedAt)

	total, latest, err := f.submissions.CountForPair(ctx, account.ID, "bmi-calculator")
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Equal(t, int64(1), latest)

	history, err := svc.History(ctx, actorFor(account), "bmi-calculator", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.True(t, history[0].IsLatest)

	entry := f.recorder.last()
	require.Equal(t, models.ActionFormInputSaved, entry.Action)
	require.Equal(t, []string{"weight"}, entry.Details["data_keys"])
}

func TestSaveInputRejectsNonObjectDocuments(t *testing.T) {
	f := newFixture(t)
	account := f.createLocal(t, "alice", "secret1", nil)
	f.createProject(t, "bmi-calculator", nil)
	svc := newInputService(f)

	for _, document := range []interface{}{nil, []interface{}{1, 2}, "text", 42.0, map[string]interface{}(nil)} {
		_, err := svc.Save(context.Background(), actorFor(account), "bmi-calculator", document, RequestMeta{})
		require.Equal(t, KindInvalidInput, KindOf(err), "document %#v", document)
	}
}

func TestSaveInputEnforcesAccessGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.createLocal(t, "alice", "secret1", nil)
	admin := f.createLocal(t, "root", "secret1", func(a *models.Account) { a.IsAdmin = true })
	f.createProject(t, "tdee-calculator", func(p *models.Project) {
		p.RequiredPermissions = datatypes.JSONSlice[string]{"tdee_access"}
	})
	f.createProject(t, "retired", func(p *models.Project) { p.Enabled = false })
	svc := newInputService(f)
	doc := map[string]interface{}{"age": 30.0}

	_, err := svc.Save(ctx, actorFor(account), "tdee-calculator", doc, RequestMeta{})
	require.Equal(t, KindForbidden, KindOf(err))

	require.NoError(t, f.permissions.SetForAccount(ctx, account.ID, []string{"tdee_access"}, nil))
	_, err = svc.Save(ctx, actorFor(account), "tdee-calculator", doc, RequestMeta{})
	require.NoError(t, err)

	_, err = svc.Save(ctx, actorFor(admin), "retired", doc, RequestMeta{})
	require.Equal(t, KindForbidden, KindOf(err))

	_, err = svc.Save(ctx, actorFor(account), "missing", doc, RequestMeta{})
	require.Equal(t, KindNotFound, KindOf(err))

	_, err = svc.LastInput(ctx, Actor{}, "tdee-calculator")
	require.Equal(t, KindAuthenticationFailure, KindOf(err))
}

func TestConcurrentSavesLeaveSingleLatest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.createLocal(t, "alice", "secret1", nil)
	f.createProject(t, "bmi-calculator", nil)
	svc := newInputService(f)

	const writers = 6
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, errs[n] = svc.Save(ctx, actorFor(account), "bmi-calculator", map[string]interface{}{"n": float64(n)}, RequestMeta{})
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	total, latest, err := f.submissions.CountForPair(ctx, account.ID, "bmi-calculator")
	require.NoError(t, err)
	require.Equal(t, int64(writers), total)
	require.Equal(t, int64(1), latest)
}

func TestLatestForAccountListsOwnDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createLocal(t, "alice", "secret1", nil)
	bob := f.createLocal(t, "bob", "secret1", nil)
	f.createProject(t, "bmi-calculator", nil)
	f.createProject(t, "tdee-calculator", nil)
	svc := newInputService(f)

	_, err := svc.Save(ctx, actorFor(alice), "bmi-calculator", map[string]interface{}{"v": 1.0}, RequestMeta{})
	require.NoError(t, err)
	_, err = svc.Save(ctx, actorFor(alice), "tdee-calculator", map[string]interface{}{"v": 2.0}, RequestMeta{})
	require.NoError(t, err)
	_, err = svc.Save(ctx, actorFor(bob), "bmi-calculator", map[string]interface{}{"v": 3.0}, RequestMeta{})
	require.NoError(t, err)

	latest, err := svc.LatestForAccount(ctx, actorFor(alice), 0)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	names := map[string]string{}
	for _, item := range latest {
		names[item.ProjectID] = item.ProjectName
	}
	require.Equal(t, map[string]string{"bmi-calculator": "bmi-calculator", "tdee-calculator": "tdee-calculator"}, names)
}

func TestLatestForAccountDefaultsToTenDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.createLocal(t, "alice", "secret1", nil)
	svc := newInputService(f)

	for i := 0; i < 12; i++ {
		projectID := fmt.Sprintf("calculator-%d", i)
		f.createProject(t, projectID, nil)
		_, err := svc.Save(ctx, actorFor(alice), projectID, map[string]interface{}{"v": i}, RequestMeta{})
		require.NoError(t, err)
	}

	latest, err := svc.LatestForAccount(ctx, actorFor(alice), 0)
	require.NoError(t, err)
	require.Len(t, latest, defaultLatestLimit)

	all, err := svc.LatestForAccount(ctx, actorFor(alice), 50)
	require.NoError(t, err)
	require.Len(t, all, 12)
}
