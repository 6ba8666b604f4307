package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/formdesk-api/internal/dto"
	"github.com/noah-isme/formdesk-api/internal/models"
)

func newProjectService(f *fixture) ProjectService {
	return NewProjectService(f.projects, f.permissions, f.recorder, testValidator(), time.Second, testLogger())
}

func validProjectRequest(id string) dto.ProjectCreateRequest {
	return dto.ProjectCreateRequest{
		ID:          id,
		Name:        "Water Intake",
		Description: "Daily water target",
		Path:        "/projects/" + id,
		Component:   "WaterCalculator",
	}
}

func TestProjectCreateAppliesDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createLocal(t, "root", "secret1", func(a *models.Account) { a.IsAdmin = true })
	svc := newProjectService(f)

	created, err := svc.Create(ctx, actorFor(admin), validProjectRequest("water-intake"), RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, DefaultProjectVersion, created.Version)
	require.Equal(t, DefaultProjectAuthor, created.Author)
	require.Equal(t, DefaultProjectCategory, created.Category)
	require.True(t, created.Enabled)
	require.False(t, created.IsPublic)
	require.Empty(t, created.RequiredPermissions)
	require.NotNil(t, created.Metadata)
	require.Equal(t, models.ActionProjectCreated, f.recorder.last().Action)

	_, err = svc.Create(ctx, actorFor(admin), validProjectRequest("water-intake"), RequestMeta{})
	require.Equal(t, KindConflict, KindOf(err))
}

func TestProjectCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createLocal(t, "root", "secret1", func(a *models.Account) { a.IsAdmin = true })
	svc := newProjectService(f)

	for _, id := range []string{"Water", "water_intake", "-water", "water--intake"} {
		_, err := svc.Create(ctx, actorFor(admin), validProjectRequest(id), RequestMeta{})
		require.Equal(t, KindInvalidInput, KindOf(err), id)
	}

	req := validProjectRequest("water-intake")
	req.RequiredPermissions = []string{"launch_codes"}
	_, err := svc.Create(ctx, actorFor(admin), req, RequestMeta{})
	require.Equal(t, KindInvalidInput, KindOf(err))

	req = validProjectRequest("water-intake")
	req.Name = ""
	_, err = svc.Create(ctx, actorFor(admin), req, RequestMeta{})
	require.Equal(t, KindInvalidInput, KindOf(err))
}

func TestProjectRejectsBlankFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createLocal(t, "root", "secret1", func(a *models.Account) { a.IsAdmin = true })
	f.createProject(t, "bmi-calculator", nil)
	svc := newProjectService(f)

	blanks := map[string]func(*dto.ProjectCreateRequest){
		"name":      func(r *dto.ProjectCreateRequest) { r.Name = "   " },
		"path":      func(r *dto.ProjectCreateRequest) { r.Path = "\t" },
		"component": func(r *dto.ProjectCreateRequest) { r.Component = " " },
	}
	for field, mutate := range blanks {
		req := validProjectRequest("water-intake")
		mutate(&req)
		_, err := svc.Create(ctx, actorFor(admin), req, RequestMeta{})
		require.Equal(t, KindInvalidInput, KindOf(err), field)
	}

	req := validProjectRequest("  water-intake ")
	req.Name = "  Water Intake  "
	created, err := svc.Create(ctx, actorFor(admin), req, RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, "water-intake", created.ID)
	require.Equal(t, "Water Intake", created.Name)

	updates := map[string]dto.ProjectUpdateRequest{
		"name":      {Name: strPtr("   ")},
		"path":      {Path: strPtr(" ")},
		"component": {Component: strPtr("  ")},
		"version":   {Version: strPtr(" ")},
	}
	for field, update := range updates {
		_, err := svc.Update(ctx, actorFor(admin), "bmi-calculator", update, RequestMeta{})
		require.Equal(t, KindInvalidInput, KindOf(err), field)
	}

	project, err := svc.Get(ctx, "bmi-calculator")
	require.NoError(t, err)
	require.NotEmpty(t, project.Name)
	require.NotEmpty(t, project.Path)
}

func TestProjectVisibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createProject(t, "bmi-calculator", nil)
	f.createProject(t, "retired", func(p *models.Project) { p.Enabled = false })
	svc := newProjectService(f)

	enabled, err := svc.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	require.Equal(t, "bmi-calculator", enabled[0].ID)

	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = svc.GetEnabled(ctx, "retired")
	require.Equal(t, KindNotFound, KindOf(err))

	project, err := svc.Get(ctx, "retired")
	require.NoError(t, err)
	require.False(t, project.Enabled)
}

func TestProjectUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createLocal(t, "root", "secret1", func(a *models.Account) { a.IsAdmin = true })
	f.createProject(t, "bmi-calculator", nil)
	svc := newProjectService(f)

	_, err := svc.Update(ctx, actorFor(admin), "bmi-calculator", dto.ProjectUpdateRequest{}, RequestMeta{})
	require.Equal(t, KindInvalidInput, KindOf(err))

	required := []string{"bmi_access"}
	updated, err := svc.Update(ctx, actorFor(admin), "bmi-calculator", dto.ProjectUpdateRequest{
		Name:                strPtr("BMI"),
		Enabled:             boolPtr(false),
		RequiredPermissions: &required,
	}, RequestMeta{})
	require.NoError(t, err)
	require.Equal(t, "BMI", updated.Name)
	require.False(t, updated.Enabled)
	require.Equal(t, []string{"bmi_access"}, updated.RequiredPermissions)

	entry := f.recorder.last()
	require.Equal(t, models.ActionProjectUpdated, entry.Action)
	require.Equal(t, []string{"name", "enabled", "required_permissions"}, entry.Details["updated_fields"])

	_, err = svc.Update(ctx, actorFor(admin), "missing", dto.ProjectUpdateRequest{Name: strPtr("x")}, RequestMeta{})
	require.Equal(t, KindNotFound, KindOf(err))
}

func TestProjectDeleteRemovesSubmissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createLocal(t, "root", "secret1", func(a *models.Account) { a.IsAdmin = true })
	user := f.createLocal(t, "alice", "secret1", nil)
	f.createProject(t, "bmi-calculator", nil)
	_, err := f.submissions.SaveLatest(ctx, user.ID, "bmi-calculator", map[string]interface{}{"w": 1})
	require.NoError(t, err)
	svc := newProjectService(f)

	require.NoError(t, svc.Delete(ctx, actorFor(admin), "bmi-calculator", RequestMeta{}))
	total, _, err := f.submissions.CountForPair(ctx, user.ID, "bmi-calculator")
	require.NoError(t, err)
	require.Zero(t, total)

	err = svc.Delete(ctx, actorFor(admin), "bmi-calculator", RequestMeta{})
	require.Equal(t, KindNotFound, KindOf(err))
}
