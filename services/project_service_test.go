package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rpupo63/portfolio-backend/errs"
	"github.com/rpupo63/portfolio-backend/models"
	"github.com/rpupo63/portfolio-backend/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01")

// memoryRepo is an in-memory ProjectRepository. beforeFind, when set, runs inside FindByID.
type memoryRepo struct {
	mu         sync.Mutex
	projects   map[uuid.UUID]models.Project
	beforeFind func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{projects: map[uuid.UUID]models.Project{}}
}

func (r *memoryRepo) FindAll(ctx context.Context) ([]*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Project{}
	for _, p := range r.projects {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memoryRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	r.mu.Lock()
	p, ok := r.projects[id]
	hook := r.beforeFind
	r.mu.Unlock()
	if hook != nil {
		hook()
	}
	if !ok {
		return nil, errs.NewProjectNotFound()
	}
	return &p, nil
}

func (r *memoryRepo) Add(ctx context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if project.ID == uuid.Nil {
		project.ID = uuid.New()
	}
	r.projects[project.ID] = *project
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, id uuid.UUID, patch models.ProjectPatch) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, errs.NewProjectNotFound()
	}
	patch.Apply(&p)
	r.projects[id] = p
	return &p, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return errs.NewProjectNotFound()
	}
	delete(r.projects, id)
	return nil
}

// MockProjectRepo is a mock implementation of ProjectRepository
type MockProjectRepo struct {
	mock.Mock
}

func (m *MockProjectRepo) FindAll(ctx context.Context) ([]*models.Project, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Project), args.Error(1)
}

func (m *MockProjectRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectRepo) Add(ctx context.Context, project *models.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockProjectRepo) Update(ctx context.Context, id uuid.UUID, patch models.ProjectPatch) (*models.Project, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Project), args.Error(1)
}

func (m *MockProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newAssetStore(t *testing.T) *storage.AssetStore {
	t.Helper()
	root, err := storage.ResolveRoot(storage.ModePersistent, t.TempDir())
	require.NoError(t, err)
	return storage.NewAssetStore(root)
}

func upload(name string) *storage.Upload {
	return &storage.Upload{Body: bytes.NewReader(pngBytes), Filename: name, MIMEType: "image/png", Size: int64(len(pngBytes))}
}

func storedFiles(t *testing.T, assets *storage.AssetStore) []string {
	t.Helper()
	entries, err := os.ReadDir(assets.Root().Dir)
	require.NoError(t, err)
	names := []string{}
	for _, e := range entries {
		names = append(names, models.UploadsPrefix+e.Name())
	}
	return names
}

func ptr(s string) *string { return &s }

func TestProjectService_CreateProject(t *testing.T) {
	ctx := context.Background()
	assets := newAssetStore(t)
	svc := NewProjectService(newMemoryRepo(), assets)

	project, err := svc.CreateProject(ctx, ProjectFields{
		Title:        ptr("Site"),
		Description:  ptr("Portfolio"),
		Technologies: ptr(`["Go","React"]`),
	}, upload("shot.png"))

	require.NoError(t, err)
	assert.Equal(t, "Site", project.Title)
	assert.Equal(t, "", project.GithubLink)
	assert.Equal(t, []string{"Go", "React"}, []string(project.Technologies))
	assert.Equal(t, []string{project.Image}, storedFiles(t, assets))
}

func TestProjectService_CreateProjectMalformedTechnologies(t *testing.T) {
	svc := NewProjectService(newMemoryRepo(), newAssetStore(t))

	project, err := svc.CreateProject(context.Background(), ProjectFields{
		Title: ptr("t"), Description: ptr("d"), Technologies: ptr("Go, React"),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{}, []string(project.Technologies))
	assert.Equal(t, "", project.Image)
}

func TestProjectService_CreateProjectValidation(t *testing.T) {
	tests := []struct {
		name   string
		fields ProjectFields
		field  string
	}{
		{name: "missing title", fields: ProjectFields{Description: ptr("d")}, field: "title"},
		{name: "empty title", fields: ProjectFields{Title: ptr(""), Description: ptr("d")}, field: "title"},
		{name: "missing description", fields: ProjectFields{Title: ptr("t")}, field: "description"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assets := newAssetStore(t)
			repo := new(MockProjectRepo)
			svc := NewProjectService(repo, assets)

			_, err := svc.CreateProject(context.Background(), tt.fields, upload("shot.png"))

			require.Error(t, err)
			assert.True(t, errs.IsValidationError(err))
			assert.Equal(t, "Title and description are required", err.Error())
			var apiErr *errs.ApiErr
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.field, apiErr.Field)
			assert.Empty(t, storedFiles(t, assets), "a rejected request must not leave a file behind")
			repo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
		})
	}
}

func TestProjectService_CreateProjectRejectedUpload(t *testing.T) {
	assets := newAssetStore(t)
	repo := new(MockProjectRepo)
	svc := NewProjectService(repo, assets)

	bad := upload("notes.txt")
	bad.MIMEType = "text/plain"
	_, err := svc.CreateProject(context.Background(), ProjectFields{Title: ptr("t"), Description: ptr("d")}, bad)

	assert.True(t, errs.IsUnsupportedAssetType(err))
	assert.Empty(t, storedFiles(t, assets))
	repo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything)
}

func TestProjectService_CreateProjectPersistFailureRemovesAsset(t *testing.T) {
	assets := newAssetStore(t)
	repo := new(MockProjectRepo)
	repo.On("Add", mock.Anything, mock.AnythingOfType("*models.Project")).
		Return(errs.NewDatabaseError("create", "project", errors.New("disk full")))
	svc := NewProjectService(repo, assets)

	_, err := svc.CreateProject(context.Background(), ProjectFields{Title: ptr("t"), Description: ptr("d")}, upload("shot.png"))

	require.Error(t, err)
	assert.True(t, errs.IsDatabaseQueryError(err))
	assert.Empty(t, storedFiles(t, assets))
	repo.AssertExpectations(t)
}

func seed(t *testing.T, svc *ProjectService, withImage bool) *models.Project {
	t.Helper()
	var u *storage.Upload
	if withImage {
		u = upload("seed.png")
	}
	project, err := svc.CreateProject(context.Background(), ProjectFields{
		Title:        ptr("title"),
		Description:  ptr("description"),
		GithubLink:   ptr("https://github.com/x"),
		VideoLink:    ptr("https://youtu.be/x"),
		Technologies: ptr(`["Go"]`),
	}, u)
	require.NoError(t, err)
	return project
}

func TestProjectService_UpdateProjectFieldRules(t *testing.T) {
	ctx := context.Background()
	svc := NewProjectService(newMemoryRepo(), newAssetStore(t))
	project := seed(t, svc, true)

	updated, err := svc.UpdateProject(ctx, project.ID, ProjectFields{
		Title:       ptr(""),
		Description: ptr("new description"),
		GithubLink:  ptr(""),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, "title", updated.Title, "empty title keeps old value")
	assert.Equal(t, "new description", updated.Description)
	assert.Equal(t, "", updated.GithubLink, "present but blank link is replaced")
	assert.Equal(t, "https://youtu.be/x", updated.VideoLink, "absent link is kept")
	assert.Equal(t, []string{"Go"}, []string(updated.Technologies), "absent technologies are kept")
	assert.Equal(t, project.Image, updated.Image, "image only changes with an upload")
}

func TestProjectService_UpdateProjectTechnologies(t *testing.T) {
	ctx := context.Background()
	svc := NewProjectService(newMemoryRepo(), newAssetStore(t))
	project := seed(t, svc, false)

	updated, err := svc.UpdateProject(ctx, project.ID, ProjectFields{Technologies: ptr(`not json`)}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{}, []string(updated.Technologies))
}

func TestProjectService_UpdateProjectReplacesImage(t *testing.T) {
	ctx := context.Background()
	assets := newAssetStore(t)
	svc := NewProjectService(newMemoryRepo(), assets)
	project := seed(t, svc, true)

	updated, err := svc.UpdateProject(ctx, project.ID, ProjectFields{}, upload("new.png"))

	require.NoError(t, err)
	assert.NotEqual(t, project.Image, updated.Image)
	assert.Equal(t, []string{updated.Image}, storedFiles(t, assets))
}

func TestProjectService_UpdateProjectNotFound(t *testing.T) {
	assets := newAssetStore(t)
	svc := NewProjectService(newMemoryRepo(), assets)

	_, err := svc.UpdateProject(context.Background(), uuid.New(), ProjectFields{}, upload("new.png"))

	assert.True(t, errs.IsProjectNotFound(err))
	assert.Empty(t, storedFiles(t, assets))
}

func TestProjectService_UpdateProjectPersistFailureKeepsOldImage(t *testing.T) {
	ctx := context.Background()
	assets := newAssetStore(t)
	oldRef, err := assets.Accept(ctx, *upload("old.png"))
	require.NoError(t, err)

	id := uuid.New()
	repo := new(MockProjectRepo)
	repo.On("FindByID", mock.Anything, id).Return(&models.Project{ID: id, Title: "t", Description: "d", Image: oldRef}, nil)
	repo.On("Update", mock.Anything, id, mock.AnythingOfType("models.ProjectPatch")).
		Return(nil, errs.NewDatabaseError("update", "project", errors.New("deadlock")))
	svc := NewProjectService(repo, assets)

	_, err = svc.UpdateProject(ctx, id, ProjectFields{}, upload("new.png"))

	require.Error(t, err)
	assert.Equal(t, []string{oldRef}, storedFiles(t, assets))
	repo.AssertExpectations(t)
}

func TestProjectService_UpdateProjectNoChangesSkipsWrite(t *testing.T) {
	id := uuid.New()
	existing := &models.Project{ID: id, Title: "t", Description: "d", Image: "/uploads/a.png"}
	repo := new(MockProjectRepo)
	repo.On("FindByID", mock.Anything, id).Return(existing, nil)
	svc := NewProjectService(repo, newAssetStore(t))

	updated, err := svc.UpdateProject(context.Background(), id, ProjectFields{Title: ptr(""), Description: ptr("")}, nil)

	require.NoError(t, err)
	assert.Equal(t, existing, updated)
	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

// failingRemover wraps an asset store whose removals always fail.
type failingRemover struct {
	*storage.AssetStore
}

func (f failingRemover) Remove(ref string) storage.Removal {
	return storage.Removal{Outcome: storage.RemovalFailed, Err: errors.New("permission denied")}
}

func TestProjectService_UpdateProjectOldImageRemovalFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	assets := newAssetStore(t)
	repo := newMemoryRepo()
	seeded := seed(t, NewProjectService(repo, assets), true)
	svc := NewProjectService(repo, failingRemover{assets})

	updated, err := svc.UpdateProject(ctx, seeded.ID, ProjectFields{}, upload("new.png"))

	require.NoError(t, err)
	assert.NotEqual(t, seeded.Image, updated.Image)
}

func TestProjectService_DeleteProject(t *testing.T) {
	ctx := context.Background()
	assets := newAssetStore(t)
	svc := NewProjectService(newMemoryRepo(), assets)
	project := seed(t, svc, true)

	require.NoError(t, svc.DeleteProject(ctx, project.ID))

	assert.Empty(t, storedFiles(t, assets))
	_, err := svc.GetProject(ctx, project.ID)
	assert.True(t, errs.IsProjectNotFound(err))
	assert.True(t, errs.IsProjectNotFound(svc.DeleteProject(ctx, project.ID)))
}

func TestProjectService_DeleteProjectMissingAssetStillDeletes(t *testing.T) {
	ctx := context.Background()
	assets := newAssetStore(t)
	svc := NewProjectService(newMemoryRepo(), assets)
	project := seed(t, svc, true)
	require.NoError(t, os.Remove(filepath.Join(assets.Root().Dir, filepath.Base(project.Image))))

	require.NoError(t, svc.DeleteProject(ctx, project.ID))

	all, err := svc.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestProjectService_DeleteProjectRemovalFailureStillDeletes(t *testing.T) {
	ctx := context.Background()
	assets := newAssetStore(t)
	repo := newMemoryRepo()
	project := seed(t, NewProjectService(repo, assets), true)
	svc := NewProjectService(repo, failingRemover{assets})

	require.NoError(t, svc.DeleteProject(ctx, project.ID))

	_, err := svc.GetProject(ctx, project.ID)
	assert.True(t, errs.IsProjectNotFound(err))
}

func TestProjectService_ListProjectsDelegates(t *testing.T) {
	repo := new(MockProjectRepo)
	want := []*models.Project{{Title: "a", Technologies: datatypes.NewJSONSlice([]string{})}}
	repo.On("FindAll", mock.Anything).Return(want, nil)
	svc := NewProjectService(repo, newAssetStore(t))

	got, err := svc.ListProjects(context.Background())

	require.NoError(t, err)
	assert.Equal(t, want, got)
	repo.AssertExpectations(t)
}

// Two updates of the same project that both carry an image load the same old record,
// so the first writer's new image is left on disk without an owner. The lifecycle does
// not lock across requests; this test pins that behavior down.
func TestProjectService_ConcurrentImageReplacementRace(t *testing.T) {
	ctx := context.Background()
	assets := newAssetStore(t)
	repo := newMemoryRepo()
	svc := NewProjectService(repo, assets)
	project := seed(t, svc, true)

	var loaded sync.WaitGroup
	loaded.Add(2)
	repo.mu.Lock()
	repo.beforeFind = func() {
		loaded.Done()
		loaded.Wait()
	}
	repo.mu.Unlock()

	results := make([]*models.Project, 2)
	var done sync.WaitGroup
	for i := range 2 {
		done.Add(1)
		go func() {
			defer done.Done()
			updated, err := svc.UpdateProject(ctx, project.ID, ProjectFields{}, upload("race.png"))
			assert.NoError(t, err)
			results[i] = updated
		}()
	}
	done.Wait()

	repo.mu.Lock()
	repo.beforeFind = nil
	repo.mu.Unlock()

	final, err := svc.GetProject(ctx, project.ID)
	require.NoError(t, err)
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])

	files := storedFiles(t, assets)
	assert.NotContains(t, files, project.Image, "the original image is removed")
	assert.Contains(t, files, final.Image)
	assert.Len(t, files, 2, "one new image is orphaned")
	assert.ElementsMatch(t, []string{results[0].Image, results[1].Image}, files)
}
