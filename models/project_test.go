package models

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestParseTechnologies(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: []string{}},
		{name: "array of strings", raw: `["Go","React"]`, want: []string{"Go", "React"}},
		{name: "preserves order and duplicates", raw: `["b","a","b"]`, want: []string{"b", "a", "b"}},
		{name: "not json", raw: `Go, React`, want: []string{}},
		{name: "object", raw: `{"a":1}`, want: []string{}},
		{name: "bare string", raw: `"Go"`, want: []string{}},
		{name: "scalars keep json text", raw: `["Go",3,true]`, want: []string{"Go", "3", "true"}},
		{name: "nested values dropped", raw: `["Go",null,["x"],{"y":1}]`, want: []string{"Go"}},
		{name: "null elements dropped", raw: `[null,"Go",null]`, want: []string{"Go"}},
		{name: "empty string kept", raw: `["", "Go"]`, want: []string{"", "Go"}},
		{name: "null", raw: `null`, want: []string{}},
		{name: "empty array", raw: `[]`, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTechnologies(tt.raw)
			assert.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProjectPatchApply(t *testing.T) {
	project := &Project{
		Title:        "old",
		Description:  "old desc",
		GithubLink:   "https://github.com/x",
		VideoLink:    "https://video/x",
		Technologies: datatypes.NewJSONSlice([]string{"Go"}),
		Image:        "/uploads/a.png",
	}

	blank := ""
	title := "new"
	techs := []string{"Rust"}
	patch := ProjectPatch{Title: &title, GithubLink: &blank, Technologies: &techs}
	assert.False(t, patch.IsEmpty())

	patch.Apply(project)

	assert.Equal(t, "new", project.Title)
	assert.Equal(t, "old desc", project.Description)
	assert.Equal(t, "", project.GithubLink)
	assert.Equal(t, "https://video/x", project.VideoLink)
	assert.Equal(t, []string{"Rust"}, []string(project.Technologies))
	assert.Equal(t, "/uploads/a.png", project.Image)

	techs[0] = "mutated"
	assert.Equal(t, "Rust", project.Technologies[0])

	assert.True(t, ProjectPatch{}.IsEmpty())
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "models.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestProjectHooks(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.AutoMigrate(All()...))

	project := &Project{Title: "t", Description: "d"}
	require.NoError(t, db.Create(project).Error)
	assert.NotEqual(t, uuid.Nil, project.ID)

	var loaded Project
	require.NoError(t, db.First(&loaded, "id = ?", project.ID).Error)
	assert.Equal(t, []string{}, []string(loaded.Technologies))
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestGenerateColumnMismatchReport(t *testing.T) {
	db := openTestDB(t)

	var out bytes.Buffer
	report, err := GenerateColumnMismatchReport(db, &out)
	require.NoError(t, err)
	assert.Empty(t, report)
	assert.Contains(t, out.String(), "Table does not exist yet")

	require.NoError(t, db.AutoMigrate(All()...))
	require.NoError(t, db.Exec("ALTER TABLE projects ADD COLUMN legacy_slug text").Error)

	out.Reset()
	report, err = GenerateColumnMismatchReport(db, &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy_slug"}, report["projects"])
	assert.Contains(t, out.String(), "Total mismatched columns across all tables: 1")
}
