package services

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rpupo63/portfolio-backend/errs"
	"github.com/rpupo63/portfolio-backend/models"
	"github.com/rpupo63/portfolio-backend/storage"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

const requiredFieldsMessage = "Title and description are required"

var validate = validator.New(validator.WithRequiredStructEnabled())

// ProjectRepository is the persistence the lifecycle needs. database.ProjectRepo implements it.
type ProjectRepository interface {
	FindAll(ctx context.Context) ([]*models.Project, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Project, error)
	Add(ctx context.Context, project *models.Project) error
	Update(ctx context.Context, id uuid.UUID, patch models.ProjectPatch) (*models.Project, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// AssetStore is implemented by storage.AssetStore.
type AssetStore interface {
	Accept(ctx context.Context, u storage.Upload) (string, error)
	Remove(ref string) storage.Removal
}

// ProjectFields carries the text fields of a create or update request.
// A nil field was not sent at all; Technologies is the raw JSON-encoded list.
type ProjectFields struct {
	Title        *string
	Description  *string
	GithubLink   *string
	VideoLink    *string
	Technologies *string
}

type createInput struct {
	Title       string `validate:"required"`
	Description string `validate:"required"`
}

// ProjectService keeps each project record and the image file it owns consistent.
type ProjectService struct {
	repo   ProjectRepository
	assets AssetStore
	logger zerolog.Logger
}

func NewProjectService(repo ProjectRepository, assets AssetStore) *ProjectService {
	return &ProjectService{
		repo:   repo,
		assets: assets,
		logger: log.With().Str("service", "projectService").Logger(),
	}
}

func (s *ProjectService) ListProjects(ctx context.Context) ([]*models.Project, error) {
	return s.repo.FindAll(ctx)
}

func (s *ProjectService) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return s.repo.FindByID(ctx, id)
}

// CreateProject validates fields, stores the upload if present and persists the record.
// When the record cannot be persisted the stored upload is removed again.
func (s *ProjectService) CreateProject(ctx context.Context, fields ProjectFields, upload *storage.Upload) (*models.Project, error) {
	in := createInput{Title: deref(fields.Title), Description: deref(fields.Description)}
	if err := validate.StructCtx(ctx, in); err != nil {
		return nil, toValidationError(err)
	}

	project := &models.Project{
		Title:        in.Title,
		Description:  in.Description,
		GithubLink:   deref(fields.GithubLink),
		VideoLink:    deref(fields.VideoLink),
		Technologies: datatypes.NewJSONSlice(models.ParseTechnologies(deref(fields.Technologies))),
	}

	if upload != nil {
		ref, err := s.assets.Accept(ctx, *upload)
		if err != nil {
			return nil, err
		}
		project.Image = ref
	}

	if err := s.repo.Add(ctx, project); err != nil {
		if project.Image != "" {
			s.removeAsset(project.Image, "rollback")
		}
		return nil, err
	}

	s.logger.Info().Str("projectID", project.ID.String()).Msg("project created")
	return project, nil
}

// UpdateProject merges fields into the stored project. A new upload replaces the old image,
// which is removed only after the record points at the new one.
func (s *ProjectService) UpdateProject(ctx context.Context, id uuid.UUID, fields ProjectFields, upload *storage.Upload) (*models.Project, error) {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	patch := models.ProjectPatch{
		GithubLink: fields.GithubLink,
		VideoLink:  fields.VideoLink,
	}
	if deref(fields.Title) != "" {
		patch.Title = fields.Title
	}
	if deref(fields.Description) != "" {
		patch.Description = fields.Description
	}
	if fields.Technologies != nil {
		technologies := models.ParseTechnologies(*fields.Technologies)
		patch.Technologies = &technologies
	}

	var newRef string
	if upload != nil {
		newRef, err = s.assets.Accept(ctx, *upload)
		if err != nil {
			return nil, err
		}
		patch.Image = &newRef
	}
	if patch.IsEmpty() {
		return existing, nil
	}

	updated, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		if newRef != "" {
			s.removeAsset(newRef, "rollback")
		}
		return nil, err
	}

	if newRef != "" && existing.Image != "" && existing.Image != newRef {
		s.removeAsset(existing.Image, "replaced")
	}
	return updated, nil
}

// DeleteProject removes the project's image, then the project itself.
func (s *ProjectService) DeleteProject(ctx context.Context, id uuid.UUID) error {
	project, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	s.removeAsset(project.Image, "delete")

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("projectID", id.String()).Msg("project deleted")
	return nil
}

func (s *ProjectService) removeAsset(ref, reason string) storage.Removal {
	removal := s.assets.Remove(ref)
	switch removal.Outcome {
	case storage.RemovalFailed:
		s.logger.Error().Err(removal.Err).Str("image", ref).Str("reason", reason).Msg("failed to remove image, continuing")
	case storage.RemovalAbsent:
		s.logger.Warn().Str("image", ref).Str("reason", reason).Msg("image already gone")
	case storage.RemovalRemoved:
		s.logger.Debug().Str("image", ref).Str("reason", reason).Msg("image removed")
	}
	return removal
}

func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		field := "title"
		if fieldErrs[0].Field() == "Description" {
			field = "description"
		}
		return errs.NewValidationError(field, requiredFieldsMessage)
	}
	return errs.NewValidationError("", requiredFieldsMessage)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
