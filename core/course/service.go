package course

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("course")
	ErrModuleNotFound    = core.NewNotFoundError("module")
	ErrLessonNotFound    = core.NewNotFoundError("lesson")
	ErrNoAsset           = core.NewNotFoundError("lesson asset")
	ErrStorageDisabled   = errors.New("file storage is not configured")
	ErrAssetNotSupported = errors.New("only video and pdf lessons accept files")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, tenantID, id int64) (Course, error)
		QueryCourses(ctx context.Context, tenantID int64, filter *CourseFilter, opts core.ListOptions) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		// DeleteCourse deletes the course and everything attached to it.
		DeleteCourse(ctx context.Context, tenantID, id int64) error

		CreateModule(ctx context.Context, m Module) (Module, error)
		GetModule(ctx context.Context, tenantID, id int64) (Module, error)
		// QueryModules lists modules ordered by position.
		QueryModules(ctx context.Context, tenantID int64, filter *ModuleFilter) ([]Module, error)
		UpdateModule(ctx context.Context, m Module) (Module, error)
		DeleteModule(ctx context.Context, tenantID, id int64) error

		CreateLesson(ctx context.Context, l Lesson) (Lesson, error)
		GetLesson(ctx context.Context, tenantID, id int64) (Lesson, error)
		// QueryLessons lists lessons ordered by module position then lesson position.
		QueryLessons(ctx context.Context, tenantID int64, filter *LessonFilter) ([]Lesson, error)
		UpdateLesson(ctx context.Context, l Lesson) (Lesson, error)
		DeleteLesson(ctx context.Context, tenantID, id int64) error

		// CountContent returns the number of modules & lessons of a course.
		CountContent(ctx context.Context, tenantID, courseID int64) (modules int, lessons int, err error)
	}

	Service interface {
		CreateCourse(ctx context.Context, tenantID, creatorID int64, nc NewCourse) (Course, error)
		GetCourse(ctx context.Context, tenantID, id int64) (Course, error)
		QueryCourses(ctx context.Context, tenantID int64, filter *CourseFilter, opts core.ListOptions) ([]Course, error)
		UpdateCourse(ctx context.Context, c Course, uc UpdateCourse) (Course, error)
		DeleteCourse(ctx context.Context, c Course) error

		CreateModule(ctx context.Context, tenantID int64, nm NewModule) (Module, error)
		GetModule(ctx context.Context, tenantID, id int64) (Module, error)
		QueryModules(ctx context.Context, tenantID int64, filter *ModuleFilter) ([]Module, error)
		UpdateModule(ctx context.Context, m Module, um UpdateModule) (Module, error)
		DeleteModule(ctx context.Context, m Module) error

		CreateLesson(ctx context.Context, tenantID int64, nl NewLesson) (Lesson, error)
		GetLesson(ctx context.Context, tenantID, id int64) (Lesson, error)
		QueryLessons(ctx context.Context, tenantID int64, filter *LessonFilter) ([]Lesson, error)
		UpdateLesson(ctx context.Context, l Lesson, ul UpdateLesson) (Lesson, error)
		DeleteLesson(ctx context.Context, l Lesson) error

		// UploadLessonAsset stores the video or pdf of a lesson, replacing any previous one.
		UploadLessonAsset(ctx context.Context, l Lesson, filename string, r io.Reader, size int64, contentType string) (Lesson, error)
		// LessonAssetURL returns a temporary download URL of the lesson's file.
		LessonAssetURL(ctx context.Context, l Lesson) (string, error)
	}

	service struct {
		repo          Repository
		storage       core.FileStorage // optional
		logger        core.Logger
		presignExpiry time.Duration
	}
)

var _ Service = (*service)(nil)

// NewService returns the course Service. storage may be nil when no object storage is configured.
func NewService(repo Repository, storage core.FileStorage, logger core.Logger, presignExpiry time.Duration) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	if presignExpiry <= 0 {
		presignExpiry = time.Hour
	}
	return &service{repo: repo, storage: storage, logger: logger, presignExpiry: presignExpiry}
}

// refreshCounts keeps the course's module & lesson counters in sync with its content.
func (svc *service) refreshCounts(ctx context.Context, tenantID, courseID int64) error {
	c, err := svc.repo.GetCourse(ctx, tenantID, courseID)
	if err != nil {
		return errors.Wrap(err, "fetching course")
	}
	modules, lessons, err := svc.repo.CountContent(ctx, tenantID, courseID)
	if err != nil {
		return errors.Wrap(err, "counting course content")
	}
	if c.ModuleCount == modules && c.LessonCount == lessons {
		return nil
	}
	c.ModuleCount = modules
	c.LessonCount = lessons
	c.UpdatedAt = nowFunc().UTC()
	_, err = svc.repo.UpdateCourse(ctx, c)
	return errors.Wrap(err, "updating course counts")
}

func (svc *service) CreateCourse(ctx context.Context, tenantID, creatorID int64, nc NewCourse) (Course, error) {
	now := nowFunc().UTC()
	return svc.repo.CreateCourse(ctx, Course{
		TenantID:           tenantID,
		CreatedBy:          creatorID,
		Title:              nc.Title,
		Description:        nc.Description,
		Category:           nc.Category,
		Difficulty:         nc.Difficulty,
		DurationMinutes:    nc.DurationMinutes,
		EnrollmentRequired: nc.EnrollmentRequired,
		CreatedAt:          now,
		UpdatedAt:          now,
	})
}

func (svc *service) GetCourse(ctx context.Context, tenantID, id int64) (Course, error) {
	return svc.repo.GetCourse(ctx, tenantID, id)
}

func (svc *service) QueryCourses(ctx context.Context, tenantID int64, filter *CourseFilter, opts core.ListOptions) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, tenantID, filter, opts)
}

func (svc *service) UpdateCourse(ctx context.Context, c Course, uc UpdateCourse) (Course, error) {
	c.Title = uc.Title
	c.Difficulty = uc.Difficulty
	if uc.Description != nil {
		c.Description = core.CleanString(*uc.Description)
	}
	if uc.Category != nil {
		c.Category = core.CleanString(*uc.Category)
	}
	if uc.DurationMinutes != nil {
		c.DurationMinutes = *uc.DurationMinutes
	}
	if uc.EnrollmentRequired != nil {
		c.EnrollmentRequired = *uc.EnrollmentRequired
	}
	c.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateCourse(ctx, c)
}

func (svc *service) DeleteCourse(ctx context.Context, c Course) error {
	lessons, err := svc.repo.QueryLessons(ctx, c.TenantID, &LessonFilter{CourseID: c.ID})
	if err != nil {
		return errors.Wrap(err, "listing course lessons")
	}
	if err = svc.repo.DeleteCourse(ctx, c.TenantID, c.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	for _, l := range lessons {
		svc.deleteAsset(ctx, l.AssetKey)
	}
	return nil
}

func (svc *service) CreateModule(ctx context.Context, tenantID int64, nm NewModule) (Module, error) {
	if _, err := svc.repo.GetCourse(ctx, tenantID, nm.CourseID); err != nil {
		if core.IsNotFound(err) {
			return Module{}, core.NewValidationError(err, core.FieldError{Field: "course_id", Error: "course not found"})
		}
		return Module{}, err
	}

	var pos int
	if nm.Position != nil {
		pos = *nm.Position
	} else {
		siblings, err := svc.repo.QueryModules(ctx, tenantID, &ModuleFilter{CourseID: nm.CourseID})
		if err != nil {
			return Module{}, errors.Wrap(err, "listing course modules")
		}
		pos = len(siblings) + 1
	}

	now := nowFunc().UTC()
	m, err := svc.repo.CreateModule(ctx, Module{
		TenantID:    tenantID,
		CourseID:    nm.CourseID,
		Title:       nm.Title,
		Description: nm.Description,
		Position:    pos,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Module{}, errors.Wrap(err, "creating module")
	}
	return m, svc.refreshCounts(ctx, tenantID, m.CourseID)
}

func (svc *service) GetModule(ctx context.Context, tenantID, id int64) (Module, error) {
	return svc.repo.GetModule(ctx, tenantID, id)
}

func (svc *service) QueryModules(ctx context.Context, tenantID int64, filter *ModuleFilter) ([]Module, error) {
	return svc.repo.QueryModules(ctx, tenantID, filter)
}

func (svc *service) UpdateModule(ctx context.Context, m Module, um UpdateModule) (Module, error) {
	m.Title = um.Title
	if um.Description != nil {
		m.Description = core.CleanString(*um.Description)
	}
	if um.Position != nil {
		m.Position = *um.Position
	}
	m.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateModule(ctx, m)
}

func (svc *service) DeleteModule(ctx context.Context, m Module) error {
	lessons, err := svc.repo.QueryLessons(ctx, m.TenantID, &LessonFilter{ModuleID: m.ID})
	if err != nil {
		return errors.Wrap(err, "listing module lessons")
	}
	if err = svc.repo.DeleteModule(ctx, m.TenantID, m.ID); err != nil {
		return errors.Wrap(err, "deleting module")
	}
	for _, l := range lessons {
		svc.deleteAsset(ctx, l.AssetKey)
	}
	return svc.refreshCounts(ctx, m.TenantID, m.CourseID)
}

func (svc *service) CreateLesson(ctx context.Context, tenantID int64, nl NewLesson) (Lesson, error) {
	m, err := svc.repo.GetModule(ctx, tenantID, nl.ModuleID)
	if err != nil {
		if core.IsNotFound(err) {
			return Lesson{}, core.NewValidationError(err, core.FieldError{Field: "module_id", Error: "module not found"})
		}
		return Lesson{}, err
	}

	var pos int
	if nl.Position != nil {
		pos = *nl.Position
	} else {
		siblings, err := svc.repo.QueryLessons(ctx, tenantID, &LessonFilter{ModuleID: m.ID})
		if err != nil {
			return Lesson{}, errors.Wrap(err, "listing module lessons")
		}
		pos = len(siblings) + 1
	}

	now := nowFunc().UTC()
	l, err := svc.repo.CreateLesson(ctx, Lesson{
		TenantID:        tenantID,
		CourseID:        m.CourseID,
		ModuleID:        m.ID,
		Title:           nl.Title,
		ContentType:     nl.ContentType,
		Body:            nl.Body,
		Quiz:            nl.Payload,
		Position:        pos,
		DurationMinutes: nl.DurationMinutes,
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return Lesson{}, errors.Wrap(err, "creating lesson")
	}
	return l, svc.refreshCounts(ctx, tenantID, l.CourseID)
}

func (svc *service) GetLesson(ctx context.Context, tenantID, id int64) (Lesson, error) {
	return svc.repo.GetLesson(ctx, tenantID, id)
}

func (svc *service) QueryLessons(ctx context.Context, tenantID int64, filter *LessonFilter) ([]Lesson, error) {
	return svc.repo.QueryLessons(ctx, tenantID, filter)
}

func (svc *service) UpdateLesson(ctx context.Context, l Lesson, ul UpdateLesson) (Lesson, error) {
	l.Title = ul.Title
	if ul.Body != nil {
		l.Body = core.CleanString(*ul.Body)
	}
	if ul.Payload != nil {
		l.Quiz = ul.Payload
	}
	if ul.Position != nil {
		l.Position = *ul.Position
	}
	if ul.DurationMinutes != nil {
		l.DurationMinutes = *ul.DurationMinutes
	}
	l.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateLesson(ctx, l)
}

func (svc *service) DeleteLesson(ctx context.Context, l Lesson) error {
	if err := svc.repo.DeleteLesson(ctx, l.TenantID, l.ID); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	svc.deleteAsset(ctx, l.AssetKey)
	return svc.refreshCounts(ctx, l.TenantID, l.CourseID)
}

func (svc *service) UploadLessonAsset(ctx context.Context, l Lesson, filename string, r io.Reader, size int64, contentType string) (Lesson, error) {
	if svc.storage == nil {
		return Lesson{}, ErrStorageDisabled
	}
	if !l.ContentType.HasAsset() {
		return Lesson{}, core.NewValidationError(ErrAssetNotSupported, core.FieldError{Field: "file", Error: ErrAssetNotSupported.Error()})
	}
	if !assetTypeMatches(l.ContentType, contentType) {
		return Lesson{}, core.NewValidationError(nil, core.FieldError{
			Field: "file", Error: fmt.Sprintf("a %s lesson does not accept %q files", l.ContentType, contentType),
		})
	}

	key := fmt.Sprintf("tenants/%d/lessons/%d/%s%s", l.TenantID, l.ID, uuid.New().String(), strings.ToLower(path.Ext(filename)))
	if err := svc.storage.Put(ctx, key, r, size, contentType); err != nil {
		return Lesson{}, errors.Wrap(err, "storing lesson asset")
	}

	oldKey := l.AssetKey
	l.AssetKey = key
	l.UpdatedAt = nowFunc().UTC()
	l, err := svc.repo.UpdateLesson(ctx, l)
	if err != nil {
		svc.deleteAsset(ctx, key)
		return Lesson{}, errors.Wrap(err, "saving lesson asset key")
	}
	svc.deleteAsset(ctx, oldKey)
	return l, nil
}

func (svc *service) LessonAssetURL(ctx context.Context, l Lesson) (string, error) {
	if svc.storage == nil {
		return "", ErrStorageDisabled
	}
	if l.AssetKey == "" {
		return "", ErrNoAsset
	}
	return svc.storage.PresignedURL(ctx, l.AssetKey, svc.presignExpiry)
}

// deleteAsset removes a stored file; failures are only logged.
func (svc *service) deleteAsset(ctx context.Context, key string) {
	if key == "" || svc.storage == nil {
		return
	}
	if err := svc.storage.Delete(ctx, key); err != nil {
		svc.logger.Warn("deleting lesson asset", err, map[string]interface{}{"key": key})
	}
}

func assetTypeMatches(ct ContentType, mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0]))
	switch ct {
	case ContentVideo:
		return strings.HasPrefix(mime, "video/")
	case ContentPDF:
		return mime == "application/pdf"
	default:
		return false
	}
}
