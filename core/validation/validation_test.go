package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/activity"
	"github.com/trezcool/darasa/core/batch"
	"github.com/trezcool/darasa/core/course"
	"github.com/trezcool/darasa/core/tenant"
)

func TestNew_registersDomainTags(t *testing.T) {
	validate, translator := New()

	tests := []struct {
		name      string
		obj       interface{}
		wantField string
		wantMsg   string
	}{
		{name: "subdomain", obj: tenant.NewTenant{Name: "Acme", Subdomain: "www"}, wantField: "subdomain"},
		{name: "difficulty", obj: course.NewCourse{Title: "Go", Difficulty: "expert"}, wantField: "difficulty", wantMsg: "must be one of: beginner, intermediate, advanced"},
		{name: "activity type", obj: activity.NewLog{ResourceType: activity.ResourceCourse, ResourceID: 1, ActivityType: "danced"}, wantField: "activity_type"},
		{name: "batch status", obj: batch.UpdateEnrollment{Status: "paused"}, wantField: "status"},
		{name: "required", obj: course.NewCourse{}, wantField: "title", wantMsg: "this field is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.obj)
			require.Error(t, err)
			verrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok)
			assert.Equal(t, tt.wantField, verrs[0].Field())
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, verrs[0].Translate(translator))
			}
		})
	}
}
