package echoapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_snakeCase(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{field: "username", want: "username"},
		{field: "created_at", want: "created_at"},
		{field: "createdAt", want: "created_at"},
		{field: "lastLogin", want: "last_login"},
		{field: "userID", want: "user_id"},
		{field: "HTTPServer", want: "http_server"},
		{field: "module2Count", want: "module2_count"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, snakeCase(tt.field))
		})
	}
}
