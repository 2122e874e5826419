package users

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kestrelcloud/identity-core/internal/testutil"
	iderr "github.com/kestrelcloud/identity-core/pkg/errors"
)

func TestCreateInputValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    CreateInput
		wantCode iderr.Code
	}{
		{
			name:  "valid",
			input: CreateInput{Name: "Alice", Email: "alice@example.com"},
		},
		{
			name:  "valid without name",
			input: CreateInput{Email: "alice@example.com"},
		},
		{
			name:  "valid explicit role",
			input: CreateInput{Name: "Alice", Email: "alice@example.com", Role: RoleAdmin},
		},
		{
			name:     "missing email",
			input:    CreateInput{Name: "Alice"},
			wantCode: iderr.CodeValidationRequired,
		},
		{
			name:     "malformed email",
			input:    CreateInput{Name: "Alice", Email: "not an email"},
			wantCode: iderr.CodeValidationFormat,
		},
		{
			name:     "name too short",
			input:    CreateInput{Name: "A", Email: "alice@example.com"},
			wantCode: iderr.CodeValidation,
		},
		{
			name:     "name too long",
			input:    CreateInput{Name: strings.Repeat("a", NameMaxLength+1), Email: "alice@example.com"},
			wantCode: iderr.CodeValidation,
		},
		{
			name:     "unknown role",
			input:    CreateInput{Name: "Alice", Email: "alice@example.com", Role: Role("owner")},
			wantCode: iderr.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.input.Validate()
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			testutil.RequireErrorCode(t, err, tt.wantCode)
		})
	}
}

func TestEditInputValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, (&EditInput{}).Validate())
	assert.True(t, (&EditInput{}).Empty())

	valid := EditInput{Name: strPtr("Alice"), Role: rolePtr(RoleAdmin)}
	assert.NoError(t, valid.Validate())
	assert.False(t, valid.Empty())

	short := EditInput{Name: strPtr("A")}
	testutil.RequireErrorCode(t, short.Validate(), iderr.CodeValidation)

	badRole := EditInput{Role: rolePtr(Role("owner"))}
	testutil.RequireErrorCode(t, badRole.Validate(), iderr.CodeValidation)
}

func TestRoleValid(t *testing.T) {
	t.Parallel()

	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleUser.Valid())
	assert.False(t, Role("owner").Valid())
	assert.False(t, Role("").Valid())
}
