package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type taskPayload struct {
	Title    string `json:"title" validate:"required,max=100"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Assignee string `json:"assigned_to" validate:"required"`
}

func TestValidateStructSuccess(t *testing.T) {
	payload := taskPayload{Title: "Ship release", Priority: "high", Assignee: "user-1"}
	require.NoError(t, ValidateStruct(payload))
}

func TestValidateStructFailuresUseJSONNames(t *testing.T) {
	err := ValidateStruct(taskPayload{Priority: "urgent"})
	require.Error(t, err)

	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok, "expected ValidationErrors, got %T", err)
	require.Len(t, vErrs, 3)

	fields := map[string]string{}
	for _, v := range vErrs {
		fields[v.Field] = v.Tag
	}
	require.Equal(t, "required", fields["title"])
	require.Equal(t, "oneof", fields["priority"])
	require.Equal(t, "required", fields["assigned_to"])
}

func TestValidateVarNamesField(t *testing.T) {
	require.NoError(t, ValidateVar("read", "true", "oneof=true false"))

	err := ValidateVar("read", "maybe", "oneof=true false")
	require.Error(t, err)
	vErrs, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Equal(t, "read", vErrs[0].Field)
	require.Equal(t, "true false", vErrs[0].Param)
}

func TestRegisterValidation(t *testing.T) {
	require.NoError(t, RegisterValidation("not_blank_test", func(fl validator.FieldLevel) bool {
		return fl.Field().String() != " "
	}))

	type payload struct {
		Name string `json:"name" validate:"not_blank_test"`
	}
	require.Error(t, ValidateStruct(payload{Name: " "}))
	require.NoError(t, ValidateStruct(payload{Name: "ok"}))
}
