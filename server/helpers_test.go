package server

import (
	"testing"

	"github.com/go-playground/validator"
	"github.com/stretchr/testify/assert"
)

func TestIsValidPhoneNumber(t *testing.T) {
	assert.True(t, isValidPhoneNumber("4165550001"))

	for _, number := range []string{"", "416555000", "41655500011", "416-555-0001", "+14165550001"} {
		assert.False(t, isValidPhoneNumber(number), number)
	}
}

func TestRegisteredPhoneNumberValidator(t *testing.T) {
	v := validator.New()
	assert.Nil(t, registerValidators(v))

	payload := struct {
		Phone string `validate:"required,phone_number"`
	}{Phone: "4165550001"}
	assert.Nil(t, v.Struct(payload))

	payload.Phone = "not-a-number"
	assert.NotNil(t, v.Struct(payload))
}

func TestRegisteredPasswordValidator(t *testing.T) {
	v := validator.New()
	assert.Nil(t, registerValidators(v))

	payload := struct {
		Password string `validate:"required,password"`
	}{Password: "secret-password"}
	assert.Nil(t, v.Struct(payload))

	payload.Password = "has whitespace"
	assert.NotNil(t, v.Struct(payload))
}

func TestRemoveUnknownFields(t *testing.T) {
	args := map[string]interface{}{
		"first_name": "Sarah",
		"role_id":    1,
	}

	removeUnknownFields(args, map[string]bool{"first_name": true})
	assert.Equal(t, map[string]interface{}{"first_name": "Sarah"}, args)
}
