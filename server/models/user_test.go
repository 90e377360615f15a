package models

import (
	"testing"

	"github.com/secureher/secureher/server/auth"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func newTestUser(t *testing.T, phone, email string) *User {
	user := &User{
		FirstName:   "Sarah",
		LastName:    "Connor",
		PhoneNumber: phone,
		Email:       email,
		Password:    "secret-password",
	}
	assert.Nil(t, CreateUser(user))
	return user
}

func TestCreateUserHashesPassword(t *testing.T) {
	InitializeTestDb()
	user := newTestUser(t, "4165550001", "sarah@example.com")

	passwordHash, err := FindUserPassword(user.Email)
	assert.Nil(t, err)
	assert.NotEqual(t, "secret-password", passwordHash)
	assert.True(t, auth.CheckPasswordHash("secret-password", passwordHash))

	// And the default lookup never exposes the password column
	found, err := FindUserBy("email", user.Email)
	assert.Nil(t, err)
	assert.Empty(t, found.Password)
}

func TestToggleContactSelection(t *testing.T) {
	InitializeTestDb()
	user := newTestUser(t, "4165550001", "sarah@example.com")

	contactA := &Contact{FirstName: "Kyle", PhoneNumber: "4165550002"}
	contactB := &Contact{FirstName: "John", PhoneNumber: "4165550003"}
	assert.Nil(t, user.AddContact(contactA))
	assert.Nil(t, user.AddContact(contactB))

	_, err := user.ToggleContactSelection(contactA.ID)
	assert.Nil(t, err)
	selected, err := user.ToggleContactSelection(contactB.ID)
	assert.Nil(t, err)
	assert.Equal(t, IDList{contactA.ID, contactB.ID}, selected)

	// Deselecting A leaves only B, & the change survives a reload
	selected, err = user.ToggleContactSelection(contactA.ID)
	assert.Nil(t, err)
	assert.Equal(t, IDList{contactB.ID}, selected)

	reloaded, err := FindUserBy("id", user.ID)
	assert.Nil(t, err)
	assert.Equal(t, IDList{contactB.ID}, reloaded.SelectedContacts)
}

func TestToggleUnknownContact(t *testing.T) {
	InitializeTestDb()
	user := newTestUser(t, "4165550001", "sarah@example.com")

	_, err := user.ToggleContactSelection(404)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestEmergencyContactCannotBeRemoved(t *testing.T) {
	InitializeTestDb()
	user := newTestUser(t, "4165550001", "sarah@example.com")

	emergency := &Contact{FirstName: "Mom", PhoneNumber: "4165550009", IsEmergencyContact: true}
	assert.Nil(t, user.AddContact(emergency))

	// An emergency contact is selected from the moment it exists
	assert.True(t, user.SelectedContacts.Contains(emergency.ID))

	_, err := user.ToggleContactSelection(emergency.ID)
	assert.ErrorIs(t, err, ErrEmergencyContactImmutable)

	err = user.DeleteContact(emergency.ID)
	assert.ErrorIs(t, err, ErrEmergencyContactImmutable)
}

func TestDeleteContactDropsItFromSelection(t *testing.T) {
	InitializeTestDb()
	user := newTestUser(t, "4165550001", "sarah@example.com")

	contact := &Contact{FirstName: "Kyle", PhoneNumber: "4165550002"}
	assert.Nil(t, user.AddContact(contact))

	_, err := user.ToggleContactSelection(contact.ID)
	assert.Nil(t, err)

	assert.Nil(t, user.DeleteContact(contact.ID))
	assert.False(t, user.SelectedContacts.Contains(contact.ID))

	_, err = user.FindContact(contact.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSetEmergencyContactPhone(t *testing.T) {
	InitializeTestDb()
	user := newTestUser(t, "4165550001", "sarah@example.com")

	assert.Nil(t, user.SetEmergencyContactPhone("4165550009"))

	reloaded, err := FindUserBy("id", user.ID)
	assert.Nil(t, err)
	assert.Equal(t, "4165550009", reloaded.EmergencyContactPhone)

	// A flagged contact record is created alongside the profile field
	assert.Nil(t, user.LoadContacts())
	assert.Len(t, user.Contacts, 1)
	assert.True(t, user.Contacts[0].IsEmergencyContact)
	assert.Equal(t, "4165550009", user.Contacts[0].PhoneNumber)

	// Updating the number reuses the existing flagged record
	assert.Nil(t, user.SetEmergencyContactPhone("4165550010"))
	assert.Nil(t, user.LoadContacts())
	assert.Len(t, user.Contacts, 1)
	assert.Equal(t, "4165550010", user.Contacts[0].PhoneNumber)
}

func TestAppendAlertToHistory(t *testing.T) {
	InitializeTestDb()
	user := newTestUser(t, "4165550001", "sarah@example.com")

	for _, alertID := range []uint{11, 22} {
		assert.Nil(t, user.AppendAlertToHistory(alertID))
	}

	reloaded, err := FindUserBy("id", user.ID)
	assert.Nil(t, err)
	assert.Equal(t, IDList{11, 22}, reloaded.AlertHistory)
}

func TestAppendAlertToHistoryMergesStaleWriters(t *testing.T) {
	InitializeTestDb()
	user := newTestUser(t, "4165550001", "sarah@example.com")

	// Two handles loaded before either append, as with concurrent triggers
	stale, err := FindUserBy("id", user.ID)
	assert.Nil(t, err)

	assert.Nil(t, user.AppendAlertToHistory(11))
	assert.Nil(t, stale.AppendAlertToHistory(22))

	reloaded, err := FindUserBy("id", user.ID)
	assert.Nil(t, err)
	assert.Equal(t, IDList{11, 22}, reloaded.AlertHistory, "the second append must not clobber the first")
}

func TestUpdateIgnoresNonUpdatableFields(t *testing.T) {
	InitializeTestDb()
	user := newTestUser(t, "4165550001", "sarah@example.com")

	err := user.Update(map[string]interface{}{
		"first_name":    "Kyle",
		"alert_history": "[99]",
	})
	assert.Nil(t, err)

	reloaded, err := FindUserBy("id", user.ID)
	assert.Nil(t, err)
	assert.Equal(t, "Kyle", reloaded.FirstName)
	assert.Empty(t, reloaded.AlertHistory, "alert_history is not client-updatable")
}
