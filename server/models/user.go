package models

import (
	"errors"
	"fmt"

	"github.com/secureher/secureher/server/auth"
	"gorm.io/gorm"
)

var (
	// ErrEmergencyContactImmutable is returned on any attempt to deselect or
	// delete a contact flagged as the user's emergency contact.
	ErrEmergencyContactImmutable = errors.New("emergency contact cannot be removed")

	allFieldsExceptPassword = []string{"id",
		"first_name",
		"last_name",
		"phone_number",
		"email",
		"role_id",
		"emergency_contact_phone",
		"photo_url",
		"selected_contacts",
		"alert_history",
		"created_at",
		"updated_at",
	}

	updatableFields = []string{"first_name",
		"last_name",
		"phone_number",
		"password",
		"emergency_contact_phone",
		"photo_url",
	}
)

type User struct {
	BaseModel
	FirstName             string    `json:"first_name" validate:"required"`
	LastName              string    `json:"last_name" validate:"required"`
	PhoneNumber           string    `json:"phone_number" validate:"required,phone_number" gorm:"not null;unique"`
	Email                 string    `json:"email" validate:"required,email" gorm:"not null;unique"`
	Password              string    `json:"password,omitempty" validate:"required,password" gorm:"not null"`
	RoleID                uint      `json:"role_id" gorm:"null"`
	EmergencyContactPhone string    `json:"emergency_contact_phone,omitempty" validate:"omitempty,phone_number"`
	PhotoURL              string    `json:"photo_url,omitempty"`
	SelectedContacts      IDList    `json:"selected_contacts" gorm:"type:text;not null;default:'[]'"`
	AlertHistory          IDList    `json:"alert_history" gorm:"type:text;not null;default:'[]'"`
	Contacts              []Contact `json:"contacts,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Alerts                []Alert   `json:"alerts,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (user *User) Update(data map[string]interface{}) error {
	if data["password"] != nil {
		passwordHash, err := auth.HashPassword(data["password"].(string))
		if err != nil {
			return err
		}
		data["password"] = passwordHash
	}

	return db.Model(&User{}).Where("id = ?", user.ID).Select(updatableFields).Updates(data).Error
}

func (user *User) IsAdmin() (bool, error) {
	if user.RoleID == 0 {
		return false, nil
	}

	adminRole, err := FindRole(ADMIN_USER_ROLE)
	if err != nil {
		return false, err
	}

	return adminRole.ID == user.RoleID, nil
}

func (user *User) AddContact(contact *Contact) error {
	contact.UserID = user.ID
	if err := db.Create(contact).Error; err != nil {
		return err
	}

	// An emergency contact is part of the selection from the moment it exists
	if contact.IsEmergencyContact {
		return user.addToSelection(contact.ID)
	}

	return nil
}

func (user *User) LoadContacts() error {
	return db.Limit(500).Find(&user.Contacts, "user_id = ?", user.ID).Error
}

func (user *User) FindContact(contactID interface{}) (*Contact, error) {
	contact := Contact{}
	err := db.First(&contact, "id = ? AND user_id = ?", contactID, user.ID).Error
	if err != nil {
		return nil, err
	}

	return &contact, nil
}

func (user *User) UpdateContact(contactID string, data map[string]interface{}) error {
	return db.Table("contacts").Where("id = ? AND user_id = ?", contactID, user.ID).Updates(data).Error
}

// DeleteContact removes one of the user's contacts & drops it from the
// selected set. Emergency contacts cannot be deleted.
func (user *User) DeleteContact(contactID interface{}) error {
	contact, err := user.FindContact(contactID)
	if err != nil {
		return err
	}

	if contact.IsEmergencyContact {
		return ErrEmergencyContactImmutable
	}

	if err = db.Where("user_id = ?", user.ID).Delete(&Contact{}, contact.ID).Error; err != nil {
		return err
	}

	return user.removeFromSelection(contact.ID)
}

// ToggleContactSelection flips a contact in/out of the user's selected set &
// persists only the selected_contacts column, so unrelated profile fields are
// never clobbered. Returns the updated set.
func (user *User) ToggleContactSelection(contactID uint) (IDList, error) {
	contact, err := user.FindContact(contactID)
	if err != nil {
		return nil, err
	}

	if user.SelectedContacts.Contains(contact.ID) {
		if contact.IsEmergencyContact {
			return nil, ErrEmergencyContactImmutable
		}
		err = user.removeFromSelection(contact.ID)
	} else {
		err = user.addToSelection(contact.ID)
	}

	if err != nil {
		return nil, err
	}

	return user.SelectedContacts, nil
}

// SelectedContactRecords resolves the selected set to full contact records,
// preserving ids of contacts that no longer exist is the caller's concern -
// alerts denormalize ids for that reason.
func (user *User) SelectedContactRecords() ([]Contact, error) {
	contacts := []Contact{}

	if len(user.SelectedContacts) == 0 {
		return contacts, nil
	}

	err := db.Where("user_id = ? AND id IN ?", user.ID, []uint(user.SelectedContacts)).Find(&contacts).Error
	if err != nil {
		return nil, err
	}

	return contacts, nil
}

// SetEmergencyContactPhone stores the distinguished emergency number on the
// profile & upserts the matching flagged contact record, keeping the two
// representations in sync.
func (user *User) SetEmergencyContactPhone(phone string) error {
	err := db.Model(&User{}).Where("id = ?", user.ID).
		Update("emergency_contact_phone", phone).Error
	if err != nil {
		return err
	}
	user.EmergencyContactPhone = phone

	contact := Contact{}
	err = db.First(&contact, "user_id = ? AND is_emergency_contact = true", user.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return user.AddContact(&Contact{
			FirstName:          "Emergency",
			LastName:           "Contact",
			PhoneNumber:        phone,
			IsEmergencyContact: true,
		})
	}
	if err != nil {
		return err
	}

	return db.Model(&contact).Update("phone_number", phone).Error
}

// AppendAlertToHistory adds an alert id to the user's history list. The list
// is re-read inside the transaction, so a stale in-memory copy never clobbers
// ids appended by a concurrent alert.
func (user *User) AppendAlertToHistory(alertID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		current := User{}
		err := tx.Select("id", "alert_history").First(&current, "id = ?", user.ID).Error
		if err != nil {
			return err
		}

		return tx.Model(&User{}).Where("id = ?", user.ID).
			Update("alert_history", append(current.AlertHistory, alertID)).Error
	})
}

func (user *User) addToSelection(contactID uint) error {
	if user.SelectedContacts.Contains(contactID) {
		return nil
	}

	updated := append(user.SelectedContacts, contactID)
	err := db.Model(&User{}).Where("id = ?", user.ID).
		Update("selected_contacts", updated).Error
	if err != nil {
		return err
	}

	user.SelectedContacts = updated
	return nil
}

func (user *User) removeFromSelection(contactID uint) error {
	updated := user.SelectedContacts.Remove(contactID)
	err := db.Model(&User{}).Where("id = ?", user.ID).
		Update("selected_contacts", updated).Error
	if err != nil {
		return err
	}

	user.SelectedContacts = updated
	return nil
}

func FindUserBy(field string, value interface{}) (*User, error) {
	user := User{}
	err := db.Select(allFieldsExceptPassword).First(&user, fmt.Sprintf("%v = ?", field), value).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

func FindUserPassword(email string) (string, error) {
	user := &User{}
	err := db.Select("Password").First(user, "email = ?", email).Error

	if err != nil {
		return "", err
	}
	return user.Password, nil
}

func CreateUser(user *User) error {
	passwordHash, err := auth.HashPassword(user.Password)
	if err != nil {
		return err
	}
	user.Password = passwordHash

	return db.Create(user).Error
}

func DeleteUser(id interface{}) error {
	return db.Delete(&User{}, id).Error
}

func AtLeastOneUserExists() (bool, error) {
	err := db.First(&User{}).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}
