package models

type Contact struct {
	BaseModel
	FirstName          string `json:"first_name" validate:"required"`
	LastName           string `json:"last_name"`
	PhoneNumber        string `json:"phone_number" validate:"required,phone_number" gorm:"not null;uniqueIndex:idx_contacts_user_phone"`
	IsEmergencyContact bool   `json:"is_emergency_contact"`
	UserID             uint   `json:"user_id" gorm:"not null;uniqueIndex:idx_contacts_user_phone"`
}

// UsablePhoneNumber reports whether the contact can receive an outbound
// message. Contacts without one stay in alert records for history purposes
// but are skipped at dispatch time.
func (contact *Contact) UsablePhoneNumber() bool {
	return contact.PhoneNumber != ""
}
