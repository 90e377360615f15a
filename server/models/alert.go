package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	SENT_ALERT  = "sent"
	ERROR_ALERT = "error"
)

// Coordinates is a single best-effort geolocation fix, stored as a JSON
// object in a text column. An absent fix stays NULL & loads back as nil,
// never as zero coordinates.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinates) Value() (driver.Value, error) {
	bytes, err := json.Marshal(c)
	return string(bytes), err
}

func (c *Coordinates) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		return json.Unmarshal([]byte(v), c)
	case []byte:
		return json.Unmarshal(v, c)
	}
	return fmt.Errorf("unable to scan %T into Coordinates", value)
}

// Alert is one persisted emergency-notification record, created once per SOS
// trigger. Contact ids are denormalized so the history stays stable even if
// contacts are later deleted. Audio & location columns stay NULL when the
// capture produced nothing - placeholder values are never written.
type Alert struct {
	BaseModel
	UserID     uint         `json:"user_id" gorm:"not null"`
	ContactIDs IDList       `json:"contacts" gorm:"type:text;not null"`
	AudioURL   string       `json:"audio_url,omitempty"`
	Location   *Coordinates `json:"location,omitempty" gorm:"type:text"`
	Status     string       `json:"status" gorm:"not null"`
}

func CreateAlert(alert *Alert) error {
	if len(alert.ContactIDs) == 0 {
		return errors.New("an alert requires at least one contact")
	}

	return db.Create(alert).Error
}

func FindAlert(id interface{}) (*Alert, error) {
	alert := Alert{}
	err := db.First(&alert, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &alert, nil
}

func FetchAlerts(userID interface{}, page int) ([]Alert, *Paging, error) {
	var total int64
	alerts := []Alert{}

	err := db.Model(&Alert{}).Where("user_id = ?", userID).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, MAX_PAGE_SIZE)).
		Order("alerts.id desc").
		Find(&alerts, "user_id = ?", userID).Error
	if err != nil {
		return nil, nil, err
	}

	return alerts, newPaging(int64(page), MAX_PAGE_SIZE, total), nil
}
