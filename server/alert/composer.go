package alert

import (
	"github.com/secureher/secureher/server/models"
)

// Compose assembles the alert record for one SOS trigger. Absent audio &
// location are left out of the record entirely - no placeholder values are
// ever written. The full selected contact list is kept even when some
// contacts have no usable phone number; those are skipped at dispatch time,
// not here.
func Compose(userID uint, contactIDs models.IDList, audioURL string, location *models.Coordinates) *models.Alert {
	composed := &models.Alert{
		UserID:     userID,
		ContactIDs: contactIDs,
		Status:     models.SENT_ALERT,
	}

	if audioURL != "" {
		composed.AudioURL = audioURL
	}

	if location != nil {
		composed.Location = &models.Coordinates{Lat: location.Lat, Lng: location.Lng}
	}

	return composed
}
