package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/gorilla/mux"
	"github.com/secureher/secureher/server/alert"
	"github.com/secureher/secureher/server/auth"
	"github.com/secureher/secureher/server/auth/key"
	"github.com/secureher/secureher/server/models"
	"github.com/secureher/secureher/server/twilio"
	"gorm.io/gorm"
)

const tokenExpiryHours = 24

// ---------------------------------------------------------------------------------//
// Open routes
// --------------------------------------------------------------------------------//

func healthCheck(rw http.ResponseWriter, r *http.Request) {
	writeResponse(rw, ResponsePayload{Success: true, Data: "ok"}, http.StatusOK)
}

func (s *Server) signUp(rw http.ResponseWriter, r *http.Request) {
	user := models.User{}

	if err := json.NewDecoder(r.Body).Decode(&user); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(user); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	// Server-managed fields are never client-settable at signup
	user.RoleID = 0
	user.SelectedContacts = nil
	user.AlertHistory = nil
	user.Contacts = nil
	user.Alerts = nil

	// The very first account becomes the admin
	userExists, err := models.AtLeastOneUserExists()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	if !userExists {
		adminRole, err := models.FindRole(models.ADMIN_USER_ROLE)
		if err != nil {
			writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
			return
		}
		user.RoleID = adminRole.ID
	}

	if err = models.CreateUser(&user); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if user.EmergencyContactPhone != "" {
		if err = user.SetEmergencyContactPhone(user.EmergencyContactPhone); err != nil {
			writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
			return
		}
	}

	user.Password = ""
	writeResponse(rw, ResponsePayload{Success: true, Data: user}, http.StatusCreated)
}

func (s *Server) logIn(rw http.ResponseWriter, r *http.Request) {
	credentials := struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(credentials); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	passwordHash, err := models.FindUserPassword(credentials.Email)
	if err != nil || !auth.CheckPasswordHash(credentials.Password, passwordHash) {
		writeResponse(rw, ResponsePayload{Errors: []string{"email/password is invalid"}}, http.StatusUnauthorized)
		return
	}

	user, err := models.FindUserBy("email", credentials.Email)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	isAdmin, err := user.IsAdmin()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	token, err := auth.EncodeJWT(auth.SecureHerTokenClaims{
		FirstName:      user.FirstName,
		LastName:       user.LastName,
		IsAdmin:        isAdmin,
		StandardClaims: jwtStandardClaims(fmt.Sprint(user.ID)),
	}, s.authKeyPair)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{"token": token}}, http.StatusOK)
}

func (s *Server) jwks(rw http.ResponseWriter, r *http.Request) {
	keyPairJWK, err := s.authKeyPair.JWK()
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	rw.Header().Add("Content-Type", "application/json")
	json.NewEncoder(rw).Encode(key.ExportJWKAsJWKS(keyPairJWK))
}

// ---------------------------------------------------------------------------------//
// User routes
// --------------------------------------------------------------------------------//

func (s *Server) findUser(rw http.ResponseWriter, r *http.Request) {
	user, ok := s.requestUser(rw, r)
	if !ok {
		return
	}

	if err := user.LoadContacts(); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: user}, http.StatusOK)
}

func (s *Server) updateUser(rw http.ResponseWriter, r *http.Request) {
	user, ok := s.requestUser(rw, r)
	if !ok {
		return
	}

	params := map[string]interface{}{}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	removeUnknownFields(params, map[string]bool{
		"first_name":              true,
		"last_name":               true,
		"phone_number":            true,
		"password":                true,
		"emergency_contact_phone": true,
		"photo_url":               true,
	})

	for _, field := range []string{"phone_number", "emergency_contact_phone"} {
		if phone, ok := params[field].(string); ok && !isValidPhoneNumber(phone) {
			writeResponse(rw, ResponsePayload{Errors: []string{fmt.Sprintf("%v must be a 10-digit number", field)}}, http.StatusBadRequest)
			return
		}
	}

	// The emergency number also maintains its flagged contact record, so it
	// goes through its own path
	if phone, ok := params["emergency_contact_phone"].(string); ok {
		if err := user.SetEmergencyContactPhone(phone); err != nil {
			writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
			return
		}
		delete(params, "emergency_contact_phone")
	}

	if len(params) > 0 {
		if err := user.Update(params); err != nil {
			writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
			return
		}
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func (s *Server) deleteUser(rw http.ResponseWriter, r *http.Request) {
	user, ok := s.requestUser(rw, r)
	if !ok {
		return
	}

	if err := models.DeleteUser(user.ID); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func (s *Server) uploadProfilePhoto(rw http.ResponseWriter, r *http.Request) {
	user, ok := s.requestUser(rw, r)
	if !ok {
		return
	}

	if s.storage == nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"object storage is not configured"}}, http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"a 'photo' file is required"}}, http.StatusBadRequest)
		return
	}
	defer file.Close()

	photoURL, err := s.storage.UploadBlob(
		r.Context(),
		s.config.Google.Storage.Bucket,
		path.Join(s.config.Google.Storage.Prefix, "photos"),
		file,
	)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	if err = user.Update(map[string]interface{}{"photo_url": photoURL}); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{"photo_url": photoURL}}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Contact routes
// --------------------------------------------------------------------------------//

func (s *Server) createContact(rw http.ResponseWriter, r *http.Request) {
	user, ok := s.requestUser(rw, r)
	if !ok {
		return
	}

	contact := models.Contact{}
	if err := json.NewDecoder(r.Body).Decode(&contact); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(contact); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if err := user.AddContact(&contact); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: contact}, http.StatusCreated)
}

func (s *Server) listContacts(rw http.ResponseWriter, r *http.Request) {
	user, ok := s.requestUser(rw, r)
	if !ok {
		return
	}

	if err := user.LoadContacts(); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{
		"contacts":          user.Contacts,
		"selected_contacts": user.SelectedContacts,
	}}, http.StatusOK)
}

func (s *Server) updateContact(rw http.ResponseWriter, r *http.Request) {
	user, ok := s.requestUser(rw, r)
	if !ok {
		return
	}

	params := map[string]interface{}{}
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	removeUnknownFields(params, map[string]bool{
		"first_name":   true,
		"last_name":    true,
		"phone_number": true,
	})

	if phone, ok := params["phone_number"].(string); ok && !isValidPhoneNumber(phone) {
		writeResponse(rw, ResponsePayload{Errors: []string{"phone_number must be a 10-digit number"}}, http.StatusBadRequest)
		return
	}

	if err := user.UpdateContact(mux.Vars(r)["id"], params); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func (s *Server) deleteContact(rw http.ResponseWriter, r *http.Request) {
	user, ok := s.requestUser(rw, r)
	if !ok {
		return
	}

	err := user.DeleteContact(mux.Vars(r)["id"])
	if errors.Is(err, models.ErrEmergencyContactImmutable) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{"contact not found"}}, http.StatusNotFound)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true}, http.StatusOK)
}

func (s *Server) toggleContactSelection(rw http.ResponseWriter, r *http.Request) {
	user, ok := s.requestUser(rw, r)
	if !ok {
		return
	}

	contactID, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{"contact id must be a number"}}, http.StatusBadRequest)
		return
	}

	selected, err := user.ToggleContactSelection(uint(contactID))
	if errors.Is(err, models.ErrEmergencyContactImmutable) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{"contact not found"}}, http.StatusNotFound)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{"selected_contacts": selected}}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Alert routes
// --------------------------------------------------------------------------------//

// triggerAlert runs one SOS lifecycle for the request user. The audio file &
// lat/lng coordinates are both optional; a trigger with neither still sends.
func (s *Server) triggerAlert(rw http.ResponseWriter, r *http.Request) {
	user, ok := s.requestUser(rw, r)
	if !ok {
		return
	}

	params := alert.TriggerParams{User: user}

	// 10MB covers well over the max recording length
	if err := r.ParseMultipartForm(10 << 20); err == nil {
		if file, _, err := r.FormFile("audio"); err == nil {
			params.Device = alert.NewReaderDevice(file)
		}

		lat, latErr := strconv.ParseFloat(r.FormValue("lat"), 64)
		lng, lngErr := strconv.ParseFloat(r.FormValue("lng"), 64)
		if latErr == nil && lngErr == nil {
			params.Location = alert.NewStaticLocationProvider(lat, lng)
		}
	}

	result, err := s.engine.Trigger(r.Context(), params)
	if errors.Is(err, alert.ErrNoContactsSelected) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}
	if err != nil {
		payload := ResponsePayload{Errors: []string{err.Error()}}
		if result != nil {
			payload.Data = result
		}
		writeResponse(rw, payload, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: result}, http.StatusCreated)
}

func (s *Server) listAlerts(rw http.ResponseWriter, r *http.Request) {
	user, ok := s.requestUser(rw, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	alerts, paging, err := models.FetchAlerts(user.ID, page)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{
		"alerts": alerts,
		"paging": paging,
	}}, http.StatusOK)
}

// sendSOS relays a one-off message to a single number, outside the alert
// lifecycle. Used by 'are you safe?' style check-ins.
func (s *Server) sendSOS(rw http.ResponseWriter, r *http.Request) {
	payload := struct {
		Phone   string `json:"phone" validate:"required,phone_number"`
		Message string `json:"message" validate:"required"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(payload); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	sid, err := s.smsClient.SendMessage(payload.Phone, payload.Message)
	if errors.Is(err, twilio.ErrNotConfigured) {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{"sid": sid}}, http.StatusOK)
}

// lookupUserByMobile resolves a phone number to a registered account, so a
// client can tell whether a contact is also a user.
func (s *Server) lookupUserByMobile(rw http.ResponseWriter, r *http.Request) {
	payload := struct {
		Mobile string `json:"mobile" validate:"required,phone_number"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(payload); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	user, err := models.FindUserBy("phone_number", payload.Mobile)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{"exists": false}}, http.StatusOK)
		return
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{
		"exists":  true,
		"user_id": user.ID,
		"name":    fmt.Sprintf("%v %v", user.FirstName, user.LastName),
		"email":   user.Email,
	}}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Chat routes
// --------------------------------------------------------------------------------//

// The chat is one shared room: every authenticated user reads & writes the
// same feed.
func (s *Server) createMessage(rw http.ResponseWriter, r *http.Request) {
	payload := struct {
		Body string `json:"body" validate:"required"`
	}{}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	if err := validate.Struct(payload); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusBadRequest)
		return
	}

	claims := r.Context().Value(RequestContextKey("decodedJWT")).(DecodedJWT).Claims
	senderID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	message := models.Message{
		UserID:     uint(senderID),
		SenderName: fmt.Sprintf("%v %v", claims.FirstName, claims.LastName),
		Body:       payload.Body,
	}
	if err := models.CreateMessage(&message); err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: message}, http.StatusCreated)
}

func (s *Server) listMessages(rw http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	messages, paging, err := models.FetchMessages(page)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{
		"messages": messages,
		"paging":   paging,
	}}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Admin routes
// --------------------------------------------------------------------------------//

func (s *Server) listJobs(rw http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	jobs, paging, err := models.FetchJobs(page)
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return
	}

	writeResponse(rw, ResponsePayload{Success: true, Data: map[string]interface{}{
		"jobs":   jobs,
		"paging": paging,
	}}, http.StatusOK)
}

// ---------------------------------------------------------------------------------//
// Shared handler plumbing
// --------------------------------------------------------------------------------//

// requestUser loads the user record the route's {uid} refers to, writing the
// error response itself when the lookup fails.
func (s *Server) requestUser(rw http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, err := models.FindUserBy("id", mux.Vars(r)["uid"])
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeResponse(rw, ResponsePayload{Errors: []string{"user not found"}}, http.StatusNotFound)
		return nil, false
	}
	if err != nil {
		writeResponse(rw, ResponsePayload{Errors: []string{err.Error()}}, http.StatusInternalServerError)
		return nil, false
	}

	return user, true
}

func jwtStandardClaims(subject string) jwt.StandardClaims {
	return jwt.StandardClaims{
		Subject:   subject,
		Issuer:    "secureher",
		IssuedAt:  time.Now().Unix(),
		ExpiresAt: time.Now().Add(tokenExpiryHours * time.Hour).Unix(),
	}
}
