package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// FormType enumerates the training paperwork codes.
type FormType string

const (
	FormBLI01         FormType = "BLI_01"
	FormBLI02         FormType = "BLI_02"
	FormBLI03         FormType = "BLI_03"
	FormBLI03Hardcopy FormType = "BLI_03_HARDCOPY"
	FormBLI04         FormType = "BLI_04"
	FormSLI03         FormType = "SLI_03"
	FormSLI04         FormType = "SLI_04"
	FormDLI01         FormType = "DLI_01"
	FormOfferLetter   FormType = "OFFER_LETTER"
)

// SignatureRole identifies one of the three independent signature slots.
type SignatureRole string

const (
	SignStudent     SignatureRole = "student"
	SignCoordinator SignatureRole = "coordinator"
	SignSupervisor  SignatureRole = "supervisor"
)

// requiredSignatures lists which slots must be filled before a form of the
// given type counts as complete.
var requiredSignatures = map[FormType][]SignatureRole{
	FormBLI01:         {SignStudent},
	FormBLI02:         {SignStudent},
	FormBLI03:         {SignStudent, SignCoordinator},
	FormBLI03Hardcopy: {SignStudent, SignCoordinator},
	FormBLI04:         {SignStudent, SignCoordinator, SignSupervisor},
	FormSLI03:         {SignCoordinator},
	FormSLI04:         {SignCoordinator},
	FormDLI01:         {SignStudent, SignSupervisor},
}

// RequiredSignatures returns the signature slots a form type demands.
func RequiredSignatures(formType FormType) []SignatureRole {
	return requiredSignatures[formType]
}

// ValidFormType reports whether the given code is known.
func ValidFormType(formType FormType) bool {
	switch formType {
	case FormBLI01, FormBLI02, FormBLI03, FormBLI03Hardcopy, FormBLI04,
		FormSLI03, FormSLI04, FormDLI01, FormOfferLetter:
		return true
	}
	return false
}

// SignatureSlot carries one party's signature on a form.
type SignatureSlot struct {
	Signature     string     `json:"signature,omitempty"`
	SignatureType string     `json:"signature_type,omitempty"`
	SignerName    string     `json:"signer_name,omitempty"`
	SignedAt      *time.Time `json:"signed_at,omitempty"`
}

// Present reports whether the slot holds a signature.
func (s SignatureSlot) Present() bool {
	return s.Signature != ""
}

// FormPayload stores the raw submitted form fields as JSONB.
type FormPayload map[string]string

// Value marshals the payload to JSON for persistence.
func (p FormPayload) Value() (driver.Value, error) {
	if p == nil {
		p = FormPayload{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal form payload: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the map.
func (p *FormPayload) Scan(value interface{}) error {
	if value == nil {
		*p = FormPayload{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for FormPayload", value)
	}
	if len(data) == 0 {
		*p = FormPayload{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal form payload: %w", err)
	}
	return nil
}

// SignatureSlots groups the three slots for JSONB persistence.
type SignatureSlots map[SignatureRole]SignatureSlot

// Value marshals the slots to JSON for persistence.
func (s SignatureSlots) Value() (driver.Value, error) {
	if s == nil {
		s = SignatureSlots{}
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal signature slots: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the map.
func (s *SignatureSlots) Scan(value interface{}) error {
	if value == nil {
		*s = SignatureSlots{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for SignatureSlots", value)
	}
	if len(data) == 0 {
		*s = SignatureSlots{}
		return nil
	}
	if err := json.Unmarshal(data, s); err != nil {
		return fmt.Errorf("unmarshal signature slots: %w", err)
	}
	return nil
}

// FormResponse holds the submitted payload and signature slots for one
// form of one application. (applicationId, formType) is unique.
type FormResponse struct {
	ID            string         `db:"id" json:"id"`
	ApplicationID string         `db:"application_id" json:"application_id"`
	FormType      FormType       `db:"form_type" json:"form_type"`
	Payload       FormPayload    `db:"payload" json:"payload"`
	Signatures    SignatureSlots `db:"signatures" json:"signatures"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// Complete reports whether every signature the form type requires is present.
func (f *FormResponse) Complete() bool {
	for _, role := range RequiredSignatures(f.FormType) {
		if !f.Signatures[role].Present() {
			return false
		}
	}
	return true
}
