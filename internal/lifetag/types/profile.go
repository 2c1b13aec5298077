package types

type CreateProfileRequest struct {
	ProfileID        string   `json:"profile_id"`
	DisplayName      string   `json:"display_name"`
	BloodType        string   `json:"blood_type,omitempty"`
	Allergies        []string `json:"allergies,omitempty"`
	Medications      []string `json:"medications,omitempty"`
	EmergencyContact string   `json:"emergency_contact,omitempty"`
	Password         string   `json:"password"`
}

// ProfileView is what a viewer sees once access is granted. It never
// carries the password hash.
type ProfileView struct {
	ProfileID        string   `json:"profile_id"`
	DisplayName      string   `json:"display_name"`
	BloodType        string   `json:"blood_type,omitempty"`
	Allergies        []string `json:"allergies,omitempty"`
	Medications      []string `json:"medications,omitempty"`
	EmergencyContact string   `json:"emergency_contact,omitempty"`
	CreatedAt        string   `json:"created_at"`
}
