package models

// Proofs carries the provider-specific proof values submitted with a request
type Proofs map[string]string

// RequestPayload is the verification request handed to a provider
type RequestPayload struct {
	Type    string `json:"type"`
	Address string `json:"address,omitempty"`
	Proofs  Proofs `json:"proofs,omitempty"`
}

// Code returns the OAuth authorization code from the proofs, if any
func (p *RequestPayload) Code() string {
	if p == nil || p.Proofs == nil {
		return ""
	}
	return p.Proofs["code"]
}

// Record is the minimal identity claim attached to a successful verification
type Record map[string]string

// VerifiedPayload is the standardized verification result of a provider
type VerifiedPayload struct {
	Valid  bool   `json:"valid" yaml:"valid"`
	Record Record `json:"record,omitempty" yaml:"record,omitempty"`
}

// Invalid returns a failed verification result without a record
func Invalid() *VerifiedPayload {
	return &VerifiedPayload{Valid: false}
}
