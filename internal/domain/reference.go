package domain

import "github.com/google/uuid"

// Tenant is a platform participant, projected from the reference store.
type Tenant struct {
	ID         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Origin     string    `json:"origin"`
	ExternalID string    `json:"external_id"`
	Deleted    bool      `json:"deleted"`
}

// Eservice is a published API product with a producer tenant.
type Eservice struct {
	ID         uuid.UUID `json:"eservice_id"`
	ProducerID uuid.UUID `json:"producer_id"`
	Name       string    `json:"name"`
}

// Purpose is an authorization grant between a consumer tenant and an
// eservice. Its id is the semantic key joining usage rows to identity.
type Purpose struct {
	ID         string    `json:"id"`
	ConsumerID uuid.UUID `json:"consumer_id"`
	EserviceID uuid.UUID `json:"eservice_id"`
	Title      string    `json:"purpose_title"`
}
