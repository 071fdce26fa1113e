// Package elabftw provides a typed client for the eLabFTW /api/v2 REST API.
// Only the endpoints the importer needs are covered: creating experiments and
// experiment templates, patching their body, and managing uploads.
package elabftw

import "fmt"

// EntityType selects the destination resource collection.
type EntityType string

const (
	// TypeExperiments is the regular experiments collection.
	TypeExperiments EntityType = "experiments"
	// TypeExperimentsTemplates is the experiment templates collection.
	TypeExperimentsTemplates EntityType = "experiments_templates"
)

// CreateEntityRequest is the payload for creating an experiment or template.
type CreateEntityRequest struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

// PatchEntityRequest is the payload for updating an entity after creation.
type PatchEntityRequest struct {
	Body string `json:"body"`
}

// Upload describes a stored attachment as returned by the API.
type Upload struct {
	ID       int    `json:"id"`
	RealName string `json:"real_name"`
	// LongName is the server-side storage name, used in download URLs.
	LongName string `json:"long_name"`
}

// User is the authenticated account returned by GET /users/me.
type User struct {
	UserID   int    `json:"userid"`
	Fullname string `json:"fullname"`
	Email    string `json:"email"`
}

// APIError is a non-2xx response from the destination API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}
