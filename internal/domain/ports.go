package domain

import "context"

type PlotRepository interface {
	// Write paths
	InsertPlots(ctx context.Context, ps []Plot) (int, error)
	UpdatePlot(ctx context.Context, id string, p PlotPatch) error
	DeletePlot(ctx context.Context, id string) error

	// Read paths
	ListPlots(ctx context.Context) ([]Plot, error)
}

type SubmissionRepository interface {
	InsertSubmission(ctx context.Context, s Submission) error
	GetSubmission(ctx context.Context, id string) (Submission, error)
	ListSubmissions(ctx context.Context) ([]Submission, error)

	// DecideSubmission flips status from pending to the given decision in a
	// single conditional update. ErrConflict when the row was already decided.
	DecideSubmission(ctx context.Context, id, status string, imageURLs []string) error

	// SetSubmissionImages records uploaded photo URLs on a pending submission.
	SetSubmissionImages(ctx context.Context, id, userID string, urls []string) error
}

// ObjectStore lists uploaded photos under a submission's namespace and
// derives their public URLs.
type ObjectStore interface {
	List(ctx context.Context, prefix string) ([]string, error)
	PublicURL(path string) string
}

// Geocoder resolves a free-text address to coordinates.
type Geocoder interface {
	Search(ctx context.Context, address string) (lat, lng float64, err error)
}

// AuthVerifier validates a session bearer token against the auth provider.
type AuthVerifier interface {
	Verify(ctx context.Context, token string) (User, error)
}

type User struct {
	ID    string
	Email string
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
