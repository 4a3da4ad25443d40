package domain

// Labels stamped on every image and container this wrapper creates. The
// managed label scopes list and event queries to our own resources; the app
// label ties a resource back to its app record.
const (
	LabelManaged = "art.pixel.managed"
	LabelApp     = "art.pixel.app"
	LabelPort    = "art.pixel.port"
)
