package driven

// ConfigStore holds flat settings under dotted keys such as "retrieval.top_k".
// The typed getters return the zero value when a key is missing or holds a
// value of another type; whole floats read as integers.
type ConfigStore interface {
	Get(key string) (any, bool)
	GetString(key string) string
	GetInt(key string) int
	GetFloat(key string) float64
	GetBool(key string) bool
	GetStringSlice(key string) []string

	// Keys lists the stored keys in sorted order.
	Keys() []string

	// Set stores value and persists it before returning.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path identifies the backing file.
	Path() string
}
