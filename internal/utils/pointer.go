package utils

// Ptr returns a pointer to v, for optional fields such as
// GenerationConfig.Temperature.
func Ptr[T any](v T) *T {
	return &v
}
