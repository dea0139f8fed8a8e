package identify

import "fmt"

// ValidationError rejects a payload before any expensive work.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NoPlantDetectedError means the external classifier returned no suggestions.
type NoPlantDetectedError struct{}

func (e *NoPlantDetectedError) Error() string {
	return "no plant detected: no plant material found in this image. " +
		"Upload a photo with a clear view of leaves or flowers, good lighting, " +
		"and focus on a single plant. Avoid animals, people, objects, blurry or " +
		"dark images, and processed food."
}

// LowConfidenceError means the top suggestion fell below the minimum
// acceptable probability.
type LowConfidenceError struct {
	Probability float64
}

func (e *LowConfidenceError) Error() string {
	return fmt.Sprintf("image too unclear to identify a plant (confidence %.3f). "+
		"Use natural daylight, focus clearly on the plant, show distinctive "+
		"features such as leaves, flowers or bark, and avoid shadows and glare.",
		e.Probability)
}

// NotAPlantError means the classifier answered with a generic or non-plant
// label, or no suggestion survived the plant-kingdom filter.
type NotAPlantError struct {
	Name string
}

func (e *NotAPlantError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("the image does not appear to contain a recognizable plant "+
			"(classified as %q). Upload a photo of a real, living plant with visible "+
			"plant parts such as leaves, flowers, stems or roots.", e.Name)
	}
	return "the image does not appear to contain a recognizable plant. " +
		"Upload a photo of a real, living plant with visible plant parts " +
		"such as leaves, flowers, stems or roots."
}

// ServiceErrorKind categorises external provider failures.
type ServiceErrorKind string

const (
	KindAuth         ServiceErrorKind = "auth"
	KindRateLimit    ServiceErrorKind = "rate_limit"
	KindTimeout      ServiceErrorKind = "timeout"
	KindConnectivity ServiceErrorKind = "connectivity"
)

// ExternalServiceError wraps a failure from the vision or embedding provider.
type ExternalServiceError struct {
	Provider string
	Kind     ServiceErrorKind
	Err      error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Remediation returns a provider-specific hint for the caller.
func (e *ExternalServiceError) Remediation() string {
	switch e.Kind {
	case KindAuth:
		return "identification provider rejected our credentials; contact the operator"
	case KindRateLimit:
		return "identification provider is rate limiting; retry in a few minutes"
	case KindTimeout:
		return "identification provider timed out; retry shortly"
	default:
		return "identification provider is unreachable; retry later"
	}
}

// PersistenceError wraps a cache write or update failure. On the identify hot
// path these are logged and swallowed; explicit operations surface them.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotFoundError is returned when verification or feedback references a
// nonexistent record.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }
