package config

// Version constants for RoboShen manifests.
const (
	// APIVersion is the Kubernetes-style API version for RoboShen configs
	APIVersion = "roboshen.altairalabs.ai/v1alpha1"

	// SchemaVersion is the version string used in schema URLs and paths
	SchemaVersion = "v1alpha1"

	// KindAssistant is the only manifest kind.
	KindAssistant = "Assistant"
)
