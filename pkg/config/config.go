// Package config loads RoboShen assistant manifests.
//
// An assistant is described by a K8s-style YAML manifest:
//
//	apiVersion: roboshen.altairalabs.ai/v1alpha1
//	kind: Assistant
//	metadata:
//	  name: roboshen
//	spec:
//	  model: gemini-2.5-flash-native-audio-preview-09-2025
//	  voice: Zephyr
//	  locale: fa
//	  tools:
//	    enabled: [generateImage, generateContent]
//
// The package is organized into:
//   - types.go: manifest types and defaults
//   - loader.go: reading, schema validation and decoding
//   - schema_validator.go: JSON schema validation against the embedded schema
//   - logging.go: logging section and its conversion for runtime/logger
package config
