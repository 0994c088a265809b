package ai

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrUpstream wraps every failure of the inference service: transport errors,
// timeouts, non-2xx statuses and bodies that are not JSON.
var ErrUpstream = errors.New("ai service unavailable")

// Endpoint is a modality-specific path on the inference service.
type Endpoint string

const (
	EndpointSpeech   Endpoint = "/api/speech/analyze"
	EndpointBehavior Endpoint = "/api/behavior/analyze"
	EndpointEmotion  Endpoint = "/api/emotion/detect"
	EndpointProgress Endpoint = "/api/progress/predict"
	EndpointRisk     Endpoint = "/api/risk/detect"
	EndpointIEP      Endpoint = "/api/iep/generate"
)

// Modality returns the short label used for metrics and spans.
func (e Endpoint) Modality() string {
	switch e {
	case EndpointSpeech:
		return "speech"
	case EndpointBehavior:
		return "behavior"
	case EndpointEmotion:
		return "emotion"
	case EndpointProgress:
		return "progress"
	case EndpointRisk:
		return "risk"
	case EndpointIEP:
		return "iep"
	default:
		return "unknown"
	}
}

// Result is the opaque payload returned by the inference service.
type Result struct {
	Payload    json.RawMessage
	Confidence *float64
}

// Analyzer forwards one request to the inference service. Calls are not retried.
type Analyzer interface {
	Analyze(ctx context.Context, endpoint Endpoint, payload interface{}) (Result, error)
}
