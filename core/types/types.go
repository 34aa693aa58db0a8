package types

import (
	"math"
)

// AnalyzerPromptInjection is the analyzer identity every prompt and
// response in this subnet must carry.
const AnalyzerPromptInjection = "Prompt Injection"

const (
	EngineTextClassification = "engine:text_classification"
	EngineVectorSearch       = "engine:vector_search"
	EngineYara               = "engine:yara"
)

// EngineOutput is the per-engine confidence reported by a worker.
type EngineOutput struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Response is the payload a worker returns for a served prompt. The
// transport layer hands it over already decoded; everything here is
// untrusted until Validate has accepted it.
type Response struct {
	Analyzer      string         `json:"analyzer"`
	Prompt        string         `json:"prompt"`
	Confidence    float64        `json:"confidence"`
	SynapseUUID   string         `json:"synapse_uuid"`
	Signature     string         `json:"signature"`
	Nonce         string         `json:"nonce"`
	Timestamp     string         `json:"timestamp"`
	SubnetVersion string         `json:"subnet_version"`
	Engines       []EngineOutput `json:"engines"`
}

// Validate checks the structural requirements for a scorable response:
// all required fields present and the analyzer identity matching the one
// the prompt was generated for.
func (r *Response) Validate(analyzer string) bool {
	if r == nil {
		return false
	}
	if r.Analyzer != analyzer {
		return false
	}
	if r.Prompt == "" || r.SynapseUUID == "" || r.Signature == "" || r.Nonce == "" || r.Timestamp == "" {
		return false
	}
	if !InRange(r.Confidence, 0.0, 1.0) {
		return false
	}
	if len(r.Engines) == 0 {
		return false
	}
	for _, engine := range r.Engines {
		if engine.Name == "" || !InRange(engine.Confidence, 0.0, 1.0) {
			return false
		}
	}
	return true
}

// KnownEngines filters the reported engine outputs down to the engines
// the coordinator understands, first match per engine, in a fixed order.
func (r *Response) KnownEngines() []EngineOutput {
	var result []EngineOutput
	for _, name := range []string{EngineTextClassification, EngineVectorSearch, EngineYara} {
		for _, engine := range r.Engines {
			if engine.Name == name {
				result = append(result, engine)
				break
			}
		}
	}
	return result
}

// Prompt is one entry served to the selected workers during a round.
type Prompt struct {
	Analyzer    string  `json:"analyzer"`
	Category    string  `json:"category"`
	Prompt      string  `json:"prompt"`
	Label       float64 `json:"label"`
	Weight      float64 `json:"weight"`
	Hotkey      string  `json:"hotkey"`
	SynapseUUID string  `json:"synapse_uuid"`
	CreatedAt   string  `json:"created_at"`
}

func (p *Prompt) Validate() bool {
	if p == nil {
		return false
	}
	if p.Analyzer == "" || p.Category == "" || p.Prompt == "" {
		return false
	}
	if math.IsNaN(p.Label) || math.IsNaN(p.Weight) {
		return false
	}
	return true
}

// InRange reports whether value lies in [min, max]. NaN is never in
// range so a poisoned float cannot pass a bounds check.
func InRange(value, min, max float64) bool {
	if math.IsNaN(value) {
		return false
	}
	return value >= min && value <= max
}
