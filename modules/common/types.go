package common

type Sig struct {
	Alg string `json:"alg" refmt:"alg"`
	Kid string `json:"kid" refmt:"kid"`
	Sig string `json:"sig" refmt:"sig"`
}
